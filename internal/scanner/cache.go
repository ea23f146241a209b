package scanner

import (
	"context"
	"sync"
	"time"
)

// Deduper reports whether a key is seen for the first time within ttl.
// *cache.CacheService satisfies it with Redis SETNX.
type Deduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) bool
}

// SeenCache is the in-process Deduper used when Redis is not configured
type SeenCache struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> expiry
	now  func() time.Time
}

// NewSeenCache creates an empty cache
func NewSeenCache() *SeenCache {
	return &SeenCache{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// FirstSeen records key and returns true unless it was recorded and has not expired
func (sc *SeenCache) FirstSeen(_ context.Context, key string, ttl time.Duration) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := sc.now()
	if exp, ok := sc.seen[key]; ok && now.Before(exp) {
		return false
	}
	sc.seen[key] = now.Add(ttl)
	return true
}

// CleanupExpired removes expired keys
func (sc *SeenCache) CleanupExpired() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := sc.now()
	removed := 0
	for key, exp := range sc.seen {
		if !now.Before(exp) {
			delete(sc.seen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (sc *SeenCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.seen)
}
