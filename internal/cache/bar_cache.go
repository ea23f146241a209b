package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortis-trading-bot/internal/analysis"
	"fortis-trading-bot/internal/market"
)

// BarCache stores fetched bar windows in Redis. Errors degrade to misses so
// the caller falls back to the exchange.
type BarCache struct {
	cs *CacheService
}

// NewBarCache creates a bar cache over cs
func NewBarCache(cs *CacheService) *BarCache {
	return &BarCache{cs: cs}
}

// Get returns the cached bars for key
func (bc *BarCache) Get(ctx context.Context, key string) ([]market.Bar, bool) {
	var bars []market.Bar
	if err := bc.cs.GetJSON(ctx, fmt.Sprintf(PrefixBars, key), &bars); err != nil {
		if !errors.Is(err, ErrMiss) && !errors.Is(err, ErrUnavailable) {
			bc.cs.log.WithError(err).Debug("Bar cache read failed", "key", key)
		}
		return nil, false
	}
	return bars, true
}

// Set caches bars for ttl
func (bc *BarCache) Set(ctx context.Context, key string, bars []market.Bar, ttl time.Duration) {
	if err := bc.cs.Set(ctx, fmt.Sprintf(PrefixBars, key), bars, ttl); err != nil && !errors.Is(err, ErrUnavailable) {
		bc.cs.log.WithError(err).Debug("Bar cache write failed", "key", key)
	}
}

var _ analysis.CandleStore = (*BarCache)(nil)

// FirstSeen records a signal key. Returns true the first time key is seen
// within ttl. An unavailable Redis reports every key as new.
func (cs *CacheService) FirstSeen(ctx context.Context, key string, ttl time.Duration) bool {
	stored, err := cs.SetNX(ctx, fmt.Sprintf(PrefixSignal, key), "1", ttl)
	if err != nil {
		return true
	}
	return stored
}
