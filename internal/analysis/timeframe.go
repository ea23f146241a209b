package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fortis-trading-bot/internal/market"
)

// CandleStore caches bar series by key
type CandleStore interface {
	Get(ctx context.Context, key string) ([]market.Bar, bool)
	Set(ctx context.Context, key string, bars []market.Bar, ttl time.Duration)
}

// TimeframeManager handles multi-timeframe bar data
type TimeframeManager struct {
	source      market.Source
	cache       CandleStore
	concurrency int
}

// MultiTimeframeData holds bars across different timeframes
type MultiTimeframeData struct {
	Symbol    string
	Timestamp time.Time
	Data      map[market.Timeframe][]market.Bar
}

// NewTimeframeManager creates a new multi-timeframe data manager.
// A nil cache falls back to an in-process CandleCache.
func NewTimeframeManager(source market.Source, cache CandleStore) *TimeframeManager {
	if cache == nil {
		cache = NewCandleCache()
	}
	return &TimeframeManager{
		source:      source,
		cache:       cache,
		concurrency: 4,
	}
}

// GetMultiTimeframeData fetches bars for multiple timeframes in parallel.
// The first failing timeframe cancels the others.
func (tm *TimeframeManager) GetMultiTimeframeData(ctx context.Context, symbol string, timeframes []market.Timeframe, limit int) (*MultiTimeframeData, error) {
	result := &MultiTimeframeData{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Data:      make(map[market.Timeframe][]market.Bar, len(timeframes)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tm.concurrency)

	for _, tf := range timeframes {
		tf := tf
		g.Go(func() error {
			bars, err := tm.GetCandles(gctx, symbol, tf, limit)
			if err != nil {
				return fmt.Errorf("failed to fetch %s %s: %w", symbol, tf, err)
			}
			mu.Lock()
			result.Data[tf] = bars
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetCandles fetches bars with caching
func (tm *TimeframeManager) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Bar, error) {
	key := CacheKey(symbol, tf, limit)

	if cached, ok := tm.cache.Get(ctx, key); ok {
		return cached, nil
	}

	bars, err := tm.source.Fetch(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	for i := range bars {
		bars[i].Timeframe = tf
	}

	if len(bars) > 0 {
		tm.cache.Set(ctx, key, bars, CacheTTL(tf))
	}
	return bars, nil
}

// CacheKey is the cache key of one fetch
func CacheKey(symbol string, tf market.Timeframe, limit int) string {
	return fmt.Sprintf("%s:%s:%d", symbol, tf, limit)
}

// CacheTTL returns a cache lifetime appropriate for the timeframe
func CacheTTL(tf market.Timeframe) time.Duration {
	switch tf {
	case market.TF5m:
		return 2 * time.Minute
	case market.TF15m:
		return 5 * time.Minute
	case market.TF1h:
		return 30 * time.Minute
	case market.TF4h:
		return 2 * time.Hour
	case market.TF1d:
		return 12 * time.Hour
	case market.TF1w, market.TF1M:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// CandleCache is an in-process CandleStore
type CandleCache struct {
	data map[string]*CacheEntry
	mu   sync.RWMutex
}

// CacheEntry represents a cached bar series
type CacheEntry struct {
	Bars      []market.Bar
	ExpiresAt time.Time
}

// NewCandleCache creates a new candle cache
func NewCandleCache() *CandleCache {
	return &CandleCache{
		data: make(map[string]*CacheEntry),
	}
}

// Get retrieves cached bars if not expired
func (c *CandleCache) Get(_ context.Context, key string) ([]market.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Bars, true
}

// Set stores bars with expiration
func (c *CandleCache) Set(_ context.Context, key string, bars []market.Bar, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &CacheEntry{
		Bars:      bars,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// Clear removes expired entries
func (c *CandleCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.ExpiresAt) {
			delete(c.data, key)
		}
	}
}
