package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortis-trading-bot/internal/market"
)

func TestGetMultiTimeframeData(t *testing.T) {
	var calls atomic.Int32
	src := market.SourceFunc(func(_ context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Bar, error) {
		calls.Add(1)
		return shapedBars("", 1)[:limit], nil
	})

	tm := NewTimeframeManager(src, nil)
	data, err := tm.GetMultiTimeframeData(context.Background(), "BTCUSDT", []market.Timeframe{market.TF4h, market.TF1h}, 5)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", data.Symbol)
	require.Len(t, data.Data, 2)
	assert.Len(t, data.Data[market.TF4h], 5)
	assert.Equal(t, market.TF1h, data.Data[market.TF1h][0].Timeframe, "bars should be stamped with their timeframe")

	// Second call is served from cache
	_, err = tm.GetMultiTimeframeData(context.Background(), "BTCUSDT", []market.Timeframe{market.TF4h, market.TF1h}, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetMultiTimeframeDataError(t *testing.T) {
	boom := errors.New("boom")
	src := market.SourceFunc(func(_ context.Context, _ string, tf market.Timeframe, _ int) ([]market.Bar, error) {
		if tf == market.TF1h {
			return nil, boom
		}
		return shapedBars(tf, 1), nil
	})

	tm := NewTimeframeManager(src, nil)
	_, err := tm.GetMultiTimeframeData(context.Background(), "ETHUSDT", []market.Timeframe{market.TF4h, market.TF1h}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ETHUSDT 1h")
}

func TestEmptyFetchIsNotCached(t *testing.T) {
	var calls atomic.Int32
	src := market.SourceFunc(func(context.Context, string, market.Timeframe, int) ([]market.Bar, error) {
		calls.Add(1)
		return nil, nil
	})

	tm := NewTimeframeManager(src, nil)
	for i := 0; i < 2; i++ {
		bars, err := tm.GetCandles(context.Background(), "BTCUSDT", market.TF1h, 10)
		require.NoError(t, err)
		assert.Empty(t, bars)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestCandleCacheExpiry(t *testing.T) {
	c := NewCandleCache()
	ctx := context.Background()

	c.Set(ctx, "a", shapedBars(market.TF1h, 1), time.Hour)
	c.Set(ctx, "b", shapedBars(market.TF1h, 1), -time.Second)

	_, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok, "expired entries should miss")

	c.Clear()
	assert.Len(t, c.data, 1)
}

func TestCacheTTL(t *testing.T) {
	assert.Equal(t, 2*time.Hour, CacheTTL(market.TF4h))
	assert.Equal(t, 30*time.Minute, CacheTTL(market.TF1h))
	assert.Equal(t, time.Minute, CacheTTL(market.Timeframe("3m")))
	assert.Equal(t, "BTCUSDT:4h:200", CacheKey("BTCUSDT", market.TF4h, 200))
}
