package binance

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"fortis-trading-bot/internal/market"
)

// MockClient provides simulated market data for offline runs. Series are a
// random walk seeded from the symbol and timeframe, so repeated fetches agree.
type MockClient struct {
	prices map[string]float64
	now    func() time.Time
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		prices: map[string]float64{
			"BTCUSDT": 104500.00,
			"ETHUSDT": 3900.00,
			"BNBUSDT": 710.00,
			"SOLUSDT": 220.00,
			"XRPUSDT": 2.35,
			"ADAUSDT": 1.05,
		},
		now: time.Now,
	}
}

// Fetch returns limit simulated bars ending at the current bar boundary
func (mc *MockClient) Fetch(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step := tf.Duration()
	if step <= 0 {
		step = time.Minute
	}
	end := mc.now().UTC().Truncate(step)
	return mc.series(symbol, tf, end.Add(-time.Duration(limit)*step), limit), nil
}

// FetchRange returns simulated bars covering [start, end)
func (mc *MockClient) FetchRange(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step := tf.Duration()
	if step <= 0 {
		step = time.Minute
	}
	start = start.UTC().Truncate(step)
	n := int(end.Sub(start) / step)
	if n < 0 {
		n = 0
	}
	return mc.series(symbol, tf, start, n), nil
}

func (mc *MockClient) series(symbol string, tf market.Timeframe, start time.Time, n int) []market.Bar {
	basePrice, ok := mc.prices[symbol]
	if !ok {
		basePrice = 100.0
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(tf))
	h.Write([]byte(start.Format(time.RFC3339)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	step := tf.Duration()
	if step <= 0 {
		step = time.Minute
	}

	bars := make([]market.Bar, n)
	volatility := 0.02
	price := basePrice
	for i := range bars {
		open := price
		change := (rng.Float64() - 0.5) * volatility * 2
		closePrice := open * (1 + change)

		bars[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      open,
			High:      math.Max(open, closePrice) * (1 + rng.Float64()*volatility*0.5),
			Low:       math.Min(open, closePrice) * (1 - rng.Float64()*volatility*0.5),
			Close:     closePrice,
			Volume:    1000 + rng.Float64()*5000,
			Timeframe: tf,
		}
		price = closePrice
	}
	return bars
}

var (
	_ market.Source      = (*MockClient)(nil)
	_ market.RangeSource = (*MockClient)(nil)
)
