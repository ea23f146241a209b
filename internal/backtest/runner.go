package backtest

import (
	"context"
	"fmt"
	"time"

	"fortis-trading-bot/internal/market"
)

// Runner fetches the history of a trailing window and replays it
type Runner struct {
	source market.RangeSource
	engine *Engine
	now    func() time.Time
}

// NewRunner creates a runner over source
func NewRunner(source market.RangeSource, engine *Engine) *Runner {
	return &Runner{source: source, engine: engine, now: time.Now}
}

// Engine returns the engine used for replays
func (r *Runner) Engine() *Engine {
	return r.engine
}

// RunDays backtests the last days of symbol on tf
func (r *Runner) RunDays(ctx context.Context, symbol string, tf market.Timeframe, days int) (*Result, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	end := r.now().UTC()
	start := end.AddDate(0, 0, -days)

	bars, err := r.source.FetchRange(ctx, symbol, tf, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s %s: %w", symbol, tf, err)
	}
	return r.engine.Run(ctx, symbol, tf, bars)
}
