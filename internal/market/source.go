package market

import (
	"context"
	"time"
)

// Source fetches bars for one symbol/timeframe pair in ascending timestamp order.
// An empty result means "no data" and is not an error.
type Source interface {
	Fetch(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Bar, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Bar, error)

func (f SourceFunc) Fetch(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Bar, error) {
	return f(ctx, symbol, tf, limit)
}

// RangeSource fetches every bar of a pair between start and end
type RangeSource interface {
	Source
	FetchRange(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) ([]Bar, error)
}
