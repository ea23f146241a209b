package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/signals"
	"fortis-trading-bot/internal/triggers"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewStore(NewWithPool(mockPool)), mockPool
}

func TestRunMigrations(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.MatchExpectationsInOrder(true)
	for range migrations {
		mockPool.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	db := NewWithPool(mockPool)
	require.NoError(t, db.RunMigrations(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRunMigrationsStopsOnFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS candles").WillReturnError(errors.New("permission denied"))

	err = NewWithPool(mockPool).RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1 failed")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveCandles(t *testing.T) {
	store, mockPool := newMockStore(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []market.Bar{
		{Timestamp: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10, Timeframe: market.TF1h},
		{Timestamp: start.Add(time.Hour), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12, Timeframe: market.TF1h},
	}

	mockPool.ExpectBegin()
	for _, b := range bars {
		mockPool.ExpectExec("INSERT INTO candles").
			WithArgs("BTCUSDT", "1h", b.Timestamp,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mockPool.ExpectCommit()

	n, err := store.SaveCandles(context.Background(), "BTCUSDT", bars)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveCandlesRollsBackOnError(t *testing.T) {
	store, mockPool := newMockStore(t)
	bars := []market.Bar{{Timestamp: time.Now(), Open: 1, High: 1, Low: 1, Close: 1, Timeframe: market.TF4h}}

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO candles").WillReturnError(errors.New("disk full"))
	mockPool.ExpectRollback()

	_, err := store.SaveCandles(context.Background(), "ETHUSDT", bars)
	require.Error(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveCandlesEmpty(t *testing.T) {
	store, mockPool := newMockStore(t)

	n, err := store.SaveCandles(context.Background(), "BTCUSDT", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveSignal(t *testing.T) {
	store, mockPool := newMockStore(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sig := &signals.Signal{
		ID:          "6b0e3c1e-8f5c-4b7a-9a53-2f1f0c3b9d11",
		Timestamp:   ts,
		Symbol:      "BTCUSDT",
		Timeframe:   market.TF4h,
		Direction:   market.Bullish,
		Origin:      signals.FromLine,
		ZonePrice:   100,
		TriggerType: triggers.Engulfing,
		EntryPrice:  100,
		StopLoss:    98,
		TakeProfit1: 104,
		RiskReward:  2,
		Grade:       "B",
		IsValid:     true,
	}

	mockPool.ExpectExec("INSERT INTO signals").
		WithArgs(sig.ID, "BTCUSDT", "4h", "BULLISH", "LINE", pgxmock.AnyArg(), string(triggers.Engulfing),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"B", true, ts).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveSignal(context.Background(), sig))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecentSignals(t *testing.T) {
	store, mockPool := newMockStore(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "symbol", "timeframe", "direction", "origin", "zone_price", "trigger_type",
		"entry_price", "stop_loss", "take_profit", "risk_reward", "convergence_score",
		"grade", "is_valid", "signal_time",
	}).AddRow("a", "ETHUSDT", "1h", "BEARISH", "PATTERN", 200.0, "TWEEZERS",
		200.0, 204.0, 192.0, 2.0, 0.65, "B", true, ts)

	mockPool.ExpectQuery("SELECT (.+) FROM signals").
		WithArgs("ETHUSDT", 10).
		WillReturnRows(rows)

	got, err := store.RecentSignals(context.Background(), "ETHUSDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, market.Bearish, got[0].Direction)
	assert.Equal(t, market.TF1h, got[0].Timeframe)
	assert.Equal(t, signals.FromPattern, got[0].Origin)
	assert.Equal(t, 204.0, got[0].StopLoss)
	assert.Equal(t, ts, got[0].Timestamp)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveBacktest(t *testing.T) {
	store, mockPool := newMockStore(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result := &backtest.Result{
		Symbol:         "BTCUSDT",
		Timeframe:      market.TF4h,
		StartDate:      start,
		EndDate:        start.Add(100 * 4 * time.Hour),
		InitialCapital: 10000,
		FinalCapital:   10045,
		Trades: []*backtest.Trade{
			{ID: "t1", Direction: market.Bullish, EntryPrice: 100, StopLoss: 98, TakeProfit: 104, Size: 25,
				ExitPrice: 104, ExitReason: backtest.ReasonTakeProfit, PnL: 100},
			{ID: "t2", Direction: market.Bearish, EntryPrice: 100, StopLoss: 102, TakeProfit: 96, Size: 25,
				ExitPrice: 102, ExitReason: backtest.ReasonStopLoss, PnL: -55},
		},
	}

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("INSERT INTO backtests").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mockPool.ExpectExec("INSERT INTO trades").
		WithArgs("t1", int64(7), nil, "BTCUSDT", "BULLISH", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), "take_profit", pgxmock.AnyArg(), pgxmock.AnyArg(), 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO trades").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	id, err := store.SaveBacktest(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveBacktestInsertFailure(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("INSERT INTO backtests").WillReturnError(errors.New("constraint violation"))
	mockPool.ExpectRollback()

	_, err := store.SaveBacktest(context.Background(), &backtest.Result{Symbol: "BTCUSDT", Timeframe: market.TF1h})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert backtest")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
