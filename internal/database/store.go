package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/signals"
	"fortis-trading-bot/internal/triggers"
)

// Store persists candles, signals and backtest runs
type Store struct {
	db *DB
}

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// HealthCheck performs a database health check
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// dec converts a float price to an exact 8-decimal value for DECIMAL(20,8) columns
func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(8)
}

// ============================================================================
// CANDLES
// ============================================================================

const upsertCandle = `
	INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol, timeframe, open_time) DO UPDATE
	SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		close = EXCLUDED.close, volume = EXCLUDED.volume
`

// SaveCandles upserts bars in a single transaction
func (s *Store) SaveCandles(ctx context.Context, symbol string, bars []market.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range bars {
		if _, err := tx.Exec(ctx, upsertCandle,
			symbol, string(b.Timeframe), b.Timestamp.UTC(),
			dec(b.Open), dec(b.High), dec(b.Low), dec(b.Close), dec(b.Volume),
		); err != nil {
			return 0, fmt.Errorf("failed to save candle %s: %w", b.Timestamp.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit candles: %w", err)
	}
	return len(bars), nil
}

// Candles returns the most recent bars for a pair in chronological order
func (s *Store) Candles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Bar, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY open_time DESC
		LIMIT $3
	`, symbol, string(tf), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		b := market.Bar{Timeframe: tf}
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// ============================================================================
// SIGNALS
// ============================================================================

// SaveSignal inserts a signal; saving it again only refreshes its validity
func (s *Store) SaveSignal(ctx context.Context, sig *signals.Signal) error {
	query := `
		INSERT INTO signals (
			id, symbol, timeframe, direction, origin, zone_price, trigger_type,
			entry_price, stop_loss, take_profit, risk_reward, convergence_score,
			grade, is_valid, signal_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET is_valid = EXCLUDED.is_valid
	`
	_, err := s.db.Pool.Exec(ctx, query,
		sig.ID, sig.Symbol, string(sig.Timeframe), string(sig.Direction), string(sig.Origin),
		dec(sig.ZonePrice), string(sig.TriggerType),
		dec(sig.EntryPrice), dec(sig.StopLoss), dec(sig.TakeProfit1),
		decimal.NewFromFloat(sig.RiskReward).Round(4), decimal.NewFromFloat(sig.ConvergenceScore).Round(4),
		sig.Grade, sig.IsValid, sig.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}
	return nil
}

// RecentSignals returns the newest signals first. An empty symbol matches every pair.
func (s *Store) RecentSignals(ctx context.Context, symbol string, limit int) ([]*signals.Signal, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, symbol, timeframe, direction, origin, zone_price, trigger_type,
			entry_price, stop_loss, take_profit, risk_reward, convergence_score,
			grade, is_valid, signal_time
		FROM signals
		WHERE $1 = '' OR symbol = $1
		ORDER BY signal_time DESC
		LIMIT $2
	`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*signals.Signal
	for rows.Next() {
		var sig signals.Signal
		var tf, direction, origin, triggerType string
		err := rows.Scan(
			&sig.ID, &sig.Symbol, &tf, &direction, &origin, &sig.ZonePrice, &triggerType,
			&sig.EntryPrice, &sig.StopLoss, &sig.TakeProfit1, &sig.RiskReward, &sig.ConvergenceScore,
			&sig.Grade, &sig.IsValid, &sig.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		sig.Timeframe = market.Timeframe(tf)
		sig.Direction = market.Direction(direction)
		sig.Origin = signals.Origin(origin)
		sig.TriggerType = triggers.Kind(triggerType)
		out = append(out, &sig)
	}
	return out, rows.Err()
}

// ============================================================================
// BACKTESTS
// ============================================================================

// BacktestSummary is a stored backtest run without its trades
type BacktestSummary struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalTrades    int       `json:"total_trades"`
	TotalPnL       float64   `json:"total_pnl"`
	WinRate        float64   `json:"win_rate"`
	ProfitFactor   float64   `json:"profit_factor"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	CreatedAt      time.Time `json:"created_at"`
}

// SaveBacktest saves a backtest result and its trades in a transaction
func (s *Store) SaveBacktest(ctx context.Context, r *backtest.Result) (int64, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Summed in decimal so the stored total matches the stored trade rows exactly
	total := decimal.Zero
	for _, t := range r.Trades {
		total = total.Add(dec(t.PnL))
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO backtests (
			symbol, timeframe, start_date, end_date, initial_capital, final_capital,
			total_trades, total_pnl, win_rate, profit_factor, max_drawdown
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		r.Symbol, string(r.Timeframe), r.StartDate.UTC(), r.EndDate.UTC(),
		dec(r.InitialCapital), dec(r.FinalCapital), r.TotalTrades(), total,
		decimal.NewFromFloat(r.WinRate()).Round(4), dec(r.ProfitFactor()), decimal.NewFromFloat(r.MaxDrawdown()).Round(4),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert backtest: %w", err)
	}

	query := `
		INSERT INTO trades (
			id, backtest_id, signal_id, symbol, direction, trigger_type,
			entry_time, entry_price, stop_loss, take_profit, size,
			exit_time, exit_price, exit_reason, pnl, pnl_percent, bars_held
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	for _, t := range r.Trades {
		var signalID any
		if t.Signal != nil {
			signalID = t.Signal.ID
		}
		_, err := tx.Exec(ctx, query,
			t.ID, id, signalID, r.Symbol, string(t.Direction), string(t.Trigger),
			t.EntryTime.UTC(), dec(t.EntryPrice), dec(t.StopLoss), dec(t.TakeProfit), dec(t.Size),
			t.ExitTime.UTC(), dec(t.ExitPrice), t.ExitReason, dec(t.PnL),
			decimal.NewFromFloat(t.PnLPercent*100).Round(4), t.BarsHeld,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit backtest: %w", err)
	}
	return id, nil
}

// RecentBacktests lists stored runs, newest first
func (s *Store) RecentBacktests(ctx context.Context, limit int) ([]BacktestSummary, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, symbol, timeframe, start_date, end_date, initial_capital, final_capital,
			total_trades, total_pnl, win_rate, profit_factor, max_drawdown, created_at
		FROM backtests
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestSummary
	for rows.Next() {
		var b BacktestSummary
		err := rows.Scan(
			&b.ID, &b.Symbol, &b.Timeframe, &b.StartDate, &b.EndDate, &b.InitialCapital, &b.FinalCapital,
			&b.TotalTrades, &b.TotalPnL, &b.WinRate, &b.ProfitFactor, &b.MaxDrawdown, &b.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
