package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fortis-trading-bot/internal/logging"
)

// Pool is the subset of pgxpool.Pool the store needs
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool Pool
	log  *logging.Logger
}

// Config holds database configuration
type Config struct {
	DSN      string
	MaxConns int32
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	db := NewWithPool(pool)
	db.log.Info("Connected to PostgreSQL", "database", poolConfig.ConnConfig.Database)
	return db, nil
}

// NewWithPool wraps an existing pool. Tests pass a pgxmock pool here.
func NewWithPool(pool Pool) *DB {
	return &DB{Pool: pool, log: logging.WithComponent("database")}
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info("Database connection closed")
	}
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS candles (
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(4) NOT NULL,
		open_time TIMESTAMPTZ NOT NULL,
		open DECIMAL(20, 8) NOT NULL,
		high DECIMAL(20, 8) NOT NULL,
		low DECIMAL(20, 8) NOT NULL,
		close DECIMAL(20, 8) NOT NULL,
		volume DECIMAL(20, 8) NOT NULL,
		PRIMARY KEY (symbol, timeframe, open_time)
	)`,

	`CREATE TABLE IF NOT EXISTS signals (
		id UUID PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(4) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		origin VARCHAR(8) NOT NULL,
		zone_price DECIMAL(20, 8) NOT NULL,
		trigger_type VARCHAR(32) NOT NULL,
		entry_price DECIMAL(20, 8) NOT NULL,
		stop_loss DECIMAL(20, 8) NOT NULL,
		take_profit DECIMAL(20, 8) NOT NULL,
		risk_reward DECIMAL(10, 4) NOT NULL,
		convergence_score DECIMAL(6, 4) NOT NULL,
		grade VARCHAR(2) NOT NULL,
		is_valid BOOLEAN NOT NULL DEFAULT TRUE,
		signal_time TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_symbol_time ON signals(symbol, signal_time DESC)`,

	`CREATE TABLE IF NOT EXISTS backtests (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(4) NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		initial_capital DECIMAL(20, 8) NOT NULL,
		final_capital DECIMAL(20, 8) NOT NULL,
		total_trades INTEGER NOT NULL,
		total_pnl DECIMAL(20, 8) NOT NULL,
		win_rate DECIMAL(10, 4) NOT NULL,
		profit_factor DECIMAL(20, 8) NOT NULL,
		max_drawdown DECIMAL(10, 4) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS trades (
		id UUID PRIMARY KEY,
		backtest_id INTEGER REFERENCES backtests(id) ON DELETE CASCADE,
		signal_id UUID,
		symbol VARCHAR(20) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		trigger_type VARCHAR(32),
		entry_time TIMESTAMPTZ NOT NULL,
		entry_price DECIMAL(20, 8) NOT NULL,
		stop_loss DECIMAL(20, 8) NOT NULL,
		take_profit DECIMAL(20, 8) NOT NULL,
		size DECIMAL(20, 8) NOT NULL,
		exit_time TIMESTAMPTZ,
		exit_price DECIMAL(20, 8),
		exit_reason VARCHAR(20),
		pnl DECIMAL(20, 8),
		pnl_percent DECIMAL(10, 4),
		bars_held INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_backtest ON trades(backtest_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info("Running database migrations...")

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info("Database migrations completed", "count", len(migrations))
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
