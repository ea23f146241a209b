// Package app builds the infrastructure shared by the live bot and the tools
// from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fortis-trading-bot/config"
	"fortis-trading-bot/internal/analysis"
	"fortis-trading-bot/internal/binance"
	"fortis-trading-bot/internal/cache"
	"fortis-trading-bot/internal/database"
	"fortis-trading-bot/internal/events"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/metrics"
	"fortis-trading-bot/internal/notification"
	"fortis-trading-bot/internal/publisher"
	"fortis-trading-bot/internal/scanner"
	"fortis-trading-bot/internal/vault"
)

// Options tune what Build wires
type Options struct {
	Console    io.Writer // Adds a console notifier when set
	NoDatabase bool      // Skip PostgreSQL even when enabled
	NoKafka    bool
}

// Components are the clients built from the configuration. Nil fields are
// disabled in the configuration.
type Components struct {
	Config    *config.Config
	Source    market.RangeSource
	Cache     *cache.CacheService
	DB        *database.DB
	Store     *database.Store
	Publisher *publisher.Publisher
	Notifier  *notification.Manager
	Vault     *vault.Client
	Metrics   *metrics.Recorder
	EventBus  *events.EventBus

	log *logging.Logger
}

// InitLogging installs the configured logger as the default
func InitLogging(cfg *config.Config, component string) *logging.Logger {
	lc := cfg.Logging
	lc.Component = component
	logger := logging.New(&lc)
	logging.SetDefault(logger)
	return logger
}

// Build connects every enabled dependency. Vault credentials are applied to
// cfg before the exchange and Telegram clients are created. Failures of
// optional sinks are returned; a missing secret is not a failure.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	c := &Components{
		Config:   cfg,
		EventBus: events.NewEventBus(),
		log:      logging.WithComponent("app"),
	}

	v, err := vault.NewClient(cfg.Vault)
	if err != nil {
		return nil, err
	}
	c.Vault = v
	if v.IsEnabled() {
		if err := v.Apply(ctx, cfg); err != nil {
			if !errors.Is(err, vault.ErrNotFound) {
				return nil, err
			}
			c.log.Warn("No credentials stored in vault, using configured values")
		}
	}

	if cfg.Binance.MockMode {
		c.Source = binance.NewMockClient()
		c.log.Info("Using simulated market data")
	} else {
		c.Source = binance.NewClient(cfg.Binance.APIKey, cfg.Binance.BaseURL, cfg.Binance.RequestsPerSec,
			time.Duration(cfg.Binance.Timeout)*time.Second)
	}

	if cfg.Redis.Enabled {
		c.Cache = cache.NewCacheService(cache.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	}

	if cfg.Database.Enabled && !opts.NoDatabase {
		db, err := database.NewDB(ctx, database.Config{DSN: cfg.Database.DSN(), MaxConns: cfg.Database.MaxConns})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			c.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		c.DB = db
		c.Store = database.NewStore(db)
	}

	if cfg.Kafka.Enabled && !opts.NoKafka {
		p, err := publisher.New(publisher.Config{
			Brokers:     cfg.Kafka.Brokers,
			SignalTopic: cfg.Kafka.SignalTopic,
			TradeTopic:  cfg.Kafka.TradeTopic,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		c.Publisher = p
	}

	c.Notifier = notification.NewManager()
	telegram, err := notification.NewTelegramNotifier(notification.TelegramConfig{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		Enabled:  cfg.Telegram.Enabled,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Notifier.AddNotifier(telegram)
	if opts.Console != nil {
		c.Notifier.AddNotifier(notification.NewConsoleNotifier(opts.Console))
	}

	if cfg.Metrics.Enabled {
		c.Metrics = metrics.New()
	}

	c.log.Info("Components ready",
		"vault", c.Vault.IsEnabled(),
		"redis", c.Cache != nil,
		"database", c.Store != nil,
		"kafka", c.Publisher != nil,
		"telegram", telegram.IsEnabled(),
		"metrics", c.Metrics != nil)
	return c, nil
}

// Frames returns a multi-timeframe fetcher over the source, cached in Redis
// when configured
func (c *Components) Frames() *analysis.TimeframeManager {
	var store analysis.CandleStore
	if c.Cache != nil {
		store = cache.NewBarCache(c.Cache)
	}
	return analysis.NewTimeframeManager(c.Source, store)
}

// Scanner builds a scanner over the configured symbols with every enabled sink attached
func (c *Components) Scanner() (*scanner.Scanner, error) {
	tfs, err := c.Config.Scanner.ParsedTimeframes()
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(c.Config.Scanner.Symbols))
	for _, s := range c.Config.Scanner.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(s)))
	}

	sc := scanner.NewScanner(c.Frames(), scanner.Config{
		Enabled:      true,
		Symbols:      symbols,
		Timeframes:   tfs,
		ScanInterval: time.Duration(c.Config.Scanner.ScanInterval) * time.Second,
		Bars:         c.Config.Scanner.Bars,
		WorkerCount:  c.Config.Scanner.WorkerCount,
		PersistBars:  c.Config.Scanner.PersistBars,
		Signals:      c.Config.Analysis,
	})

	sc.SetNotifier(c.Notifier)
	sc.SetEventBus(c.EventBus)
	sc.SetMetrics(c.Metrics)
	if c.Store != nil {
		sc.SetStore(c.Store)
	}
	if c.Publisher != nil {
		sc.SetPublisher(c.Publisher)
	}
	if c.Cache != nil {
		sc.SetDeduper(c.Cache)
	}
	return sc, nil
}

// Close releases every connection
func (c *Components) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.log.WithError(err).Warn("Failed to close kafka publisher")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.log.WithError(err).Warn("Failed to close redis")
		}
	}
}
