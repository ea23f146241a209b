package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fortis-trading-bot/config"
	"fortis-trading-bot/internal/api"
	"fortis-trading-bot/internal/app"
	"fortis-trading-bot/internal/auth"
	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/events"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/notification"
	"fortis-trading-bot/internal/risk"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.InitLogging(cfg, "main")
	logger.Info("Structured logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		logger.Fatal("Failed to initialize components", "error", err)
	}
	defer components.Close()

	sc, err := components.Scanner()
	if err != nil {
		logger.Fatal("Invalid scanner configuration", "error", err)
	}

	riskManager := risk.NewManager(cfg.Risk)
	logger.Info("Risk ledger initialized",
		"capital", cfg.Risk.InitialCapital,
		"risk_per_trade", cfg.Risk.RiskPerTrade,
		"block_size", cfg.Risk.BlockSize)

	setupEventLogging(components.EventBus, logger)

	// Initialize API server
	var server *api.Server
	if cfg.Server.Enabled {
		deps := api.Deps{
			Feed:       sc,
			Backtester: backtest.NewRunner(components.Source, backtest.NewEngine(cfg.Engine())),
			Risk:       riskManager,
			EventBus:   components.EventBus,
			Metrics:    components.Metrics,
		}
		if components.Store != nil {
			deps.Store = components.Store
		}
		if cfg.Auth.Enabled {
			deps.JWT = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenDuration)
		}
		if components.Vault.IsEnabled() {
			deps.Vault = components.Vault
		}

		server = api.NewServer(api.ServerConfig{
			Port:            cfg.Server.Port,
			Host:            cfg.Server.Host,
			AllowedOrigins:  splitOrigins(cfg.Server.AllowedOrigins),
			ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
			ProductionMode:  !cfg.Binance.MockMode,
			MetricsPath:     cfg.Metrics.Path,
			PersistBacktest: cfg.Backtest.Persist,
		}, deps)

		go func() {
			if err := server.Start(); err != nil {
				logger.Error("API server failed", "error", err)
			}
		}()
	}

	sc.Start()
	logger.Info("Scanner started",
		"symbols", cfg.Scanner.Symbols,
		"timeframes", cfg.Scanner.Timeframes,
		"interval_sec", cfg.Scanner.ScanInterval)

	go runDailySummary(ctx, components.Notifier, riskManager, cfg.Risk.BlockSize)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	sc.Stop()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		shutdownCancel()
	}

	logger.Info("Shutdown complete")
}

// setupEventLogging mirrors error and breaker events into the log
func setupEventLogging(bus *events.EventBus, logger *logging.Logger) {
	l := logger.WithComponent("events")

	bus.Subscribe(events.EventError, func(e events.Event) {
		l.Warn("Error event",
			"source", e.Data["source"],
			"message", e.Data["message"],
			"error", e.Data["error"])
	})
	bus.Subscribe(events.EventCircuitUpdate, func(e events.Event) {
		l.Info("Circuit breaker update", "state", e.Data["state"], "reason", e.Data["reason"])
	})
}

// runDailySummary sends the risk ledger summary at every UTC midnight
func runDailySummary(ctx context.Context, notifier *notification.Manager, rm *risk.Manager, blockSize int) {
	if notifier == nil || !notifier.Enabled() {
		return
	}

	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := notifier.SendDailySummary(ctx, rm.Stats(), blockSize); err != nil {
				logging.Warn("Failed to send daily summary", "error", err)
			}
		}
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
