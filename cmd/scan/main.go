// Command scan runs a single scan over the configured symbols and prints new
// signals to the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fortis-trading-bot/config"
	"fortis-trading-bot/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file")
	symbols := flag.String("symbols", "", "comma separated symbols, overrides the config")
	timeframes := flag.String("timeframes", "", "comma separated timeframes, overrides the config")
	mock := flag.Bool("mock", false, "use simulated market data")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *symbols != "" {
		cfg.Scanner.Symbols = strings.Split(*symbols, ",")
	}
	if *timeframes != "" {
		cfg.Scanner.Timeframes = strings.Split(*timeframes, ",")
	}
	if *mock {
		cfg.Binance.MockMode = true
	}
	app.InitLogging(cfg, "scan")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Signals go to the console; Telegram stays wired when configured.
	components, err := app.Build(ctx, cfg, app.Options{Console: os.Stdout, NoKafka: true})
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	sc, err := components.Scanner()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("🔄 Scanning %s on %s...\n",
		strings.Join(cfg.Scanner.Symbols, ", "), strings.Join(cfg.Scanner.Timeframes, ", "))
	result := sc.Scan(ctx)

	fmt.Println()
	for _, pr := range result.Pairs {
		if pr.Error != "" {
			fmt.Printf("🔴 %-10s %-4s %s\n", pr.Symbol, pr.Timeframe, pr.Error)
			continue
		}
		fmt.Printf("🟢 %-10s %-4s price=%.4f bias=%s candidates=%d validated=%d rejected=%d\n",
			pr.Symbol, pr.Timeframe, pr.Price, pr.Bias, pr.Candidates, pr.Validated, pr.Rejected)
	}

	fmt.Println()
	for _, s := range sc.Summaries() {
		fmt.Println(s)
	}
	fmt.Printf("\n📊 %d pairs, %d new signals, %d errors in %s\n",
		len(result.Pairs), len(result.NewSignals), result.Errors, result.Duration)
}
