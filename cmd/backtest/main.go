// Command backtest replays the trailing history of one symbol through the
// signal pipeline and prints the report and the trade log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"fortis-trading-bot/config"
	"fortis-trading-bot/internal/app"
	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/market"
)

type reasonStats struct {
	Reason string
	Trades int
	PnL    float64
}

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to backtest")
	timeframe := flag.String("timeframe", "4h", "bar timeframe")
	capital := flag.Float64("capital", 10000, "initial capital")
	days := flag.Int("days", 365, "days of history to replay")
	persist := flag.Bool("persist", false, "save the result to PostgreSQL")
	publish := flag.Bool("publish", false, "publish the trades to Kafka")
	mock := flag.Bool("mock", false, "use simulated market data")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Risk.InitialCapital = *capital
	if *mock {
		cfg.Binance.MockMode = true
	}
	app.InitLogging(cfg, "backtest")

	tf, err := market.ParseTimeframe(*timeframe)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, app.Options{NoDatabase: !*persist, NoKafka: !*publish})
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	sym := strings.ToUpper(*symbol)
	fmt.Printf("🔄 Backtesting %s %s over %d days...\n", sym, tf, *days)

	runner := backtest.NewRunner(components.Source, backtest.NewEngine(cfg.Engine()))
	result, err := runner.RunDays(ctx, sym, tf, *days)
	if err != nil {
		fmt.Printf("❌ Backtest failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(result.Report())
	printTradeLog(result)
	printByReason(result)

	if *persist {
		if components.Store == nil {
			fmt.Println("⚠️  Persistence requested but the database is disabled")
		} else if id, err := components.Store.SaveBacktest(ctx, result); err != nil {
			fmt.Printf("❌ Failed to save backtest: %v\n", err)
		} else {
			fmt.Printf("💾 Saved backtest #%d\n", id)
		}
	}

	if *publish {
		if components.Publisher == nil {
			fmt.Println("⚠️  Publishing requested but Kafka is disabled")
		} else if err := components.Publisher.PublishBacktest(ctx, result); err != nil {
			fmt.Printf("❌ Failed to publish trades: %v\n", err)
		} else {
			fmt.Printf("📤 Published %d trades\n", result.TotalTrades())
		}
	}
}

func printTradeLog(r *backtest.Result) {
	log := r.TradeLog()
	if len(log) == 0 {
		fmt.Println("\nNo trades")
		return
	}

	fmt.Println("\nTRADE LOG")
	fmt.Printf("%-16s %-8s %12s %12s %10s %8s %5s  %s\n",
		"Entry", "Side", "Entry Px", "Exit Px", "PnL", "PnL %", "Bars", "Exit")
	for _, e := range log {
		emoji := "🟢"
		if e.PnL < 0 {
			emoji = "🔴"
		}
		fmt.Printf("%-16s %-8s %12.4f %12.4f %+10.2f %+7.2f%% %5d  %s %s\n",
			e.EntryTime.Format("2006-01-02 15:04"), e.Direction,
			e.EntryPrice, e.ExitPrice, e.PnL, e.PnLPercent*100, e.BarsHeld,
			emoji, e.ExitReason)
	}
}

func printByReason(r *backtest.Result) {
	byReason := make(map[string]*reasonStats)
	for _, t := range r.Trades {
		s, ok := byReason[t.ExitReason]
		if !ok {
			s = &reasonStats{Reason: t.ExitReason}
			byReason[t.ExitReason] = s
		}
		s.Trades++
		s.PnL += t.PnL
	}
	if len(byReason) == 0 {
		return
	}

	sorted := make([]*reasonStats, 0, len(byReason))
	for _, s := range byReason {
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PnL > sorted[j].PnL
	})

	fmt.Println("\nBY EXIT REASON")
	for _, s := range sorted {
		fmt.Printf("%-12s %4d trades %+12.2f\n", s.Reason, s.Trades, s.PnL)
	}
}
