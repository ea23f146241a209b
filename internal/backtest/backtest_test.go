package backtest

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/signals"
	"fortis-trading-bot/internal/triggers"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// flatBars builds n bars around 100 with a 1 point range
func flatBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      100,
			High:      100.5,
			Low:       99.5,
			Close:     100,
			Volume:    1000,
		}
	}
	return bars
}

func signal(dir market.Direction, entry, stop, target float64) *signals.Signal {
	return &signals.Signal{
		ID:          "sig",
		Symbol:      "BTCUSDT",
		Direction:   dir,
		TriggerType: triggers.Engulfing,
		EntryPrice:  entry,
		StopLoss:    stop,
		TakeProfit1: target,
		IsValid:     true,
	}
}

// scripted emits the given signals when the window ends at the keyed index
func scripted(at map[int][]*signals.Signal, calls *[]int) func(string, market.Timeframe) SignalSource {
	return func(string, market.Timeframe) SignalSource {
		return SourceFunc(func(bars []market.Bar) (*signals.Result, error) {
			idx := len(bars) - 1
			if calls != nil {
				*calls = append(*calls, idx)
			}
			return &signals.Result{Signals: at[idx]}, nil
		})
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestRunRejectsShortHistory(t *testing.T) {
	var calls []int
	e := NewEngineWithSource(DefaultConfig(), scripted(nil, &calls))

	_, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, flatBars(99))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Should reject 99 bars, got %v", err)
	}
	if len(calls) != 0 {
		t.Error("Should not generate signals before validating the history length")
	}
}

func TestRunGeneratesEveryFifthBarAfterWarmUp(t *testing.T) {
	var calls []int
	e := NewEngineWithSource(DefaultConfig(), scripted(nil, &calls))

	res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, flatBars(100))
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 10 || calls[0] != 50 || calls[9] != 95 {
		t.Errorf("generator called at %v", calls)
	}
	for i, idx := range calls {
		if idx%5 != 0 {
			t.Errorf("call %d at index %d", i, idx)
		}
	}
	if len(res.EquityCurve) != 50 {
		t.Errorf("equity points = %d, want 50", len(res.EquityCurve))
	}
	if res.TotalTrades() != 0 || res.FinalCapital != 10000 {
		t.Errorf("unexpected result without signals: %+v", res)
	}
}

func TestStopLossCheckedBeforeTakeProfit(t *testing.T) {
	bars := flatBars(120)
	// Bar 53 spans both the stop (98) and the target (104)
	bars[53].Low = 97
	bars[53].High = 105

	e := NewEngineWithSource(DefaultConfig(), scripted(map[int][]*signals.Signal{
		50: {signal(market.Bullish, 100, 98, 104)},
	}, nil))
	res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, bars)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades() != 1 {
		t.Fatalf("trades = %d, want 1", res.TotalTrades())
	}

	tr := res.Trades[0]
	if tr.ExitReason != ReasonStopLoss || tr.ExitPrice != 98 {
		t.Errorf("exit = %s at %f, want stop_loss at 98", tr.ExitReason, tr.ExitPrice)
	}
	if tr.BarsHeld != 3 {
		t.Errorf("bars held = %d, want 3", tr.BarsHeld)
	}
	if !approx(tr.PnLPercent, -0.022) {
		t.Errorf("pnl percent = %f, want -0.022", tr.PnLPercent)
	}

	// Operative 5000 risks 1% = 50 over a 2 point stop: 25 units
	if !approx(tr.Size, 25) {
		t.Errorf("size = %f, want 25", tr.Size)
	}
	// 25 x -2 minus fees 2 x 0.001 x 100 x 25
	if !approx(tr.PnL, -55) {
		t.Errorf("pnl = %f, want -55", tr.PnL)
	}
	if !approx(res.FinalCapital, 9945) {
		t.Errorf("final capital = %f, want 9945", res.FinalCapital)
	}
	if !approx(res.MaxDrawdown(), 55.0/10000) {
		t.Errorf("max drawdown = %f", res.MaxDrawdown())
	}
	if res.WinRate() != 0 || res.LosingTrades() != 1 {
		t.Errorf("win rate = %f losing = %d", res.WinRate(), res.LosingTrades())
	}
}

func TestBearishTakeProfit(t *testing.T) {
	bars := flatBars(120)
	bars[60].Low = 95

	e := NewEngineWithSource(DefaultConfig(), scripted(map[int][]*signals.Signal{
		55: {signal(market.Bearish, 100, 102, 96)},
	}, nil))
	res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, bars)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades() != 1 {
		t.Fatalf("trades = %d, want 1", res.TotalTrades())
	}
	tr := res.Trades[0]
	if tr.ExitReason != ReasonTakeProfit || tr.ExitPrice != 96 || tr.BarsHeld != 5 {
		t.Errorf("unexpected exit: %+v", tr)
	}
	if !approx(tr.PnLPercent, 0.04-0.002) {
		t.Errorf("pnl percent = %f", tr.PnLPercent)
	}
	if tr.PnL <= 0 || res.WinRate() != 1 {
		t.Errorf("Should record a winning trade: pnl = %f", tr.PnL)
	}
}

func TestEndOfDataCloses(t *testing.T) {
	bars := flatBars(100)

	e := NewEngineWithSource(DefaultConfig(), scripted(map[int][]*signals.Signal{
		90: {signal(market.Bearish, 100, 110, 80)},
	}, nil))
	res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, bars)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades() != 1 {
		t.Fatalf("trades = %d, want 1", res.TotalTrades())
	}
	tr := res.Trades[0]
	if tr.ExitReason != ReasonEndOfData || tr.ExitPrice != 100 || tr.BarsHeld != 9 {
		t.Errorf("unexpected exit: %+v", tr)
	}
	if !approx(tr.PnLPercent, -0.002) {
		t.Errorf("Should deduct commission twice: %f", tr.PnLPercent)
	}
}

func TestOpenTradeLimits(t *testing.T) {
	bars := flatBars(100)

	e := NewEngineWithSource(DefaultConfig(), scripted(map[int][]*signals.Signal{
		50: {
			signal(market.Bullish, 100, 90, 120),
			signal(market.Bullish, 100, 95, 120),
			signal(market.Bearish, 100, 110, 80),
		},
		55: {signal(market.Bullish, 100, 90, 120)},
	}, nil))
	res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, bars)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades() != 2 {
		t.Fatalf("Should hold one trade per direction, got %d", res.TotalTrades())
	}
	if res.Trades[0].Direction == res.Trades[1].Direction {
		t.Error("Should not open two trades in the same direction")
	}
}

func TestEquityMarksOpenTrades(t *testing.T) {
	bars := flatBars(100)
	bars[52].Close = 101

	e := NewEngineWithSource(DefaultConfig(), scripted(map[int][]*signals.Signal{
		50: {signal(market.Bullish, 100, 98, 110)},
	}, nil))
	res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, bars)
	if err != nil {
		t.Fatal(err)
	}
	// Operative 5000 plus 25 units x 1 point
	if got := res.EquityCurve[2].Equity; !approx(got, 5025) {
		t.Errorf("equity at bar 52 = %f, want 5025", got)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngineWithSource(DefaultConfig(), scripted(nil, nil))
	if _, err := e.Run(ctx, "BTCUSDT", market.TF1h, flatBars(120)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestReportAndTradeLog(t *testing.T) {
	res := &Result{
		Symbol:         "ETHUSDT",
		Timeframe:      market.TF4h,
		StartDate:      t0,
		EndDate:        t0.Add(48 * time.Hour),
		InitialCapital: 10000,
		FinalCapital:   10150,
		Trades: []*Trade{
			{Direction: market.Bullish, PnL: 200, PnLPercent: 0.038, BarsHeld: 4, ExitReason: ReasonTakeProfit, Trigger: triggers.Engulfing},
			{Direction: market.Bearish, PnL: -50, PnLPercent: -0.022, BarsHeld: 2, ExitReason: ReasonStopLoss, Trigger: triggers.FakeOut},
		},
	}

	if !approx(res.ProfitFactor(), 4) || !approx(res.WinRate(), 0.5) || !approx(res.AvgBarsHeld(), 3) {
		t.Errorf("pf = %f wr = %f bars = %f", res.ProfitFactor(), res.WinRate(), res.AvgBarsHeld())
	}
	if !approx(res.TotalReturn(), 0.015) || !approx(res.AvgPnLPercent(), 0.008) {
		t.Errorf("return = %f avg = %f", res.TotalReturn(), res.AvgPnLPercent())
	}

	report := res.Report()
	for _, want := range []string{"BACKTEST REPORT", "Symbol: ETHUSDT", "Period: 2024-01-01 to 2024-01-03", "Total Return: 1.50%", "Win Rate: 50.0%", "Profit Factor: 4.00"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	log := res.TradeLog()
	if len(log) != 2 || log[1].Trigger != triggers.FakeOut || log[1].ExitReason != ReasonStopLoss {
		t.Errorf("unexpected trade log: %+v", log)
	}
}

func TestCircuitBreakerBlocksAfterLossStreak(t *testing.T) {
	bars := flatBars(120)
	bars[53].Low = 97

	cfg := DefaultConfig()
	cfg.Breaker.Enabled = true
	cfg.Breaker.MaxConsecutiveLosses = 1
	cfg.Breaker.CooldownMinutes = 240

	e := NewEngineWithSource(cfg, scripted(map[int][]*signals.Signal{
		50: {signal(market.Bullish, 100, 98, 104)},
		55: {signal(market.Bullish, 100, 98, 104)}, // 2 bars after the trip
		60: {signal(market.Bullish, 100, 98, 104)}, // 7 bars after the trip
	}, nil))
	res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, bars)
	if err != nil {
		t.Fatal(err)
	}

	if res.TotalTrades() != 2 {
		t.Fatalf("trades = %d, want 2", res.TotalTrades())
	}
	if res.Trades[1].EntryIndex != 60 {
		t.Errorf("second entry at %d, want 60 after the cooldown", res.Trades[1].EntryIndex)
	}
	if res.Trades[1].ExitReason != ReasonEndOfData {
		t.Errorf("second exit = %s, want end_of_data", res.Trades[1].ExitReason)
	}
}

func TestRiskStopHaltsEntriesWithoutBreaker(t *testing.T) {
	tests := []struct {
		name        string
		maxDrawdown float64
		wantTrades  int
	}{
		{"default ceiling", 0.2, 2},
		// The first loss is 55 on 5000 operative, 1.1%
		{"ceiling reached", 0.01, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := flatBars(120)
			bars[53].Low = 97

			cfg := DefaultConfig()
			cfg.Risk.MaxDrawdown = tt.maxDrawdown
			e := NewEngineWithSource(cfg, scripted(map[int][]*signals.Signal{
				50: {signal(market.Bullish, 100, 98, 104)},
				55: {signal(market.Bullish, 100, 98, 104)},
			}, nil))
			res, err := e.Run(context.Background(), "BTCUSDT", market.TF1h, bars)
			if err != nil {
				t.Fatal(err)
			}
			if res.TotalTrades() != tt.wantTrades {
				t.Errorf("trades = %d, want %d", res.TotalTrades(), tt.wantTrades)
			}
		})
	}
}
