package risk

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"fortis-trading-bot/internal/market"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCapitalSplit(t *testing.T) {
	rm := NewManager(DefaultConfig())
	c := rm.Capital()

	if c.Total != 10000 || c.Cushion != 5000 || c.Operative != 5000 {
		t.Errorf("Should split 10000 into 5000/5000, got %+v", c)
	}
	if b := rm.CurrentBlock(); b.Number != 1 || b.TradeCount() != 0 || b.StartCapital != 5000 {
		t.Errorf("Should open block 1 with start capital 5000, got %+v", b)
	}
}

func TestPositionSizing(t *testing.T) {
	rm := NewManager(DefaultConfig())

	s, err := rm.CalculatePositionSize(100, 98)
	if err != nil {
		t.Fatalf("Should size the trade, got %v", err)
	}
	if s.RiskAmount != 50 || s.PositionSize != 25 || s.RiskPercent != 0.01 {
		t.Errorf("Should risk 50 for 25 units at 1%%, got %+v", s)
	}
	if !approx(s.StopPercent, 0.02) || !approx(s.NotionalValue, 2500) {
		t.Errorf("Should derive stop percent and notional, got %+v", s)
	}

	if _, err := rm.CalculatePositionSize(100, 100); !errors.Is(err, ErrZeroStopDistance) {
		t.Errorf("Should reject a zero stop distance, got %v", err)
	}
}

func TestBlockBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiskPerTrade = 0.05
	rm := NewManager(cfg)

	for i := 0; i < 2; i++ {
		s, err := rm.CalculatePositionSize(100, 98)
		if err != nil || s.RiskPercent != 0.05 {
			t.Fatalf("trade %d: Should risk 5%%, got %+v %v", i, s, err)
		}
		if _, err := rm.RegisterTrade("", "BTCUSDT", market.Bullish, 100, 98, 106, s.PositionSize); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := rm.CalculatePositionSize(100, 98); !errors.Is(err, ErrBlockBudgetExhausted) {
		t.Errorf("Should exhaust the 10%% block budget, got %v", err)
	}

	// Closing a trade frees its share of the budget
	open := rm.OpenTrades()
	if _, err := rm.CloseTrade(open[0].ID, 101, "manual", 0); err != nil {
		t.Fatal(err)
	}
	if s, err := rm.CalculatePositionSize(100, 98); err != nil || s.RiskPercent != 0.05 {
		t.Errorf("Should size again after a close, got %+v %v", s, err)
	}
}

func TestValidateTrade(t *testing.T) {
	tests := []struct {
		name               string
		entry, stop, price float64
		dir                market.Direction
		ratio              float64
		valid              bool
	}{
		{"long 3:1", 100, 98, 106, market.Bullish, 3.0, true},
		{"long 0.4:1", 100, 95, 102, market.Bullish, 0.4, false},
		{"short 2:1", 100, 102, 96, market.Bearish, 2.0, true},
		{"long exactly 1:1", 100, 98, 102, market.Bullish, 1.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateTrade(tt.entry, tt.stop, tt.price, tt.dir)
			if v.Valid != tt.valid || !approx(v.Ratio, tt.ratio) {
				t.Errorf("Should be valid=%v ratio=%.1f, got %+v", tt.valid, tt.ratio, v)
			}
		})
	}

	if v := ValidateTrade(100, 101, 110, market.Bullish); v.Valid || v.Reason != "invalid stop loss placement" {
		t.Errorf("Should reject a stop above a long entry, got %+v", v)
	}
}

func TestCloseTradeUpdatesCapital(t *testing.T) {
	rm := NewManager(DefaultConfig())

	if _, err := rm.RegisterTrade("win", "BTCUSDT", market.Bullish, 100, 98, 106, 10); err != nil {
		t.Fatal(err)
	}
	tr, err := rm.CloseTrade("win", 105, "take_profit", 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr.PnL != 50 || !tr.Closed || tr.ExitReason != "take_profit" {
		t.Errorf("Should realize 50, got %+v", tr)
	}
	if c := rm.Capital(); c.Operative != 5050 || c.Total != 10050 || c.Drawdown != 0 {
		t.Errorf("Should grow operative capital, got %+v", c)
	}

	if _, err := rm.CloseTrade("win", 106, "again", 0); !errors.Is(err, ErrTradeClosed) {
		t.Errorf("Should close a trade exactly once, got %v", err)
	}
	if _, err := rm.CloseTrade("missing", 1, "x", 0); !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("Should report unknown trades, got %v", err)
	}
	if _, err := rm.RegisterTrade("win", "BTCUSDT", market.Bullish, 100, 98, 106, 1); !errors.Is(err, ErrDuplicateTrade) {
		t.Errorf("Should refuse duplicate ids, got %v", err)
	}
}

func TestLossAccumulatesDrawdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDrawdown = 0.003
	rm := NewManager(cfg)

	if stop, _ := rm.ShouldStop(); stop {
		t.Fatal("Should not stop a fresh ledger")
	}

	rm.RegisterTrade("short", "ETHUSDT", market.Bearish, 100, 102, 96, 10)
	tr, err := rm.CloseTrade("short", 102, "stop_loss", 1)
	if err != nil {
		t.Fatal(err)
	}
	// (100-102)*10 - 1 fee
	if tr.PnL != -21 {
		t.Errorf("Should lose 21 including fees, got %f", tr.PnL)
	}
	if c := rm.Capital(); !approx(c.Drawdown, 21.0/5000) {
		t.Errorf("Should accumulate drawdown 0.0042, got %f", c.Drawdown)
	}
	if stop, reason := rm.ShouldStop(); !stop || reason == "OK" {
		t.Errorf("Should stop past the drawdown ceiling, got %v %q", stop, reason)
	}
}

func TestBlockRollover(t *testing.T) {
	rm := NewManager(DefaultConfig())

	for i := 1; i <= 10; i++ {
		if _, err := rm.RegisterTrade(fmt.Sprintf("t%d", i), "BTCUSDT", market.Bullish, 100, 98, 106, 1); err != nil {
			t.Fatal(err)
		}
	}
	if b := rm.CurrentBlock(); b.Number != 1 || !b.IsComplete() {
		t.Fatalf("Should fill block 1 with 10 trades, got #%d with %d", b.Number, b.TradeCount())
	}

	if _, err := rm.CloseTrade("t1", 110, "take_profit", 0); err != nil {
		t.Fatal(err)
	}
	operative := rm.Capital().Operative

	tr, err := rm.RegisterTrade("t11", "BTCUSDT", market.Bullish, 100, 98, 106, 1)
	if err != nil {
		t.Fatal(err)
	}
	b := rm.CurrentBlock()
	if b.Number != 2 || b.TradeCount() != 1 || tr.Block != 2 {
		t.Errorf("Should start block 2 with the 11th trade, got #%d with %d", b.Number, b.TradeCount())
	}
	if b.StartCapital != operative {
		t.Errorf("Should snapshot operative capital %f, got %f", operative, b.StartCapital)
	}
	if n := len(rm.Blocks()); n != 2 {
		t.Errorf("Should keep block history, got %d blocks", n)
	}
}

func TestStats(t *testing.T) {
	rm := NewManager(DefaultConfig())
	rm.RegisterTrade("a", "BTCUSDT", market.Bullish, 100, 98, 106, 10)
	rm.RegisterTrade("b", "BTCUSDT", market.Bullish, 100, 98, 106, 10)
	rm.RegisterTrade("c", "BTCUSDT", market.Bearish, 100, 102, 96, 10)
	rm.CloseTrade("a", 106, "take_profit", 0)
	rm.CloseTrade("b", 98, "stop_loss", 0)

	s := rm.Stats()
	if s.TotalTrades != 3 || s.ClosedTrades != 2 || s.OpenTrades != 1 {
		t.Errorf("Should count trades, got %+v", s)
	}
	if s.WinRate != 0.5 || s.TotalPnL != 40 || s.AvgWin != 60 || s.AvgLoss != -20 {
		t.Errorf("Should aggregate PnL, got %+v", s)
	}
	if s.ProfitFactor != 3 {
		t.Errorf("Should compute profit factor 3, got %f", s.ProfitFactor)
	}
	if s.DailyPnL != 40 {
		t.Errorf("Should track daily PnL, got %f", s.DailyPnL)
	}
}
