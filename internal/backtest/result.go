package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/signals"
	"fortis-trading-bot/internal/triggers"
)

// Exit reasons
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonEndOfData  = "end_of_data"
)

// Trade is a simulated trade opened from a signal
type Trade struct {
	ID         string           `json:"id"`
	Signal     *signals.Signal  `json:"-"`
	Direction  market.Direction `json:"direction"`
	Trigger    triggers.Kind    `json:"trigger"`
	EntryIndex int              `json:"entry_index"`
	EntryTime  time.Time        `json:"entry_time"`
	EntryPrice float64          `json:"entry_price"`
	StopLoss   float64          `json:"stop_loss"`
	TakeProfit float64          `json:"take_profit"`
	Size       float64          `json:"size"`
	ExitIndex  int              `json:"exit_index"`
	ExitTime   time.Time        `json:"exit_time"`
	ExitPrice  float64          `json:"exit_price"`
	ExitReason string           `json:"exit_reason"`
	PnL        float64          `json:"pnl"`         // Monetary, after fees
	PnLPercent float64          `json:"pnl_percent"` // Price return after commission, as a fraction
	BarsHeld   int              `json:"bars_held"`
}

// exitOn returns the exit price and reason if the bar reaches the stop or target
func (t *Trade) exitOn(bar market.Bar) (float64, string, bool) {
	if t.Direction == market.Bullish {
		switch {
		case bar.Low <= t.StopLoss:
			return t.StopLoss, ReasonStopLoss, true
		case bar.High >= t.TakeProfit:
			return t.TakeProfit, ReasonTakeProfit, true
		}
		return 0, "", false
	}
	switch {
	case bar.High >= t.StopLoss:
		return t.StopLoss, ReasonStopLoss, true
	case bar.Low <= t.TakeProfit:
		return t.TakeProfit, ReasonTakeProfit, true
	}
	return 0, "", false
}

func (t *Trade) priceReturn(price float64) float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	if t.Direction == market.Bullish {
		return (price - t.EntryPrice) / t.EntryPrice
	}
	return (t.EntryPrice - price) / t.EntryPrice
}

func (t *Trade) unrealized(price float64) float64 {
	if t.Direction == market.Bullish {
		return (price - t.EntryPrice) * t.Size
	}
	return (t.EntryPrice - price) * t.Size
}

// EquityPoint represents account equity at a bar
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Result contains the trades of a run and the derived performance metrics
type Result struct {
	Symbol         string           `json:"symbol"`
	Timeframe      market.Timeframe `json:"timeframe"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        time.Time        `json:"end_date"`
	InitialCapital float64          `json:"initial_capital"`
	FinalCapital   float64          `json:"final_capital"`
	Trades         []*Trade         `json:"trades"`
	EquityCurve    []EquityPoint    `json:"equity_curve"`
	Risk           risk.Stats       `json:"risk"`
}

// TotalTrades counts closed trades
func (r *Result) TotalTrades() int {
	return len(r.Trades)
}

// WinningTrades counts trades with positive PnL
func (r *Result) WinningTrades() int {
	n := 0
	for _, t := range r.Trades {
		if t.PnL > 0 {
			n++
		}
	}
	return n
}

// LosingTrades counts trades with negative PnL
func (r *Result) LosingTrades() int {
	n := 0
	for _, t := range r.Trades {
		if t.PnL < 0 {
			n++
		}
	}
	return n
}

// WinRate is winners over closed trades, 0 without trades
func (r *Result) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	return float64(r.WinningTrades()) / float64(len(r.Trades))
}

// TotalPnL is the monetary PnL of all trades
func (r *Result) TotalPnL() float64 {
	total := 0.0
	for _, t := range r.Trades {
		total += t.PnL
	}
	return total
}

// TotalReturn is the change in capital as a fraction of the initial capital
func (r *Result) TotalReturn() float64 {
	if r.InitialCapital == 0 {
		return 0
	}
	return (r.FinalCapital - r.InitialCapital) / r.InitialCapital
}

// ProfitFactor is gross profit over gross loss, 0 without losses
func (r *Result) ProfitFactor() float64 {
	var profit, loss float64
	for _, t := range r.Trades {
		if t.PnL > 0 {
			profit += t.PnL
		} else {
			loss += math.Abs(t.PnL)
		}
	}
	if loss == 0 {
		return 0
	}
	return profit / loss
}

// MaxDrawdown is the deepest peak-to-trough fall of capital walking the
// trades in close order from the initial capital
func (r *Result) MaxDrawdown() float64 {
	peak := r.InitialCapital
	equity := r.InitialCapital
	maxDD := 0.0
	for _, t := range r.Trades {
		equity += t.PnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			maxDD = math.Max(maxDD, (peak-equity)/peak)
		}
	}
	return maxDD
}

// AvgPnLPercent is the mean per-trade return after commission
func (r *Result) AvgPnLPercent() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range r.Trades {
		total += t.PnLPercent
	}
	return total / float64(len(r.Trades))
}

// AvgBarsHeld is the mean holding time in bars
func (r *Result) AvgBarsHeld() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	total := 0
	for _, t := range r.Trades {
		total += t.BarsHeld
	}
	return float64(total) / float64(len(r.Trades))
}

// Report renders the result for humans
func (r *Result) Report() string {
	rule := strings.Repeat("=", 50)
	sub := strings.Repeat("-", 30)
	lines := []string{
		rule,
		"BACKTEST REPORT",
		rule,
		fmt.Sprintf("Symbol: %s", r.Symbol),
		fmt.Sprintf("Timeframe: %s", r.Timeframe),
		fmt.Sprintf("Period: %s to %s", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02")),
		"",
		"PERFORMANCE",
		sub,
		fmt.Sprintf("Initial Capital: $%.2f", r.InitialCapital),
		fmt.Sprintf("Final Capital: $%.2f", r.FinalCapital),
		fmt.Sprintf("Total Return: %.2f%%", r.TotalReturn()*100),
		fmt.Sprintf("Total PnL: $%.2f", r.TotalPnL()),
		"",
		"TRADES",
		sub,
		fmt.Sprintf("Total Trades: %d", r.TotalTrades()),
		fmt.Sprintf("Winning: %d", r.WinningTrades()),
		fmt.Sprintf("Losing: %d", r.LosingTrades()),
		fmt.Sprintf("Win Rate: %.1f%%", r.WinRate()*100),
		fmt.Sprintf("Profit Factor: %.2f", r.ProfitFactor()),
		"",
		"RISK",
		sub,
		fmt.Sprintf("Max Drawdown: %.2f%%", r.MaxDrawdown()*100),
		fmt.Sprintf("Avg Trade PnL: %.2f%%", r.AvgPnLPercent()*100),
		fmt.Sprintf("Avg Bars Held: %.1f", r.AvgBarsHeld()),
		rule,
	}
	return strings.Join(lines, "\n")
}

// LogEntry is one row of the trade log
type LogEntry struct {
	EntryTime  time.Time        `json:"entry_time"`
	ExitTime   time.Time        `json:"exit_time"`
	Direction  market.Direction `json:"direction"`
	EntryPrice float64          `json:"entry_price"`
	ExitPrice  float64          `json:"exit_price"`
	StopLoss   float64          `json:"stop_loss"`
	TakeProfit float64          `json:"take_profit"`
	PnL        float64          `json:"pnl"`
	PnLPercent float64          `json:"pnl_percent"`
	ExitReason string           `json:"exit_reason"`
	BarsHeld   int              `json:"bars_held"`
	Trigger    triggers.Kind    `json:"trigger"`
}

// TradeLog returns one row per trade in close order
func (r *Result) TradeLog() []LogEntry {
	out := make([]LogEntry, 0, len(r.Trades))
	for _, t := range r.Trades {
		out = append(out, LogEntry{
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			Direction:  t.Direction,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			StopLoss:   t.StopLoss,
			TakeProfit: t.TakeProfit,
			PnL:        t.PnL,
			PnLPercent: t.PnLPercent,
			ExitReason: t.ExitReason,
			BarsHeld:   t.BarsHeld,
			Trigger:    t.Trigger,
		})
	}
	return out
}
