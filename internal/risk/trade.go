package risk

import (
	"math"
	"time"

	"fortis-trading-bot/internal/market"
)

// TradeRecord is a live trade owned by the Manager. It is closed exactly once.
type TradeRecord struct {
	ID           string           `json:"id"`
	Symbol       string           `json:"symbol"`
	Direction    market.Direction `json:"direction"`
	EntryPrice   float64          `json:"entry_price"`
	StopLoss     float64          `json:"stop_loss"`
	TakeProfit   float64          `json:"take_profit"`
	PositionSize float64          `json:"position_size"`
	RiskAmount   float64          `json:"risk_amount"`
	RiskPercent  float64          `json:"risk_percent"`
	EntryTime    time.Time        `json:"entry_time"`
	ExitTime     *time.Time       `json:"exit_time,omitempty"`
	ExitPrice    float64          `json:"exit_price,omitempty"`
	ExitReason   string           `json:"exit_reason,omitempty"`
	PnL          float64          `json:"pnl"`
	PnLPercent   float64          `json:"pnl_percent"`
	Fees         float64          `json:"fees"`
	Closed       bool             `json:"closed"`
	Block        int              `json:"block"`
}

// UnrealizedPnL is the gross PnL if the trade closed at price
func (t *TradeRecord) UnrealizedPnL(price float64) float64 {
	if t.Direction == market.Bullish {
		return (price - t.EntryPrice) * t.PositionSize
	}
	return (t.EntryPrice - price) * t.PositionSize
}

// Notional is the entry value of the position
func (t *TradeRecord) Notional() float64 {
	return t.PositionSize * t.EntryPrice
}

// Block is a group of BlockSize trades sharing one risk budget
type Block struct {
	Number       int            `json:"number"`
	StartCapital float64        `json:"start_capital"`
	Trades       []*TradeRecord `json:"trades"`
	TargetReturn float64        `json:"target_return"`
	MaxRisk      float64        `json:"max_risk"`
	size         int
}

func (b *Block) snapshot() Block {
	out := *b
	out.Trades = append([]*TradeRecord(nil), b.Trades...)
	return out
}

// TradeCount is the number of trades registered in the block
func (b *Block) TradeCount() int {
	return len(b.Trades)
}

// IsComplete is true once the block holds its full trade count
func (b *Block) IsComplete() bool {
	return b.TradeCount() >= b.size
}

// TotalPnL sums realized PnL
func (b *Block) TotalPnL() float64 {
	sum := 0.0
	for _, t := range b.Trades {
		if t.Closed {
			sum += t.PnL
		}
	}
	return sum
}

// TotalPnLPercent is the realized PnL relative to the block's start capital
func (b *Block) TotalPnLPercent() float64 {
	if b.StartCapital <= 0 {
		return 0
	}
	return b.TotalPnL() / b.StartCapital
}

// WinRate over closed trades
func (b *Block) WinRate() float64 {
	var closed, wins int
	for _, t := range b.Trades {
		if !t.Closed {
			continue
		}
		closed++
		if t.PnL > 0 {
			wins++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(wins) / float64(closed)
}

// RemainingRisk is the budget left after the risk of still-open trades
func (b *Block) RemainingRisk() float64 {
	used := 0.0
	for _, t := range b.Trades {
		if !t.Closed {
			used += t.RiskPercent
		}
	}
	return math.Max(0, b.MaxRisk-used)
}

// Stats summarizes the ledger
type Stats struct {
	TotalTrades     int     `json:"total_trades"`
	ClosedTrades    int     `json:"closed_trades"`
	OpenTrades      int     `json:"open_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	ProfitFactor    float64 `json:"profit_factor"`
	DailyPnL        float64 `json:"daily_pnl"`
	Drawdown        float64 `json:"drawdown"`
	CurrentBlock    int     `json:"current_block"`
	BlockTrades     int     `json:"block_trades"`
	Capital         Capital `json:"capital"`
}

// Stats computes ledger statistics
func (rm *Manager) Stats() Stats {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.checkDailyReset()
	s := Stats{
		TotalTrades:  len(rm.order),
		DailyPnL:     rm.dailyPnL,
		Drawdown:     rm.capital.Drawdown,
		CurrentBlock: rm.current().Number,
		BlockTrades:  rm.current().TradeCount(),
		Capital:      rm.capital,
	}

	var wins, losses int
	var grossWin, grossLoss float64
	for _, id := range rm.order {
		t := rm.trades[id]
		if !t.Closed {
			continue
		}
		s.ClosedTrades++
		s.TotalPnL += t.PnL
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
		} else {
			losses++
			grossLoss += t.PnL
		}
	}

	s.OpenTrades = s.TotalTrades - s.ClosedTrades
	if s.ClosedTrades > 0 {
		s.WinRate = float64(wins) / float64(s.ClosedTrades)
	}
	if rm.config.InitialCapital > 0 {
		s.TotalPnLPercent = s.TotalPnL / rm.config.InitialCapital
	}
	if wins > 0 {
		s.AvgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = grossLoss / float64(losses)
	}
	if grossLoss != 0 {
		s.ProfitFactor = math.Abs(grossWin / grossLoss)
	}
	return s
}
