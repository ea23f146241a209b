package signals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/triggers"
)

// Signal is a validated trade idea. Only Invalidate mutates it after creation.
type Signal struct {
	ID               string           `json:"id"`
	Timestamp        time.Time        `json:"timestamp"`
	Symbol           string           `json:"symbol"`
	Timeframe        market.Timeframe `json:"timeframe"`
	Direction        market.Direction `json:"direction"`
	Origin           Origin           `json:"origin"`
	ZonePrice        float64          `json:"zone_price"`
	TriggerType      triggers.Kind    `json:"trigger_type"`
	EntryPrice       float64          `json:"entry_price"`
	StopLoss         float64          `json:"stop_loss"`
	TakeProfit1      float64          `json:"take_profit_1"`
	RiskReward       float64          `json:"risk_reward_ratio"`
	ConvergenceScore float64          `json:"convergence_score"`
	Grade            string           `json:"grade"`
	IsValid          bool             `json:"is_valid"`
}

// Invalidate marks the signal as no longer tradeable
func (s *Signal) Invalidate() {
	s.IsValid = false
}

// Key identifies the same setup seen on the same bar, for de-duplication
func (s *Signal) Key() string {
	return fmt.Sprintf("%s|%s|%s|%.8g|%d", s.Symbol, s.Timeframe, s.Direction, roundPrice(s.ZonePrice), s.Timestamp.Unix())
}

func roundPrice(p float64) float64 {
	return math.Round(p*1e6) / 1e6
}

// Summary renders the signal for humans
func (s *Signal) Summary() string {
	lines := []string{
		fmt.Sprintf("SIGNAL: %s %s", strings.ToUpper(string(s.Direction)), s.Symbol),
		fmt.Sprintf("Timeframe: %s", s.Timeframe),
		fmt.Sprintf("Zone: %.2f", s.ZonePrice),
		fmt.Sprintf("Trigger: %s", s.TriggerType),
		fmt.Sprintf("Entry: %.2f", s.EntryPrice),
		fmt.Sprintf("Stop Loss: %.2f", s.StopLoss),
		fmt.Sprintf("Take Profit: %.2f", s.TakeProfit1),
		fmt.Sprintf("R:R: 1:%.1f", s.RiskReward),
		fmt.Sprintf("Convergence: %.0f%% (%s)", s.ConvergenceScore*100, s.Grade),
	}
	return strings.Join(lines, "\n")
}
