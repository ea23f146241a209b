package circuit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"fortis-trading-bot/internal/events"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // New trades halted
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// Config holds circuit breaker configuration
type Config struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses" default:"5" validate:"gte=0"`
	MaxDailyLoss         float64 `json:"max_daily_loss" yaml:"max_daily_loss" default:"5" validate:"gte=0"` // Percent
	MaxDailyTrades       int     `json:"max_daily_trades" yaml:"max_daily_trades" default:"20" validate:"gte=0"`
	CooldownMinutes      int     `json:"cooldown_minutes" yaml:"cooldown_minutes" default:"240" validate:"gte=0"`
}

// DefaultConfig returns safe defaults
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		MaxConsecutiveLosses: 5,
		MaxDailyLoss:         5.0,
		MaxDailyTrades:       20,
		CooldownMinutes:      240,
	}
}

// RiskGate is consulted before every trade. *risk.Manager satisfies it.
type RiskGate interface {
	ShouldStop() (bool, string)
}

// CircuitBreaker halts new trades after a losing streak, a daily loss or a
// risk ledger stop, and re-opens after a cooldown on the first winner
type CircuitBreaker struct {
	config            Config
	gate              RiskGate
	bus               *events.EventBus
	now               func() time.Time
	state             BreakerState
	consecutiveLosses int
	dailyLoss         float64
	dailyTrades       int
	day               time.Time
	lastTripTime      time.Time
	tripReason        string
	mu                sync.RWMutex
}

// NewCircuitBreaker creates a new circuit breaker. gate may be nil.
func NewCircuitBreaker(config Config, gate RiskGate) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		gate:   gate,
		now:    time.Now,
		state:  StateClosed,
	}
}

// SetClock replaces the wall clock. The backtester drives it with bar time.
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
}

// SetEventBus publishes trips and resets on bus
func (cb *CircuitBreaker) SetEventBus(bus *events.EventBus) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.bus = bus
}

// CanTrade checks if opening a trade is allowed
func (cb *CircuitBreaker) CanTrade() (bool, string) {
	if !cb.config.Enabled {
		return true, ""
	}

	if cb.gate != nil {
		if stop, reason := cb.gate.ShouldStop(); stop {
			return false, "risk stop: " + reason
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.resetDayIfNeeded()

	if cb.state == StateOpen {
		elapsed := cb.now().Sub(cb.lastTripTime)
		cooldown := time.Duration(cb.config.CooldownMinutes) * time.Minute

		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return false, fmt.Sprintf("circuit breaker open, cooldown remaining: %v (reason: %s)",
				remaining.Round(time.Second), cb.tripReason)
		}

		cb.state = StateHalfOpen
	}

	if cb.config.MaxDailyLoss > 0 && cb.dailyLoss >= cb.config.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f%% >= %.2f%%",
			cb.dailyLoss, cb.config.MaxDailyLoss)
	}

	if cb.config.MaxDailyTrades > 0 && cb.dailyTrades >= cb.config.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d trades", cb.dailyTrades)
	}

	return true, ""
}

// RecordTrade records a closed trade's return in percent
func (cb *CircuitBreaker) RecordTrade(pnlPercent float64) {
	if !cb.config.Enabled || math.IsNaN(pnlPercent) || math.IsInf(pnlPercent, 0) {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.resetDayIfNeeded()
	cb.dailyTrades++

	if pnlPercent < 0 {
		cb.consecutiveLosses++
		cb.dailyLoss += -pnlPercent
	} else {
		cb.consecutiveLosses = 0
		if cb.state == StateHalfOpen {
			cb.state = StateClosed
			cb.publish("winning trade after cooldown")
		}
	}

	cb.checkAndTrip()
}

// checkAndTrip checks conditions and trips if needed
func (cb *CircuitBreaker) checkAndTrip() {
	var reason string

	switch {
	case cb.config.MaxConsecutiveLosses > 0 && cb.consecutiveLosses >= cb.config.MaxConsecutiveLosses:
		reason = fmt.Sprintf("consecutive losses: %d", cb.consecutiveLosses)
	case cb.config.MaxDailyLoss > 0 && cb.dailyLoss >= cb.config.MaxDailyLoss:
		reason = fmt.Sprintf("daily loss: %.2f%%", cb.dailyLoss)
	}

	if reason != "" && cb.state != StateOpen {
		cb.state = StateOpen
		cb.lastTripTime = cb.now()
		cb.tripReason = reason
		cb.publish(reason)
	}
}

func (cb *CircuitBreaker) publish(reason string) {
	if cb.bus != nil {
		cb.bus.PublishCircuitUpdate(string(cb.state), reason)
	}
}

func (cb *CircuitBreaker) resetDayIfNeeded() {
	today := cb.now().UTC().Truncate(24 * time.Hour)
	if today.After(cb.day) {
		cb.dailyLoss = 0
		cb.dailyTrades = 0
		cb.day = today
	}
}

// ForceReset manually resets the circuit breaker
func (cb *CircuitBreaker) ForceReset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.consecutiveLosses = 0
	cb.tripReason = ""
	cb.publish("manual reset")
}

// GetState returns current breaker state
func (cb *CircuitBreaker) GetState() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current statistics
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return map[string]interface{}{
		"state":              string(cb.state),
		"consecutive_losses": cb.consecutiveLosses,
		"daily_loss":         cb.dailyLoss,
		"daily_trades":       cb.dailyTrades,
		"trip_reason":        cb.tripReason,
		"last_trip_time":     cb.lastTripTime,
	}
}

// IsEnabled returns if circuit breaker is enabled
func (cb *CircuitBreaker) IsEnabled() bool {
	return cb.config.Enabled
}
