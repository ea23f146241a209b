package notification

import (
	"context"
	"errors"
	"time"

	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/signals"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal       NotificationType = "signal"
	NotifyTradeUpdate  NotificationType = "trade_update"
	NotifyDailySummary NotificationType = "daily_summary"
	NotifyZone         NotificationType = "zone"
	NotifyError        NotificationType = "error"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Symbol    string
	Message   string // Telegram HTML
	Console   string // Plain text; Message is used when empty
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to every enabled provider
type Manager struct {
	notifiers []Notifier
	now       func() time.Time
	log       *logging.Logger
}

// NewManager creates a new notification manager
func NewManager(notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		now:       time.Now,
		log:       logging.WithComponent("notification"),
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Enabled reports whether any provider would deliver
func (m *Manager) Enabled() bool {
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

// Send delivers to all enabled providers. A failing provider does not stop the others.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = m.now()
	}

	var errs []error
	for _, notifier := range m.notifiers {
		if !notifier.IsEnabled() {
			continue
		}
		if err := notifier.Send(ctx, n); err != nil {
			m.log.WithError(err).Warn("Notification failed", "provider", notifier.Name(), "type", string(n.Type))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendSignal alerts a new validated signal
func (m *Manager) SendSignal(ctx context.Context, sig *signals.Signal) error {
	now := m.now()
	return m.Send(ctx, &Notification{
		Type:      NotifySignal,
		Symbol:    sig.Symbol,
		Message:   FormatSignalAlert(sig, now),
		Console:   FormatSignalConsole(sig),
		Timestamp: now,
	})
}

// SendTradeUpdate alerts a trade lifecycle event. pnl is a fraction.
func (m *Manager) SendTradeUpdate(ctx context.Context, symbol string, dir market.Direction, event string, price, pnl float64) error {
	msg := FormatTradeUpdate(symbol, dir, event, price, pnl)
	if msg == "" {
		return nil
	}
	return m.Send(ctx, &Notification{Type: NotifyTradeUpdate, Symbol: symbol, Message: msg})
}

// SendDailySummary reports the risk ledger
func (m *Manager) SendDailySummary(ctx context.Context, stats risk.Stats, blockSize int) error {
	return m.Send(ctx, &Notification{
		Type:    NotifyDailySummary,
		Message: FormatDailySummary(stats, blockSize, m.now()),
	})
}

// SendZoneAlert warns that price is approaching a zone
func (m *Manager) SendZoneAlert(ctx context.Context, symbol, zoneType string, price float64, bias market.Direction, tf market.Timeframe) error {
	return m.Send(ctx, &Notification{
		Type:    NotifyZone,
		Symbol:  symbol,
		Message: FormatZoneAlert(symbol, zoneType, price, bias, tf),
	})
}
