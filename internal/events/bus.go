package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated   EventType = "SIGNAL_GENERATED"
	EventSignalInvalidated EventType = "SIGNAL_INVALIDATED"
	EventTradeOpened       EventType = "TRADE_OPENED"
	EventTradeClosed       EventType = "TRADE_CLOSED"
	EventScanCompleted     EventType = "SCAN_COMPLETED"
	EventZoneApproaching   EventType = "ZONE_APPROACHING"
	EventCircuitUpdate     EventType = "CIRCUIT_BREAKER_UPDATE"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run on their own
// goroutines so a slow sink never stalls the scan loop.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range eb.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(id, symbol, timeframe, direction string, entry, stopLoss, takeProfit, score float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"id":          id,
			"symbol":      symbol,
			"timeframe":   timeframe,
			"direction":   direction,
			"entry_price": entry,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
			"score":       score,
		},
	})
}

// PublishSignalInvalidated publishes that a signal was withdrawn
func (eb *EventBus) PublishSignalInvalidated(id, symbol string) {
	eb.Publish(Event{
		Type: EventSignalInvalidated,
		Data: map[string]interface{}{
			"id":     id,
			"symbol": symbol,
		},
	})
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(id, symbol, direction string, entryPrice, size float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"id":          id,
			"symbol":      symbol,
			"direction":   direction,
			"entry_price": entryPrice,
			"size":        size,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(id, symbol, reason string, exitPrice, pnl, pnlPercent float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"id":          id,
			"symbol":      symbol,
			"reason":      reason,
			"exit_price":  exitPrice,
			"pnl":         pnl,
			"pnl_percent": pnlPercent,
		},
	})
}

// PublishScanCompleted publishes the outcome of one scan pass over a pair
func (eb *EventBus) PublishScanCompleted(symbol, timeframe string, candidates, newSignals int, duration time.Duration) {
	eb.Publish(Event{
		Type: EventScanCompleted,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"timeframe":   timeframe,
			"candidates":  candidates,
			"new_signals": newSignals,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishZoneApproaching publishes that price is near a tradeable zone
func (eb *EventBus) PublishZoneApproaching(symbol, timeframe, zoneType, bias string, price float64) {
	eb.Publish(Event{
		Type: EventZoneApproaching,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"timeframe": timeframe,
			"zone_type": zoneType,
			"bias":      bias,
			"price":     price,
		},
	})
}

// PublishCircuitUpdate publishes a breaker state change
func (eb *EventBus) PublishCircuitUpdate(state, reason string) {
	eb.Publish(Event{
		Type: EventCircuitUpdate,
		Data: map[string]interface{}{
			"state":  state,
			"reason": reason,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
