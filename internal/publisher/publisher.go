package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/signals"
)

// Writer is the part of kafka.Writer the publisher uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds the broker list and topic names
type Config struct {
	Brokers      []string
	SignalTopic  string
	TradeTopic   string
	WriteTimeout time.Duration
}

// Publisher streams signals and closed trades to Kafka, keyed by symbol so
// each pair stays ordered within a partition
type Publisher struct {
	writer      Writer
	signalTopic string
	tradeTopic  string
	now         func() time.Time
	log         *logging.Logger
}

// TradeMessage is the wire form of a closed trade
type TradeMessage struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Source    string          `json:"source"`
	Trade     *backtest.Trade `json:"trade"`
	SignalID  string          `json:"signal_id,omitempty"`
}

// New creates a publisher backed by a kafka.Writer
func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 100 * time.Millisecond,
	}
	return NewWithWriter(writer, cfg.SignalTopic, cfg.TradeTopic), nil
}

// NewWithWriter wraps an existing writer
func NewWithWriter(w Writer, signalTopic, tradeTopic string) *Publisher {
	return &Publisher{
		writer:      w,
		signalTopic: signalTopic,
		tradeTopic:  tradeTopic,
		now:         time.Now,
		log:         logging.WithComponent("publisher"),
	}
}

// PublishSignal sends one validated signal
func (p *Publisher) PublishSignal(ctx context.Context, sig *signals.Signal) error {
	v, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.signalTopic,
		Key:   []byte(sig.Symbol),
		Value: v,
		Time:  p.now(),
	})
	if err != nil {
		return fmt.Errorf("publish signal %s: %w", sig.ID, err)
	}
	p.log.Debug("Signal published", "id", sig.ID, "topic", p.signalTopic)
	return nil
}

// PublishBacktest sends every trade of a backtest run in one batch
func (p *Publisher) PublishBacktest(ctx context.Context, r *backtest.Result) error {
	if len(r.Trades) == 0 {
		return nil
	}

	now := p.now()
	msgs := make([]kafka.Message, 0, len(r.Trades))
	for _, t := range r.Trades {
		m := TradeMessage{
			Symbol:    r.Symbol,
			Timeframe: string(r.Timeframe),
			Source:    "backtest",
			Trade:     t,
		}
		if t.Signal != nil {
			m.SignalID = t.Signal.ID
		}
		v, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal trade %s: %w", t.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.tradeTopic,
			Key:   []byte(r.Symbol),
			Value: v,
			Time:  now,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d trades: %w", len(msgs), err)
	}
	p.log.Info("Backtest trades published", "symbol", r.Symbol, "count", len(msgs))
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
