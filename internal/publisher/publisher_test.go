package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/signals"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{SignalTopic: "s", TradeTopic: "t"})
	assert.Error(t, err)

	p, err := New(Config{Brokers: []string{"localhost:9092"}, SignalTopic: "s", TradeTopic: "t"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestPublishSignal(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(w, "fortis.signals", "fortis.trades")
	sig := &signals.Signal{ID: "s1", Symbol: "ETHUSDT", Timeframe: market.TF1h, Direction: market.Bearish, EntryPrice: 2500}

	require.NoError(t, p.PublishSignal(context.Background(), sig))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "fortis.signals", msg.Topic)
	assert.Equal(t, "ETHUSDT", string(msg.Key))

	var decoded signals.Signal
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "s1", decoded.ID)
	assert.Equal(t, market.Bearish, decoded.Direction)
}

func TestPublishSignalError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewWithWriter(w, "fortis.signals", "fortis.trades")

	err := p.PublishSignal(context.Background(), &signals.Signal{ID: "s1", Symbol: "BTCUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish signal s1")
}

func TestPublishBacktest(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(w, "fortis.signals", "fortis.trades")
	result := &backtest.Result{
		Symbol:    "BTCUSDT",
		Timeframe: market.TF4h,
		Trades: []*backtest.Trade{
			{ID: "t1", Signal: &signals.Signal{ID: "s1"}, Direction: market.Bullish, ExitReason: backtest.ReasonTakeProfit},
			{ID: "t2", Direction: market.Bearish, ExitReason: backtest.ReasonStopLoss},
		},
	}

	require.NoError(t, p.PublishBacktest(context.Background(), result))
	require.Len(t, w.msgs, 2)

	var first TradeMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &first))
	assert.Equal(t, "fortis.trades", w.msgs[0].Topic)
	assert.Equal(t, "s1", first.SignalID)
	assert.Equal(t, "backtest", first.Source)
	assert.Equal(t, "t1", first.Trade.ID)

	var second TradeMessage
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &second))
	assert.Empty(t, second.SignalID)
}

func TestPublishBacktestWithoutTrades(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(w, "fortis.signals", "fortis.trades")

	require.NoError(t, p.PublishBacktest(context.Background(), &backtest.Result{Symbol: "BTCUSDT"}))
	assert.Empty(t, w.msgs)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
