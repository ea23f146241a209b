package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fortis-trading-bot/internal/circuit"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/signals"
)

// ErrInsufficientData is returned before any state is touched when the
// history is shorter than Config.MinBars
var ErrInsufficientData = errors.New("insufficient historical data")

// SignalSource produces the signals validated over a window of history.
// *signals.Generator satisfies it.
type SignalSource interface {
	Generate(bars []market.Bar) (*signals.Result, error)
}

// SourceFunc adapts a function to SignalSource
type SourceFunc func(bars []market.Bar) (*signals.Result, error)

// Generate calls f(bars)
func (f SourceFunc) Generate(bars []market.Bar) (*signals.Result, error) {
	return f(bars)
}

// Config holds backtest configuration
type Config struct {
	Risk        risk.Config    `json:"risk" yaml:"risk"`
	Signals     signals.Config `json:"signals" yaml:"signals"`
	Commission  float64        `json:"commission" yaml:"commission" default:"0.001"`
	MinBars     int            `json:"min_bars" yaml:"min_bars" default:"100"`
	WarmUp      int            `json:"warm_up" yaml:"warm_up" default:"50"`
	SignalEvery int            `json:"signal_every" yaml:"signal_every" default:"5"`
	MaxOpen     int            `json:"max_open" yaml:"max_open" default:"3"`
	Breaker     circuit.Config `json:"breaker" yaml:"breaker"`
}

// DefaultConfig returns 10000 initial capital, 1% risk per trade and 0.1%
// commission per side. The generator runs on bars whose index is a multiple
// of SignalEvery. The circuit breaker is off unless enabled.
func DefaultConfig() Config {
	breaker := circuit.DefaultConfig()
	breaker.Enabled = false
	return Config{
		Risk:        risk.DefaultConfig(),
		Signals:     signals.DefaultConfig(),
		Commission:  0.001,
		MinBars:     100,
		WarmUp:      50,
		SignalEvery: 5,
		MaxOpen:     3,
		Breaker:     breaker,
	}
}

// Engine replays history through a signal source and simulates the trades.
// Each Run starts from fresh risk and signal state.
type Engine struct {
	config    Config
	newSource func(symbol string, tf market.Timeframe) SignalSource
}

// NewEngine creates a backtest engine that uses a fresh signals.Generator per run
func NewEngine(cfg Config) *Engine {
	return NewEngineWithSource(cfg, func(symbol string, tf market.Timeframe) SignalSource {
		return signals.NewGenerator(symbol, tf, cfg.Signals)
	})
}

// NewEngineWithSource creates a backtest engine with a custom signal source factory
func NewEngineWithSource(cfg Config, factory func(symbol string, tf market.Timeframe) SignalSource) *Engine {
	def := DefaultConfig()
	if cfg.Risk.InitialCapital <= 0 {
		cfg.Risk = def.Risk
	}
	if cfg.Commission < 0 {
		cfg.Commission = 0
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = def.MinBars
	}
	if cfg.WarmUp <= 0 {
		cfg.WarmUp = def.WarmUp
	}
	if cfg.SignalEvery <= 0 {
		cfg.SignalEvery = def.SignalEvery
	}
	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = def.MaxOpen
	}
	return &Engine{config: cfg, newSource: factory}
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.config
}

// run is the state of one replay
type run struct {
	cfg     Config
	symbol  string
	rm      *risk.Manager
	breaker *circuit.CircuitBreaker
	now     time.Time
	open    []*Trade
	closed  []*Trade
	equity  []EquityPoint
	log     *logging.Logger
}

// Run replays bars in index order. No decision at bar i sees bars past i.
func (e *Engine) Run(ctx context.Context, symbol string, tf market.Timeframe, bars []market.Bar) (*Result, error) {
	if len(bars) < e.config.MinBars {
		return nil, fmt.Errorf("%w: got %d bars, need at least %d", ErrInsufficientData, len(bars), e.config.MinBars)
	}
	warm := e.config.WarmUp
	if warm >= len(bars) {
		warm = len(bars) - 1
	}

	r := &run{
		cfg:    e.config,
		symbol: symbol,
		rm:     risk.NewManager(e.config.Risk),
		log:    logging.BacktestContext(symbol, bars[warm].Timestamp, bars[len(bars)-1].Timestamp),
	}
	r.breaker = circuit.NewCircuitBreaker(e.config.Breaker, r.rm)
	r.breaker.SetClock(func() time.Time { return r.now })
	source := e.newSource(symbol, tf)
	r.log.Info("Backtest started", "timeframe", string(tf), "bars", len(bars))

	for i := warm; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := bars[i]
		r.now = bar.Timestamp

		r.resolve(bar, i)

		if i%e.config.SignalEvery == 0 {
			res, err := source.Generate(bars[:i+1])
			if err != nil {
				r.log.Debug("Signal generation skipped", "index", i, "error", err.Error())
			} else if res != nil {
				for _, s := range res.Signals {
					r.openTrade(s, bar, i)
				}
			}
		}

		r.mark(bar)
	}

	last := len(bars) - 1
	for _, t := range r.open {
		r.close(t, bars[last], last, bars[last].Close, ReasonEndOfData)
	}
	r.open = nil

	capital := r.rm.Capital()
	result := &Result{
		Symbol:         symbol,
		Timeframe:      tf,
		StartDate:      bars[warm].Timestamp,
		EndDate:        bars[last].Timestamp,
		InitialCapital: e.config.Risk.InitialCapital,
		FinalCapital:   capital.Cushion + capital.Operative,
		Trades:         r.closed,
		EquityCurve:    r.equity,
		Risk:           r.rm.Stats(),
	}
	r.log.Info("Backtest finished", "trades", len(result.Trades), "final_capital", result.FinalCapital)
	return result, nil
}

// resolve closes open trades whose stop or target the bar reached. The stop
// is checked first when both are inside the bar's range.
func (r *run) resolve(bar market.Bar, idx int) {
	remaining := r.open[:0]
	for _, t := range r.open {
		exit, reason, hit := t.exitOn(bar)
		if !hit {
			remaining = append(remaining, t)
			continue
		}
		r.close(t, bar, idx, exit, reason)
	}
	for i := len(remaining); i < len(r.open); i++ {
		r.open[i] = nil
	}
	r.open = remaining
}

func (r *run) openTrade(s *signals.Signal, bar market.Bar, idx int) {
	if len(r.open) >= r.cfg.MaxOpen {
		return
	}
	for _, t := range r.open {
		if t.Direction == s.Direction {
			return
		}
	}

	if stop, reason := r.rm.ShouldStop(); stop {
		r.log.Debug("Signal skipped by risk stop", "signal_id", s.ID, "reason", reason)
		return
	}
	if ok, reason := r.breaker.CanTrade(); !ok {
		r.log.Debug("Signal skipped by circuit breaker", "signal_id", s.ID, "reason", reason)
		return
	}

	sizing, err := r.rm.CalculatePositionSize(s.EntryPrice, s.StopLoss)
	if err != nil {
		r.log.Debug("Signal not sized", "signal_id", s.ID, "error", err.Error())
		return
	}

	id := uuid.NewString()
	if _, err := r.rm.RegisterTrade(id, r.symbol, s.Direction, s.EntryPrice, s.StopLoss, s.TakeProfit1, sizing.PositionSize); err != nil {
		r.log.WithError(err).Warn("Trade not registered", "signal_id", s.ID)
		return
	}

	r.open = append(r.open, &Trade{
		ID:         id,
		Signal:     s,
		Direction:  s.Direction,
		Trigger:    s.TriggerType,
		EntryIndex: idx,
		EntryTime:  bar.Timestamp,
		EntryPrice: s.EntryPrice,
		StopLoss:   s.StopLoss,
		TakeProfit: s.TakeProfit1,
		Size:       sizing.PositionSize,
	})
}

func (r *run) close(t *Trade, bar market.Bar, idx int, exit float64, reason string) {
	fees := 2 * r.cfg.Commission * t.EntryPrice * t.Size
	rec, err := r.rm.CloseTrade(t.ID, exit, reason, fees)
	if err != nil {
		r.log.WithError(err).Error("Trade close failed", "trade_id", t.ID)
		return
	}

	t.ExitIndex = idx
	t.ExitTime = bar.Timestamp
	t.ExitPrice = exit
	t.ExitReason = reason
	t.BarsHeld = idx - t.EntryIndex
	t.PnL = rec.PnL
	t.PnLPercent = t.priceReturn(exit) - 2*r.cfg.Commission
	r.closed = append(r.closed, t)
	r.breaker.RecordTrade(t.PnLPercent * 100)
}

// mark appends operative capital plus unrealized PnL of open trades
func (r *run) mark(bar market.Bar) {
	equity := r.rm.Capital().Operative
	for _, t := range r.open {
		equity += t.unrealized(bar.Close)
	}
	r.equity = append(r.equity, EquityPoint{Timestamp: bar.Timestamp, Equity: equity})
}
