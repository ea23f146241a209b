package risk

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
)

var (
	ErrZeroStopDistance     = errors.New("stop loss equals entry price")
	ErrBlockBudgetExhausted = errors.New("block risk limit reached")
	ErrTradeNotFound        = errors.New("trade not found")
	ErrTradeClosed          = errors.New("trade already closed")
	ErrDuplicateTrade       = errors.New("trade id already registered")
)

// Config holds risk management configuration
type Config struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital" default:"10000" validate:"gt=0"`
	RiskPerTrade   float64 `json:"risk_per_trade" yaml:"risk_per_trade" default:"0.01" validate:"gt=0,lte=1"`
	CushionRatio   float64 `json:"cushion_ratio" yaml:"cushion_ratio" default:"0.5" validate:"gte=0,lt=1"`
	MaxBlockRisk   float64 `json:"max_block_risk" yaml:"max_block_risk" default:"0.1" validate:"gt=0,lte=1"`
	BlockTarget    float64 `json:"block_target" yaml:"block_target" default:"0.1"`
	BlockSize      int     `json:"block_size" yaml:"block_size" default:"10" validate:"gt=0"`
	MaxDrawdown    float64 `json:"max_drawdown" yaml:"max_drawdown" default:"0.2" validate:"gt=0,lte=1"`
}

// DefaultConfig returns 1% risk per trade, a 50% cushion, blocks of 10 trades
// with a 10% risk budget and a 20% drawdown ceiling
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		RiskPerTrade:   0.01,
		CushionRatio:   0.5,
		MaxBlockRisk:   0.10,
		BlockTarget:    0.10,
		BlockSize:      10,
		MaxDrawdown:    0.20,
	}
}

// Capital is the split of the account
type Capital struct {
	Total       float64 `json:"total"`
	Cushion     float64 `json:"cushion"`   // Never traded
	Operative   float64 `json:"operative"` // Sized against
	Drawdown    float64 `json:"drawdown"`  // Accumulated loss fraction
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Sizing is the result of position sizing
type Sizing struct {
	PositionSize       float64 `json:"position_size"`
	RiskAmount         float64 `json:"risk_amount"`
	RiskPercent        float64 `json:"risk_percent"`
	StopDistance       float64 `json:"stop_distance"`
	StopPercent        float64 `json:"stop_percent"`
	NotionalValue      float64 `json:"notional_value"`
	RemainingBlockRisk float64 `json:"remaining_block_risk"`
}

// Validation is the risk:reward check of a trade plan
type Validation struct {
	Valid  bool    `json:"valid"`
	Risk   float64 `json:"risk"`
	Reward float64 `json:"reward"`
	Ratio  float64 `json:"ratio"`
	Reason string  `json:"reason"`
}

// ValidateTrade requires a stop on the losing side of entry and a
// reward:risk ratio of at least 1
func ValidateTrade(entry, stop, target float64, dir market.Direction) Validation {
	var risk, reward float64
	if dir == market.Bullish {
		risk = entry - stop
		reward = target - entry
	} else {
		risk = stop - entry
		reward = entry - target
	}

	if risk <= 0 {
		return Validation{Reason: "invalid stop loss placement"}
	}

	ratio := reward / risk
	v := Validation{Valid: ratio >= 1.0, Risk: risk, Reward: reward, Ratio: ratio, Reason: "OK"}
	if !v.Valid {
		v.Reason = fmt.Sprintf("R:R %.2f < 1:1", ratio)
	}
	return v
}

// Manager is the capital and block ledger. Safe for concurrent use.
type Manager struct {
	config  Config
	capital Capital
	blocks  []*Block
	trades  map[string]*TradeRecord
	order   []string

	dailyPnL      float64
	dailyPnLReset time.Time
	now           func() time.Time

	mu sync.RWMutex
}

// NewManager splits the initial capital and opens block 1
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = def.RiskPerTrade
	}
	if cfg.MaxBlockRisk <= 0 {
		cfg.MaxBlockRisk = def.MaxBlockRisk
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = def.BlockSize
	}
	if cfg.MaxDrawdown <= 0 {
		cfg.MaxDrawdown = def.MaxDrawdown
	}
	if cfg.CushionRatio < 0 || cfg.CushionRatio >= 1 {
		cfg.CushionRatio = def.CushionRatio
	}

	cushion := cfg.InitialCapital * cfg.CushionRatio
	rm := &Manager{
		config: cfg,
		capital: Capital{
			Total:       cfg.InitialCapital,
			Cushion:     cushion,
			Operative:   cfg.InitialCapital - cushion,
			MaxDrawdown: cfg.MaxDrawdown,
		},
		trades: make(map[string]*TradeRecord),
		now:    time.Now,
	}
	rm.dailyPnLReset = rm.now().Truncate(24 * time.Hour)
	rm.startBlock()
	return rm
}

// Config returns the effective configuration
func (rm *Manager) Config() Config {
	return rm.config
}

func (rm *Manager) startBlock() *Block {
	b := &Block{
		Number:       len(rm.blocks) + 1,
		StartCapital: rm.capital.Operative,
		TargetReturn: rm.config.BlockTarget,
		MaxRisk:      rm.config.MaxBlockRisk,
		size:         rm.config.BlockSize,
	}
	rm.blocks = append(rm.blocks, b)
	logging.WithComponent("risk").Debug("Block started", "block", b.Number, "start_capital", b.StartCapital)
	return b
}

func (rm *Manager) current() *Block {
	return rm.blocks[len(rm.blocks)-1]
}

// rollover opens a new block once the current one holds BlockSize trades
func (rm *Manager) rollover() *Block {
	if b := rm.current(); !b.IsComplete() {
		return b
	}
	return rm.startBlock()
}

// Capital returns the current capital split
func (rm *Manager) Capital() Capital {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.capital
}

// CurrentBlock returns a snapshot of the open block
func (rm *Manager) CurrentBlock() Block {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.current().snapshot()
}

// Blocks returns snapshots of every block, oldest first
func (rm *Manager) Blocks() []Block {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]Block, len(rm.blocks))
	for i, b := range rm.blocks {
		out[i] = b.snapshot()
	}
	return out
}

// CalculatePositionSize sizes a trade so that hitting the stop loses
// operative x min(risk per trade, remaining block budget)
func (rm *Manager) CalculatePositionSize(entry, stop float64) (Sizing, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.size(entry, stop)
}

func (rm *Manager) size(entry, stop float64) (Sizing, error) {
	block := rm.rollover()

	distance := math.Abs(entry - stop)
	if distance == 0 {
		return Sizing{}, ErrZeroStopDistance
	}

	remaining := block.RemainingRisk()
	actual := math.Min(rm.config.RiskPerTrade, remaining)
	if actual <= 0 {
		return Sizing{}, ErrBlockBudgetExhausted
	}

	riskAmount := rm.capital.Operative * actual
	size := riskAmount / distance

	s := Sizing{
		PositionSize:       size,
		RiskAmount:         riskAmount,
		RiskPercent:        actual,
		StopDistance:       distance,
		NotionalValue:      size * entry,
		RemainingBlockRisk: remaining - actual,
	}
	if entry != 0 {
		s.StopPercent = distance / entry
	}
	return s, nil
}

// RegisterTrade records an opened trade in the current block. The risk fields
// come from sizing at registration; a sizing failure records zero risk. An empty
// id gets a generated one.
func (rm *Manager) RegisterTrade(id, symbol string, dir market.Direction, entry, stop, target, size float64) (*TradeRecord, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := rm.trades[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTrade, id)
	}

	block := rm.rollover()
	sizing, err := rm.size(entry, stop)
	if err != nil {
		logging.RiskContext(symbol, 0, size).WithError(err).Warn("Trade registered without risk budget")
	}

	t := &TradeRecord{
		ID:           id,
		Symbol:       symbol,
		Direction:    dir,
		EntryPrice:   entry,
		StopLoss:     stop,
		TakeProfit:   target,
		PositionSize: size,
		RiskAmount:   sizing.RiskAmount,
		RiskPercent:  sizing.RiskPercent,
		EntryTime:    rm.now(),
		Block:        block.Number,
	}
	block.Trades = append(block.Trades, t)
	rm.trades[id] = t
	rm.order = append(rm.order, id)
	return t, nil
}

// CloseTrade realizes a trade at exit. fees are subtracted from the PnL. The
// PnL moves operative capital, and losses accumulate drawdown as a fraction of
// operative capital before the close.
func (rm *Manager) CloseTrade(id string, exit float64, reason string, fees float64) (*TradeRecord, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	t, ok := rm.trades[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	if t.Closed {
		return nil, fmt.Errorf("%w: %s", ErrTradeClosed, id)
	}

	now := rm.now()
	t.ExitTime = &now
	t.ExitPrice = exit
	t.ExitReason = reason
	t.Fees = fees
	t.PnL = t.UnrealizedPnL(exit) - fees
	t.Closed = true

	if rm.capital.Operative > 0 {
		t.PnLPercent = t.PnL / rm.capital.Operative
	}

	rm.capital.Operative += t.PnL
	rm.capital.Total = rm.capital.Cushion + rm.capital.Operative
	if t.PnL < 0 {
		rm.capital.Drawdown += math.Abs(t.PnLPercent)
	}

	rm.checkDailyReset()
	rm.dailyPnL += t.PnL

	logging.RiskContext(t.Symbol, t.RiskPercent, t.PositionSize).Info("Trade closed",
		"trade_id", t.ID, "reason", reason, "pnl", t.PnL, "operative", rm.capital.Operative)
	return t, nil
}

// Trade returns a registered trade
func (rm *Manager) Trade(id string) (*TradeRecord, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	t, ok := rm.trades[id]
	return t, ok
}

// OpenTrades returns unclosed trades in registration order
func (rm *Manager) OpenTrades() []*TradeRecord {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	var out []*TradeRecord
	for _, id := range rm.order {
		if t := rm.trades[id]; !t.Closed {
			out = append(out, t)
		}
	}
	return out
}

// ShouldStop reports whether trading must halt: drawdown at the ceiling or
// operative capital exhausted
func (rm *Manager) ShouldStop() (bool, string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if rm.capital.Drawdown >= rm.capital.MaxDrawdown {
		return true, fmt.Sprintf("max drawdown reached: %.1f%%", rm.capital.Drawdown*100)
	}
	if rm.capital.Operative <= 0 {
		return true, "operative capital depleted"
	}
	return false, "OK"
}

// checkDailyReset resets daily P&L if it's a new day
func (rm *Manager) checkDailyReset() {
	today := rm.now().Truncate(24 * time.Hour)
	if today.After(rm.dailyPnLReset) {
		rm.dailyPnL = 0
		rm.dailyPnLReset = today
	}
}

// DailyPnL returns the realized P&L since midnight UTC
func (rm *Manager) DailyPnL() float64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.checkDailyReset()
	return rm.dailyPnL
}
