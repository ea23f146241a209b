package risk

import (
	"errors"

	"fortis-trading-bot/internal/market"
)

const maxPyramidPositions = 4

var ErrPyramidFull = errors.New("pyramid already holds the maximum number of positions")

// Pyramid stacks positions opened on successive impulses under one stop that
// follows the latest checkpoint
type Pyramid struct {
	rm        *Manager
	positions []*TradeRecord
	stop      float64
	hasStop   bool
}

// NewPyramid creates an empty pyramid closing through rm
func NewPyramid(rm *Manager) *Pyramid {
	return &Pyramid{rm: rm}
}

// CanAdd reports whether another position fits
func (p *Pyramid) CanAdd() bool {
	return len(p.positions) < maxPyramidPositions
}

// Add stacks a position and moves the unified stop to checkpoint
func (p *Pyramid) Add(t *TradeRecord, checkpoint float64) error {
	if !p.CanAdd() {
		return ErrPyramidFull
	}
	p.positions = append(p.positions, t)
	p.UpdateStop(checkpoint)
	return nil
}

// UpdateStop replaces the unified stop
func (p *Pyramid) UpdateStop(checkpoint float64) {
	p.stop = checkpoint
	p.hasStop = true
}

// Stop returns the unified stop, false while the pyramid is empty
func (p *Pyramid) Stop() (float64, bool) {
	return p.stop, p.hasStop
}

// Positions returns the stacked positions
func (p *Pyramid) Positions() []*TradeRecord {
	return p.positions
}

// StopBroken reports whether price crossed the unified stop against dir
func (p *Pyramid) StopBroken(price float64, dir market.Direction) bool {
	if !p.hasStop {
		return false
	}
	if dir == market.Bullish {
		return price < p.stop
	}
	return price > p.stop
}

// CloseAll closes every position at one exit price and empties the pyramid
func (p *Pyramid) CloseAll(exit float64, reason string) []*TradeRecord {
	var closed []*TradeRecord
	for _, t := range p.positions {
		if res, err := p.rm.CloseTrade(t.ID, exit, reason, 0); err == nil {
			closed = append(closed, res)
		}
	}
	p.positions = nil
	p.stop = 0
	p.hasStop = false
	return closed
}

// TotalExposure is the summed notional of the stack
func (p *Pyramid) TotalExposure() float64 {
	sum := 0.0
	for _, t := range p.positions {
		sum += t.Notional()
	}
	return sum
}

// UnrealizedPnL of the stack at price
func (p *Pyramid) UnrealizedPnL(price float64) float64 {
	sum := 0.0
	for _, t := range p.positions {
		sum += t.UnrealizedPnL(price)
	}
	return sum
}
