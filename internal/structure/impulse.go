package structure

import (
	"time"

	"fortis-trading-bot/internal/market"
)

// Impulse is a zig-zag of movements with strictly advancing swing highs and lows
type Impulse struct {
	Direction  market.Direction `json:"direction"`
	Movements  []Movement       `json:"movements"`
	SwingHighs []SwingPoint     `json:"swing_highs"`
	SwingLows  []SwingPoint     `json:"swing_lows"`
	Checkpoint float64          `json:"checkpoint"`
	Valid      bool             `json:"valid"`
}

// High returns the highest swing high, 0 when there are none
func (imp *Impulse) High() float64 {
	h := 0.0
	for i, s := range imp.SwingHighs {
		if i == 0 || s.Price > h {
			h = s.Price
		}
	}
	return h
}

// Low returns the lowest swing low, 0 when there are none
func (imp *Impulse) Low() float64 {
	l := 0.0
	for i, s := range imp.SwingLows {
		if i == 0 || s.Price < l {
			l = s.Price
		}
	}
	return l
}

// StartIndex is the first bar of the first movement
func (imp *Impulse) StartIndex() int {
	if len(imp.Movements) == 0 {
		return -1
	}
	return imp.Movements[0].StartIndex
}

// EndIndex is the last bar of the last movement
func (imp *Impulse) EndIndex() int {
	if len(imp.Movements) == 0 {
		return -1
	}
	return imp.Movements[len(imp.Movements)-1].EndIndex
}

// HasStructure checks for at least two highs and two lows, each strictly
// increasing (bullish) or strictly decreasing (bearish)
func (imp *Impulse) HasStructure() bool {
	if len(imp.SwingHighs) < 2 || len(imp.SwingLows) < 2 {
		return false
	}
	up := imp.Direction == market.Bullish
	return monotonic(imp.SwingHighs, up) && monotonic(imp.SwingLows, up)
}

// Validate requires structure and a break of the checkpoint price:
// high above it when bullish, low below it when bearish.
func (imp *Impulse) Validate(checkpoint float64) bool {
	imp.Checkpoint = checkpoint

	var breaks bool
	if imp.Direction == market.Bullish {
		breaks = imp.High() > checkpoint
	} else {
		breaks = imp.Low() < checkpoint
	}

	imp.Valid = imp.HasStructure() && breaks
	return imp.Valid
}

func monotonic(points []SwingPoint, increasing bool) bool {
	for i := 1; i < len(points); i++ {
		if increasing && points[i].Price <= points[i-1].Price {
			return false
		}
		if !increasing && points[i].Price >= points[i-1].Price {
			return false
		}
	}
	return true
}

// Checkpoint is the control price of the structure: the last swing low of a
// bullish impulse or the last swing high of a bearish one
type Checkpoint struct {
	Price     float64          `json:"price"`
	Index     int              `json:"index"`
	Timestamp time.Time        `json:"timestamp"`
	Direction market.Direction `json:"direction"`
}

// IsBroken reports an adverse cross of the checkpoint
func (c *Checkpoint) IsBroken(price float64) bool {
	if c.Direction == market.Bullish {
		return price < c.Price
	}
	return price > c.Price
}

// CheckpointManager tracks the current checkpoint and its history
type CheckpointManager struct {
	history []Checkpoint
	current *Checkpoint
}

func NewCheckpointManager() *CheckpointManager {
	return &CheckpointManager{}
}

// UpdateFromImpulse replaces the checkpoint with the impulse's last counter swing
func (cm *CheckpointManager) UpdateFromImpulse(imp *Impulse) *Checkpoint {
	var src *SwingPoint
	switch {
	case imp.Direction == market.Bullish && len(imp.SwingLows) > 0:
		src = &imp.SwingLows[len(imp.SwingLows)-1]
	case imp.Direction == market.Bearish && len(imp.SwingHighs) > 0:
		src = &imp.SwingHighs[len(imp.SwingHighs)-1]
	default:
		return cm.current
	}

	cm.current = &Checkpoint{
		Price:     src.Price,
		Index:     src.Index,
		Timestamp: src.Timestamp,
		Direction: imp.Direction,
	}
	cm.history = append(cm.history, *cm.current)
	return cm.current
}

// IsBroken is false while no checkpoint exists
func (cm *CheckpointManager) IsBroken(price float64) bool {
	if cm.current == nil {
		return false
	}
	return cm.current.IsBroken(price)
}

func (cm *CheckpointManager) Current() *Checkpoint { return cm.current }
func (cm *CheckpointManager) History() []Checkpoint { return cm.history }

func (cm *CheckpointManager) Reset() {
	cm.history = nil
	cm.current = nil
}

// DetectImpulses walks closed movements and groups zig-zag runs that start and end
// with a movement of the same direction (at least two of them). The longest run
// that keeps its swing structure is validated against the running checkpoint;
// valid impulses advance the checkpoint.
func DetectImpulses(movements []Movement, highs, lows []SwingPoint, cm *CheckpointManager) []Impulse {
	var out []Impulse

	for i := 0; i < len(movements); {
		var best *Impulse
		for j := i + 2; j < len(movements); j += 2 {
			cand := buildImpulse(movements[i:j+1], highs, lows)
			if !cand.HasStructure() {
				if best != nil {
					break
				}
				continue
			}
			best = &cand
		}

		if best == nil {
			i++
			continue
		}

		ref := movements[i].StartPrice
		if cp := cm.Current(); cp != nil {
			ref = cp.Price
		}
		if best.Validate(ref) {
			cm.UpdateFromImpulse(best)
			out = append(out, *best)
			i += len(best.Movements)
			continue
		}
		i++
	}

	return out
}

func buildImpulse(run []Movement, highs, lows []SwingPoint) Impulse {
	from := run[0].StartIndex
	to := run[len(run)-1].EndIndex
	ms := make([]Movement, len(run))
	copy(ms, run)
	return Impulse{
		Direction:  run[0].Direction,
		Movements:  ms,
		SwingHighs: SwingsBetween(highs, from, to),
		SwingLows:  SwingsBetween(lows, from, to),
	}
}
