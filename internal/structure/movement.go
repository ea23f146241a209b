package structure

import (
	"time"

	"fortis-trading-bot/internal/market"
)

// Range is the high/low envelope of one bar
type Range struct {
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
}

// RangeOf builds the Range of bar i
func RangeOf(b market.Bar, i int) Range {
	return Range{High: b.High, Low: b.Low, Index: i, Timestamp: b.Timestamp}
}

// Contains reports whether o lies fully inside r (inclusive)
func (r Range) Contains(o Range) bool {
	return r.High >= o.High && r.Low <= o.Low
}

// Movement is a maximal run of ranges advancing in one direction
type Movement struct {
	Direction  market.Direction `json:"direction"`
	StartIndex int              `json:"start_index"`
	StartPrice float64          `json:"start_price"`
	EndIndex   int              `json:"end_index"`
	EndPrice   float64          `json:"end_price"`
	Closed     bool             `json:"closed"`
	Ranges     []Range          `json:"ranges"`
}

// High is the highest high across the movement's ranges
func (m *Movement) High() float64 {
	if len(m.Ranges) == 0 {
		return 0
	}
	h := m.Ranges[0].High
	for _, r := range m.Ranges[1:] {
		if r.High > h {
			h = r.High
		}
	}
	return h
}

// Low is the lowest low across the movement's ranges
func (m *Movement) Low() float64 {
	if len(m.Ranges) == 0 {
		return 0
	}
	l := m.Ranges[0].Low
	for _, r := range m.Ranges[1:] {
		if r.Low < l {
			l = r.Low
		}
	}
	return l
}

func (m *Movement) lastRange() Range {
	return m.Ranges[len(m.Ranges)-1]
}

func (m *Movement) close(endIdx int) {
	m.EndIndex = endIdx
	m.Closed = true
	if m.Direction == market.Bullish {
		m.EndPrice = m.High()
	} else {
		m.EndPrice = m.Low()
	}
}

// MovementDetector splits a bar sequence into directional movements.
// A bar inside the previous range is noise.
type MovementDetector struct {
	current   *Movement
	completed []Movement
}

// NewMovementDetector creates an empty detector
func NewMovementDetector() *MovementDetector {
	return &MovementDetector{}
}

// Reset discards all state
func (md *MovementDetector) Reset() {
	md.current = nil
	md.completed = nil
}

// Current returns the open movement, nil before the first bar
func (md *MovementDetector) Current() *Movement {
	return md.current
}

// Process scans bars from scratch and returns the closed movements
func (md *MovementDetector) Process(bars []market.Bar) []Movement {
	md.Reset()
	for i, b := range bars {
		md.step(b, i)
	}
	return md.completed
}

func (md *MovementDetector) step(b market.Bar, i int) {
	cur := RangeOf(b, i)

	if md.current == nil {
		dir := market.Bearish
		start := b.High
		if b.IsBullish() {
			dir = market.Bullish
			start = b.Low
		}
		md.current = &Movement{Direction: dir, StartIndex: i, StartPrice: start, EndIndex: -1, Ranges: []Range{cur}}
		return
	}

	prev := md.current.lastRange()
	if prev.Contains(cur) {
		return // noise
	}

	breaksHigh := cur.High > prev.High
	breaksLow := cur.Low < prev.Low

	var dir market.Direction
	switch {
	case breaksHigh && !breaksLow:
		dir = market.Bullish
	case breaksLow && !breaksHigh:
		dir = market.Bearish
	case breaksHigh && breaksLow:
		// Outside bar: the larger excursion wins, ties go bearish
		if cur.High-prev.High > prev.Low-cur.Low {
			dir = market.Bullish
		} else {
			dir = market.Bearish
		}
	default:
		return
	}

	if dir == md.current.Direction {
		md.current.Ranges = append(md.current.Ranges, cur)
		return
	}

	md.current.close(i - 1)
	md.completed = append(md.completed, *md.current)

	start := prev.Low
	if dir == market.Bearish {
		start = prev.High
	}
	md.current = &Movement{Direction: dir, StartIndex: i, StartPrice: start, EndIndex: -1, Ranges: []Range{cur}}
}
