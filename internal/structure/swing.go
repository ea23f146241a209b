package structure

import (
	"sort"
	"time"

	"fortis-trading-bot/internal/market"
)

// SwingType marks a swing as a local HIGH or LOW
type SwingType string

const (
	SwingHigh SwingType = "HIGH"
	SwingLow  SwingType = "LOW"
)

// SwingPoint is a local extreme confirmed by a symmetric window of bars
type SwingPoint struct {
	Price     float64   `json:"price"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Type      SwingType `json:"type"`
	Confirmed bool      `json:"confirmed"`
}

// SwingDetector finds swing highs and lows
type SwingDetector struct {
	lookback int // Bars required on each side of the pivot
}

// NewSwingDetector creates a swing detector with the given window radius
func NewSwingDetector(lookback int) *SwingDetector {
	if lookback <= 0 {
		lookback = 2 // Default 2 bars each side
	}
	return &SwingDetector{lookback: lookback}
}

// Lookback returns the window radius
func (sd *SwingDetector) Lookback() int {
	return sd.lookback
}

// Detect returns swing highs and swing lows in index order.
// A bar is a swing high only if every other bar in the window has a strictly lower high
// (mirror rule for lows). Bars within lookback of either edge are never evaluated.
func (sd *SwingDetector) Detect(bars []market.Bar) (highs, lows []SwingPoint) {
	lb := sd.lookback
	if len(bars) < 2*lb+1 {
		return nil, nil
	}

	for i := lb; i < len(bars)-lb; i++ {
		cur := bars[i]
		isHigh, isLow := true, true

		for j := i - lb; j <= i+lb; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= cur.High {
				isHigh = false
			}
			if bars[j].Low <= cur.Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			highs = append(highs, SwingPoint{Price: cur.High, Index: i, Timestamp: cur.Timestamp, Type: SwingHigh, Confirmed: true})
		}
		if isLow {
			lows = append(lows, SwingPoint{Price: cur.Low, Index: i, Timestamp: cur.Timestamp, Type: SwingLow, Confirmed: true})
		}
	}

	return highs, lows
}

// FindSwings returns all swings merged in index order (highs before lows on the same bar)
func (sd *SwingDetector) FindSwings(bars []market.Bar) []SwingPoint {
	highs, lows := sd.Detect(bars)
	return MergeSwings(highs, lows)
}

// MergeSwings merges two swing lists by index
func MergeSwings(highs, lows []SwingPoint) []SwingPoint {
	all := make([]SwingPoint, 0, len(highs)+len(lows))
	all = append(all, highs...)
	all = append(all, lows...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})
	return all
}

// SwingsBetween filters swings with from <= Index <= to
func SwingsBetween(swings []SwingPoint, from, to int) []SwingPoint {
	var out []SwingPoint
	for _, s := range swings {
		if s.Index >= from && s.Index <= to {
			out = append(out, s)
		}
	}
	return out
}
