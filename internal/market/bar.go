package market

import (
	"math"
	"time"
)

// Direction is the directional bias of a bar, zone or signal
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// Opposite returns the reverse direction. Neutral stays neutral.
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return Neutral
	}
}

// Bar is one OHLCV candle for a symbol/timeframe pair
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timeframe Timeframe `json:"timeframe"`
}

// Range returns high - low
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body returns the absolute open/close distance
func (b Bar) Body() float64 {
	return math.Abs(b.Close - b.Open)
}

// Direction classifies the bar by its close relative to its open
func (b Bar) Direction() Direction {
	switch {
	case b.Close > b.Open:
		return Bullish
	case b.Close < b.Open:
		return Bearish
	default:
		return Neutral
	}
}

func (b Bar) IsBullish() bool { return b.Close > b.Open }
func (b Bar) IsBearish() bool { return b.Close < b.Open }

// BodyRatio returns body/range, 0 for a zero-range bar
func (b Bar) BodyRatio() float64 {
	r := b.Range()
	if r <= 0 {
		return 0
	}
	return b.Body() / r
}

// Closes extracts close prices
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Last returns the final bar and false when bars is empty
func Last(bars []Bar) (Bar, bool) {
	if len(bars) == 0 {
		return Bar{}, false
	}
	return bars[len(bars)-1], true
}
