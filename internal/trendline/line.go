package trendline

import (
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

// LineType is the role a line plays against price
type LineType string

const (
	Support    LineType = "SUPPORT"
	Resistance LineType = "RESISTANCE"
)

// Direction is the trade direction expected off the line
func (t LineType) Direction() market.Direction {
	if t == Support {
		return market.Bullish
	}
	return market.Bearish
}

const (
	unconfirmedStrikeLimit = 3
	confirmedStrikeLimit   = 4
)

// ID identifies a line inside one Manager
type ID int

// Line is a horizontal or inclined support/resistance level.
// Touch/strike lifecycle: a touch resets strikes, strikes past the limit retire the line.
type Line struct {
	ID          ID                  `json:"id"`
	Price       float64             `json:"price"`
	Slope       float64             `json:"slope"`
	Intercept   float64             `json:"intercept"`
	Type        LineType            `json:"type"`
	CreatedAt   int                 `json:"created_at"`
	KnownFrom   int                 `json:"known_from"`
	Touches     int                 `json:"touches"`
	Strikes     int                 `json:"strikes"`
	Active      bool                `json:"active"`
	Timeframe   market.Timeframe    `json:"timeframe"`
	PivotType   structure.SwingType `json:"pivot_type"`
	EliminateAt int                 `json:"eliminate_at,omitempty"`
}

// NewHorizontal builds an unconfirmed line through one pivot
func NewHorizontal(pivot structure.SwingPoint, tf market.Timeframe) *Line {
	return &Line{
		Price:     pivot.Price,
		Type:      typeFor(pivot.Type),
		CreatedAt: pivot.Index,
		KnownFrom: pivot.Index,
		Touches:   1,
		Active:    true,
		Timeframe: tf,
		PivotType: pivot.Type,
	}
}

// NewInclined builds a confirmed line through two pivots of the same type.
// Returns nil when the pivot types differ or both sit on the same bar.
func NewInclined(p1, p2 structure.SwingPoint, tf market.Timeframe) *Line {
	if p1.Type != p2.Type {
		return nil
	}
	dx := p2.Index - p1.Index
	if dx == 0 {
		return nil
	}

	slope := (p2.Price - p1.Price) / float64(dx)
	known := p1.Index
	if p2.Index > known {
		known = p2.Index
	}

	return &Line{
		Price:     p1.Price,
		Slope:     slope,
		Intercept: p1.Price - slope*float64(p1.Index),
		Type:      typeFor(p1.Type),
		CreatedAt: p1.Index,
		KnownFrom: known,
		Touches:   2,
		Active:    true,
		Timeframe: tf,
		PivotType: p1.Type,
	}
}

func typeFor(t structure.SwingType) LineType {
	if t == structure.SwingHigh {
		return Resistance
	}
	return Support
}

// IsInclined reports a non-zero slope
func (l *Line) IsInclined() bool {
	return l.Slope != 0
}

// PriceAt returns the line price at bar index idx
func (l *Line) PriceAt(idx int) float64 {
	if l.Slope == 0 {
		return l.Price
	}
	return l.Slope*float64(idx) + l.Intercept
}

// Confirmed is true once the line has two or more pivots
func (l *Line) Confirmed() bool {
	return l.Touches >= 2
}

// StrikeLimit is the number of strikes that retires the line
func (l *Line) StrikeLimit() int {
	if l.Confirmed() {
		return confirmedStrikeLimit
	}
	return unconfirmedStrikeLimit
}

// AddTouch registers a new pivot on the line
func (l *Line) AddTouch() {
	if !l.Active {
		return
	}
	l.Touches++
	l.Strikes = 0
}

// AddStrike registers a cross without a pivot. Returns true when the strike retired the line.
func (l *Line) AddStrike() bool {
	if !l.Active {
		return false
	}
	l.Strikes++
	if l.Strikes >= l.StrikeLimit() {
		l.Active = false
		return true
	}
	return false
}
