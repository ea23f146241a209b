package chartpattern

import (
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

// PatternType identifies a chart formation
type PatternType string

const (
	DoubleTop          PatternType = "DOUBLE_TOP"
	DoubleBottom       PatternType = "DOUBLE_BOTTOM"
	HeadShoulders      PatternType = "HEAD_SHOULDERS"
	InvHeadShoulders   PatternType = "INV_HEAD_SHOULDERS"
	RisingWedge        PatternType = "RISING_WEDGE"
	FallingWedge       PatternType = "FALLING_WEDGE"
	SymmetricTriangle  PatternType = "SYMMETRIC_TRIANGLE"
	AscendingTriangle  PatternType = "ASCENDING_TRIANGLE"
	DescendingTriangle PatternType = "DESCENDING_TRIANGLE"
)

// IsWedge reports the 50% target family
func (t PatternType) IsWedge() bool {
	return t == RisingWedge || t == FallingWedge
}

// Status is the lifecycle state of a pattern
type Status string

const (
	Forming      Status = "FORMING"
	PullbackWait Status = "PULLBACK_WAIT"
	Active       Status = "ACTIVE"
	Invalidated  Status = "INVALIDATED"
	TargetHit    Status = "TARGET_HIT"
)

// Terminal reports whether no further transition may occur
func (s Status) Terminal() bool {
	return s == Invalidated || s == TargetHit
}

// ID identifies a pattern inside one Detector
type ID int

// Pattern is a detected multi-point formation
type Pattern struct {
	ID           ID                     `json:"id"`
	Type         PatternType            `json:"type"`
	Direction    market.Direction       `json:"direction"`
	Status       Status                 `json:"status"`
	Neckline     float64                `json:"neckline"`
	Target       float64                `json:"target"`
	Invalidation float64                `json:"invalidation"`
	Height       float64                `json:"height"`
	Points       []structure.SwingPoint `json:"points"`
	PullbackHigh float64                `json:"pullback_high"`
	PullbackLow  float64                `json:"pullback_low"`
	KnownFrom    int                    `json:"known_from"`
	UpdatedAt    int                    `json:"updated_at"`

	// Bounds of a neutral triangle, used to resolve its direction at breakout
	upper float64
	lower float64
}

// EntryPrice is the neckline, where the pullback entry is expected
func (p *Pattern) EntryPrice() float64 {
	return p.Neckline
}

// ImpulseStart is the price the breakout leg started from (neckline minus height
// for bullish patterns, plus height for bearish ones)
func (p *Pattern) ImpulseStart() float64 {
	if p.Direction == market.Bearish {
		return p.Neckline + p.Height
	}
	return p.Neckline - p.Height
}

func (p *Pattern) breakoutValid(close float64) bool {
	switch p.Direction {
	case market.Bullish:
		return close > p.Neckline
	case market.Bearish:
		return close < p.Neckline
	default:
		return close > p.upper || close < p.lower
	}
}

func (p *Pattern) pullbackValid(b market.Bar) bool {
	if b.Low > p.PullbackHigh || b.High < p.PullbackLow {
		return false
	}
	if p.Direction == market.Bullish {
		return b.IsBullish()
	}
	return b.IsBearish()
}

func (p *Pattern) invalidated(close float64) bool {
	switch p.Direction {
	case market.Bullish:
		return close < p.Invalidation
	case market.Bearish:
		return close > p.Invalidation
	default:
		return false
	}
}

func (p *Pattern) targetHit(b market.Bar) bool {
	switch p.Direction {
	case market.Bullish:
		return b.High >= p.Target
	case market.Bearish:
		return b.Low <= p.Target
	default:
		return false
	}
}

// resolve fixes direction, target and invalidation of a neutral triangle at breakout
func (p *Pattern) resolve(close float64, cfg Config) {
	if close > p.upper {
		p.Direction = market.Bullish
		p.Neckline = p.upper
		p.Target = p.upper + p.Height*cfg.TargetRatio
		p.Invalidation = p.lower * (1 - cfg.InvalidationBuffer)
	} else {
		p.Direction = market.Bearish
		p.Neckline = p.lower
		p.Target = p.lower - p.Height*cfg.TargetRatio
		p.Invalidation = p.upper * (1 + cfg.InvalidationBuffer)
	}
	p.setPullbackZone(cfg)
}

func (p *Pattern) setPullbackZone(cfg Config) {
	p.PullbackHigh = p.Neckline * (1 + cfg.PullbackTolerance)
	p.PullbackLow = p.Neckline * (1 - cfg.PullbackTolerance)
}

// advance applies one bar to the state machine. Invalidation is checked first and
// ends processing; breakout, pullback and target may cascade on the same bar.
func (p *Pattern) advance(b market.Bar, idx int, cfg Config) bool {
	if p.Status.Terminal() {
		return false
	}
	old := p.Status

	if p.invalidated(b.Close) {
		p.Status = Invalidated
		p.UpdatedAt = idx
		return true
	}

	if p.Status == Forming && p.breakoutValid(b.Close) {
		if p.Direction == market.Neutral {
			p.resolve(b.Close, cfg)
		}
		p.Status = PullbackWait
	}
	if p.Status == PullbackWait && p.pullbackValid(b) {
		p.Status = Active
	}
	if p.Status == Active && p.targetHit(b) {
		p.Status = TargetHit
	}

	if p.Status != old {
		p.UpdatedAt = idx
		return true
	}
	return false
}
