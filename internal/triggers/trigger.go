package triggers

import "fortis-trading-bot/internal/market"

// Kind identifies a trigger formation
type Kind string

const (
	// Reversal triggers, evaluated at bar close
	Engulfing   Kind = "ENGULFING"
	Tweezers    Kind = "TWEEZERS"
	MorningStar Kind = "MORNING_STAR"
	EveningStar Kind = "EVENING_STAR"
	FakeOut     Kind = "FAKE_OUT"

	// Continuation triggers, evaluated at zone breakout
	PullbackPerfect Kind = "PULLBACK_PERFECT"
	PullbackLong    Kind = "PULLBACK_LONG"
	PullbackShort   Kind = "PULLBACK_SHORT"
)

// Family groups trigger kinds by when they are evaluated
type Family string

const (
	Reversal     Family = "reversal"
	Continuation Family = "continuation"
)

// Family returns the family of the kind
func (k Kind) Family() Family {
	switch k {
	case PullbackPerfect, PullbackLong, PullbackShort:
		return Continuation
	default:
		return Reversal
	}
}

// Trigger is a confirmation event. All kinds share the same contract:
// direction, entry price, strength and the body-to-range ("50%") rule.
type Trigger struct {
	Kind      Kind             `json:"kind"`
	Direction market.Direction `json:"direction"`
	Entry     float64          `json:"entry"`
	Strength  float64          `json:"strength"`
	Passes50  bool             `json:"passes_50"`
	Depth     float64          `json:"depth,omitempty"` // Pullback depth as a fraction of the impulse
	Bars      []market.Bar     `json:"-"`
}

// Family is shorthand for t.Kind.Family()
func (t Trigger) Family() Family {
	return t.Kind.Family()
}

// ZoneType is the role of the zone a reversal is expected at
type ZoneType string

const (
	SupportZone    ZoneType = "SUPPORT"
	ResistanceZone ZoneType = "RESISTANCE"
)

// Expected is the reversal direction expected at the zone
func (z ZoneType) Expected() market.Direction {
	if z == SupportZone {
		return market.Bullish
	}
	return market.Bearish
}

// ZoneFor maps a trade direction to the zone role it reverses from
func ZoneFor(dir market.Direction) ZoneType {
	if dir == market.Bullish {
		return SupportZone
	}
	return ResistanceZone
}
