package signals

import (
	"time"

	"fortis-trading-bot/internal/chartpattern"
	"fortis-trading-bot/internal/confluence"
	"fortis-trading-bot/internal/divergence"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/trendline"
	"fortis-trading-bot/internal/triggers"
)

// Status is the candidate lifecycle state
type Status string

const (
	Pending   Status = "PENDING"   // Zone found, waiting for a trigger
	Triggered Status = "TRIGGERED" // Trigger fired, not yet validated
	Validated Status = "VALIDATED"
	Rejected  Status = "REJECTED"
	Expired   Status = "EXPIRED" // Zone gone before validation
)

// Terminal reports whether no further transition can happen
func (s Status) Terminal() bool {
	return s == Validated || s == Rejected || s == Expired
}

// Origin is the zone stage a candidate comes from
type Origin string

const (
	FromLine    Origin = "LINE"    // Support/resistance line
	FromPattern Origin = "PATTERN" // Chart pattern neckline
)

// Candidate is a zone and direction waiting to pass the Trinity
type Candidate struct {
	ID          string                   `json:"id"`
	Origin      Origin                   `json:"origin"`
	ZonePrice   float64                  `json:"zone_price"`
	Direction   market.Direction         `json:"direction"`
	Timeframe   market.Timeframe         `json:"timeframe"`
	LineID      trendline.ID             `json:"line_id,omitempty"`
	PatternID   chartpattern.ID          `json:"pattern_id,omitempty"`
	PatternType chartpattern.PatternType `json:"pattern_type,omitempty"`
	Trigger     *triggers.Trigger        `json:"trigger,omitempty"`
	Divergence  *divergence.Divergence   `json:"divergence,omitempty"`
	Convergence *confluence.Zone         `json:"convergence,omitempty"`
	Status      Status                   `json:"status"`
	Reason      string                   `json:"reason,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
}

// HasZone reports whether the candidate still points at its origin
func (c *Candidate) HasZone() bool {
	return c.LineID != 0 || c.PatternID != 0
}

func (c *Candidate) transition(to Status, reason string) bool {
	if c.Status.Terminal() {
		return false
	}
	c.Status = to
	c.Reason = reason
	return true
}
