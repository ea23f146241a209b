package signals

import (
	"fortis-trading-bot/internal/chartpattern"
	"fortis-trading-bot/internal/divergence"
	"fortis-trading-bot/internal/trendline"
	"fortis-trading-bot/internal/triggers"
)

// Config centralizes the generator thresholds
type Config struct {
	MinBars              int     `json:"min_bars"`
	ZoneDistance         float64 `json:"zone_distance"`         // Max distance from price to a line to consider it
	StopPercent          float64 `json:"stop_percent"`          // Default stop distance used by the Trinity
	TargetPercent        float64 `json:"target_percent"`        // Default target distance used by the Trinity
	TriggerWindow        int     `json:"trigger_window"`        // Recent bars searched for triggers
	ImpulseFallback      float64 `json:"impulse_fallback"`      // Assumed impulse size behind a line breakout
	ConvergenceTolerance float64 `json:"convergence_tolerance"` // "Same price" distance for convergence factors
	StructureLookback    int     `json:"structure_lookback"`
	VolumePeriod         int     `json:"volume_period"`

	Lines      trendline.Config    `json:"lines"`
	Patterns   chartpattern.Config `json:"patterns"`
	Divergence divergence.Config   `json:"divergence"`
	Triggers   triggers.Thresholds `json:"triggers"`
}

// DefaultConfig returns the standard generator settings: 50 bars minimum, lines
// within 2%, and a 2% stop with a 4% target
func DefaultConfig() Config {
	return Config{
		MinBars:              50,
		ZoneDistance:         0.02,
		StopPercent:          0.02,
		TargetPercent:        0.04,
		TriggerWindow:        5,
		ImpulseFallback:      0.05,
		ConvergenceTolerance: 0.01,
		StructureLookback:    2,
		VolumePeriod:         20,
		Lines:                trendline.DefaultConfig(),
		Patterns:             chartpattern.DefaultConfig(),
		Divergence:           divergence.DefaultConfig(),
		Triggers:             triggers.DefaultThresholds(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinBars <= 0 {
		c.MinBars = def.MinBars
	}
	if c.ZoneDistance <= 0 {
		c.ZoneDistance = def.ZoneDistance
	}
	if c.StopPercent <= 0 {
		c.StopPercent = def.StopPercent
	}
	if c.TargetPercent <= 0 {
		c.TargetPercent = def.TargetPercent
	}
	if c.TriggerWindow < 3 {
		c.TriggerWindow = def.TriggerWindow
	}
	if c.ImpulseFallback <= 0 {
		c.ImpulseFallback = def.ImpulseFallback
	}
	if c.ConvergenceTolerance <= 0 {
		c.ConvergenceTolerance = def.ConvergenceTolerance
	}
	if c.StructureLookback <= 0 {
		c.StructureLookback = def.StructureLookback
	}
	if c.VolumePeriod <= 0 {
		c.VolumePeriod = def.VolumePeriod
	}
	if c.Triggers == (triggers.Thresholds{}) {
		c.Triggers = def.Triggers
	}
	return c
}
