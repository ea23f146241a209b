package signals

import (
	"fortis-trading-bot/internal/analysis"
	"fortis-trading-bot/internal/chartpattern"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

// Context is the mutable analysis state of one symbol/timeframe pair. It is
// owned by exactly one Generator and must not be shared across goroutines.
type Context struct {
	Symbol    string
	Timeframe market.Timeframe

	Lines     *analysis.MultiframeAnalyzer
	Patterns  *chartpattern.Detector
	Structure *structure.Engine

	snapshot structure.Snapshot
}

// NewContext creates empty state for a pair
func NewContext(symbol string, tf market.Timeframe, cfg Config) *Context {
	return &Context{
		Symbol:    symbol,
		Timeframe: tf,
		Lines:     analysis.NewMultiframeAnalyzer(cfg.Lines),
		Patterns:  chartpattern.NewDetector(cfg.Patterns),
		Structure: structure.NewEngine(cfg.StructureLookback),
	}
}

// RegisterTimeframe adds the lines of another timeframe of the same symbol,
// used for multiframe convergence and conflict checks
func (c *Context) RegisterTimeframe(tf market.Timeframe, bars []market.Bar) {
	c.Lines.Register(tf, bars)
}

// Snapshot returns the structure of the last analyzed window
func (c *Context) Snapshot() structure.Snapshot {
	return c.snapshot
}

// refresh rebuilds lines, patterns and structure of the own timeframe from bars
func (c *Context) refresh(bars []market.Bar) []*chartpattern.Pattern {
	c.Lines.Register(c.Timeframe, bars)
	c.snapshot = c.Structure.Analyze(bars)
	return c.Patterns.Scan(bars)
}
