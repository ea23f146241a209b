package analysis

import (
	"fmt"
	"math"
	"sort"

	"fortis-trading-bot/internal/confluence"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/trendline"
)

// Zone is a price where active lines of several timeframes meet
type Zone struct {
	Price      float64            `json:"price"`
	Timeframes []market.Timeframe `json:"timeframes"`
	Type       trendline.LineType `json:"type"`
	Strength   float64            `json:"strength"`
	Priority   int                `json:"priority"` // Hierarchy index of the first timeframe, lower wins
}

// Context is the multi-timeframe view at one price
type Context struct {
	Price             float64          `json:"price"`
	Timeframe         market.Timeframe `json:"timeframe"`
	Bias              market.Direction `json:"bias"`
	NearestSupport    *Zone            `json:"nearest_support,omitempty"`
	NearestResistance *Zone            `json:"nearest_resistance,omitempty"`
	Zones             []Zone           `json:"zones"`
}

const (
	defaultZoneTolerance = 0.02
	conflictDistance     = 0.01
	biasDominance        = 1.5
)

// MultiframeAnalyzer keeps the lines of every registered timeframe.
// Line prices are read at the last registered bar of the line's timeframe.
type MultiframeAnalyzer struct {
	lines     *trendline.Manager
	lastIndex map[market.Timeframe]int
}

// NewMultiframeAnalyzer creates an analyzer with its own line manager
func NewMultiframeAnalyzer(cfg trendline.Config) *MultiframeAnalyzer {
	return &MultiframeAnalyzer{
		lines:     trendline.NewManager(cfg),
		lastIndex: make(map[market.Timeframe]int),
	}
}

// Lines exposes the underlying line manager
func (a *MultiframeAnalyzer) Lines() *trendline.Manager {
	return a.lines
}

// Register rebuilds the lines of tf from bars and replays their touch/strike
// history. Returns the events produced by the replay.
func (a *MultiframeAnalyzer) Register(tf market.Timeframe, bars []market.Bar) []trendline.Event {
	a.lines.Reset(tf)
	delete(a.lastIndex, tf)
	if len(bars) == 0 {
		return nil
	}

	a.lines.AutoDetect(bars, tf)
	var events []trendline.Event
	for i, b := range bars {
		b.Timeframe = tf
		events = append(events, a.lines.Update(b, i)...)
	}
	a.lastIndex[tf] = len(bars) - 1
	return events
}

// LastIndex returns the index of the last registered bar of tf
func (a *MultiframeAnalyzer) LastIndex(tf market.Timeframe) (int, bool) {
	idx, ok := a.lastIndex[tf]
	return idx, ok
}

// LinePrice is the line's price at the last bar of its timeframe
func (a *MultiframeAnalyzer) LinePrice(l *trendline.Line) float64 {
	return l.PriceAt(a.lastIndex[l.Timeframe])
}

// Levels lists every active line as a convergence level
func (a *MultiframeAnalyzer) Levels() []confluence.Level {
	var out []confluence.Level
	for _, l := range a.lines.Active("") {
		out = append(out, confluence.Level{
			Price:     a.LinePrice(l),
			Timeframe: l.Timeframe,
			Active:    l.Active,
		})
	}
	return out
}

// ConvergentZones groups active lines whose prices lie within tol of a zone's
// first price, walking timeframes from highest to lowest. Only zones seen on at
// least two timeframes are returned, highest priority first.
func (a *MultiframeAnalyzer) ConvergentZones(tol float64) []Zone {
	if tol <= 0 {
		tol = defaultZoneTolerance
	}
	n := float64(len(market.Hierarchy))
	var zones []*Zone

	for idx, tf := range market.Hierarchy {
		weight := (n - float64(idx)) / n
		for _, l := range a.lines.Active(tf) {
			price := a.LinePrice(l)
			var matched *Zone
			for _, z := range zones {
				if z.Price != 0 && math.Abs(z.Price-price)/z.Price < tol {
					matched = z
					break
				}
			}
			if matched != nil {
				matched.Timeframes = append(matched.Timeframes, tf)
				matched.Strength += weight
				continue
			}
			zones = append(zones, &Zone{
				Price:      price,
				Timeframes: []market.Timeframe{tf},
				Type:       l.Type,
				Strength:   weight,
				Priority:   idx,
			})
		}
	}

	var out []Zone
	for _, z := range zones {
		if distinct(z.Timeframes) >= 2 {
			out = append(out, *z)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func distinct(tfs []market.Timeframe) int {
	seen := make(map[market.Timeframe]bool, len(tfs))
	for _, tf := range tfs {
		seen[tf] = true
	}
	return len(seen)
}

// HigherTimeframeBias weighs confirmed lines above tf: supports vote bullish,
// resistances bearish, nearer timeframes count less. One side must outweigh the
// other by 1.5x, otherwise the bias is Neutral.
func (a *MultiframeAnalyzer) HigherTimeframeBias(tf market.Timeframe) market.Direction {
	higher := tf.Higher()
	if len(higher) == 0 {
		return market.Neutral
	}

	var bullish, bearish float64
	for i, h := range higher {
		weight := float64(len(higher) - i)
		for _, l := range a.lines.Confirmed(h) {
			if l.Type == trendline.Support {
				bullish += weight
			} else {
				bearish += weight
			}
		}
	}

	switch {
	case bullish > bearish*biasDominance:
		return market.Bullish
	case bearish > bullish*biasDominance:
		return market.Bearish
	}
	return market.Neutral
}

// Analyze builds the multi-timeframe context for price
func (a *MultiframeAnalyzer) Analyze(price float64, tf market.Timeframe) Context {
	zones := a.ConvergentZones(defaultZoneTolerance)
	ctx := Context{
		Price:     price,
		Timeframe: tf,
		Bias:      a.HigherTimeframeBias(tf),
		Zones:     zones,
	}

	for i := range zones {
		z := &zones[i]
		switch {
		case z.Type == trendline.Support && z.Price < price:
			if ctx.NearestSupport == nil || z.Price > ctx.NearestSupport.Price {
				ctx.NearestSupport = z
			}
		case z.Type == trendline.Resistance && z.Price > price:
			if ctx.NearestResistance == nil || z.Price < ctx.NearestResistance.Price {
				ctx.NearestResistance = z
			}
		}
	}
	return ctx
}

// ZoneStrength labels a zone strength
func ZoneStrength(z Zone) string {
	switch {
	case z.Strength >= 0.8:
		return "VERY_STRONG"
	case z.Strength >= 0.6:
		return "STRONG"
	case z.Strength >= 0.4:
		return "MODERATE"
	}
	return "WEAK"
}

// ShouldOperate decides whether l may be traded on tf at price. The line must
// belong to tf or the timeframe directly above, and no active higher-timeframe
// line of the opposite type may sit within 1% of price.
func (a *MultiframeAnalyzer) ShouldOperate(l *trendline.Line, tf market.Timeframe, price float64) (bool, string) {
	if !market.CanOperate(l.Timeframe, tf) {
		return false, fmt.Sprintf("cannot operate %s line in %s", l.Timeframe, tf)
	}
	if price <= 0 {
		return true, "OK"
	}

	for _, h := range tf.Higher() {
		for _, hl := range a.lines.Active(h) {
			hp := a.LinePrice(hl)
			if math.Abs(hp-price)/price < conflictDistance && hl.Type != l.Type {
				return false, fmt.Sprintf("conflicting %s zone at %.2f", h, hp)
			}
		}
	}
	return true, "OK"
}
