package confluence

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fortis-trading-bot/internal/chartpattern"
	"fortis-trading-bot/internal/divergence"
	"fortis-trading-bot/internal/market"
)

// ItemType identifies a convergence factor
type ItemType string

const (
	MultiframeZone    ItemType = "MULTIFRAME_ZONE"
	PatternTrigger    ItemType = "PATTERN_TRIGGER"
	StageAlignment    ItemType = "STAGE_ALIGNMENT"
	DivergenceConfirm ItemType = "DIVERGENCE_CONFIRM"
	VolumeConfirm     ItemType = "VOLUME_CONFIRM"
)

// Item is one weighted factor at a zone
type Item struct {
	Type        ItemType `json:"type"`
	Description string   `json:"description"`
	Weight      float64  `json:"weight"`
	Source      string   `json:"source"`
}

// Zone aggregates the factors converging at one price
type Zone struct {
	Price         float64          `json:"price"`
	Direction     market.Direction `json:"direction"`
	Items         []Item           `json:"items"`
	TotalStrength float64          `json:"total_strength"`
}

// Add appends an item and recomputes the capped total strength
func (z *Zone) Add(it Item) {
	z.Items = append(z.Items, it)
	sum := 0.0
	for _, i := range z.Items {
		sum += i.Weight
	}
	z.TotalStrength = math.Min(sum, 1)
}

// Count is the number of factors
func (z *Zone) Count() int {
	return len(z.Items)
}

// Tradeable requires at least two factors
func (z *Zone) Tradeable() bool {
	return z.Count() >= 2
}

// Has reports whether a factor type is present
func (z *Zone) Has(t ItemType) bool {
	for _, i := range z.Items {
		if i.Type == t {
			return true
		}
	}
	return false
}

// Score is the signal quality: 0.5 base, plus 0.4 x strength, plus up to 0.15 for
// factor count, minus 0.1 without stage alignment and 0.05 without multiframe
// alignment, clamped to [0,1].
func (z *Zone) Score() float64 {
	s := 0.5 + z.TotalStrength*0.4 + math.Min(float64(z.Count())*0.05, 0.15)
	if !z.Has(StageAlignment) {
		s -= 0.1
	}
	if !z.Has(MultiframeZone) {
		s -= 0.05
	}
	return math.Max(math.Min(s, 1), 0)
}

// Grade converts the score to a letter grade
func (z *Zone) Grade() string {
	score := z.Score()
	if score >= 0.90 {
		return "A+"
	} else if score >= 0.85 {
		return "A"
	} else if score >= 0.75 {
		return "B+"
	} else if score >= 0.70 {
		return "B"
	} else if score >= 0.60 {
		return "C"
	} else if score >= 0.50 {
		return "D"
	}
	return "F"
}

// Summary renders the zone for logs and alerts
func (z *Zone) Summary() string {
	if z.Count() == 0 {
		return "No convergences detected"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Convergence Zone at %.2f (%s)\n", z.Price, z.Direction)
	fmt.Fprintf(&sb, "Total Strength: %.1f%%\n", z.TotalStrength*100)
	fmt.Fprintf(&sb, "Factors (%d):\n", z.Count())
	for _, it := range z.Items {
		fmt.Fprintf(&sb, "  - %s [%s]\n", it.Description, it.Source)
	}
	if z.Tradeable() {
		sb.WriteString("Tradeable (2+ convergences)")
	} else {
		sb.WriteString("Insufficient convergences")
	}
	return sb.String()
}

// Level is a line price on one timeframe
type Level struct {
	Price     float64          `json:"price"`
	Timeframe market.Timeframe `json:"timeframe"`
	Active    bool             `json:"active"`
}

// Inputs are the facts known about a candidate zone
type Inputs struct {
	Levels     []Level
	Patterns   []*chartpattern.Pattern
	HasTrigger bool
	Divergence *divergence.Divergence
	Volume     bool
}

// Weights per factor type
type Weights struct {
	Multiframe float64
	Pattern    float64
	Stage      float64
	Divergence float64
	Volume     float64
}

// DefaultWeights returns the standard factor weights
func DefaultWeights() Weights {
	return Weights{
		Multiframe: 0.25,
		Pattern:    0.30,
		Stage:      0.25,
		Divergence: 0.15,
		Volume:     0.10,
	}
}

const (
	maxMultiframeWeight = 0.35
	maxDivergenceWeight = 0.25
)

// Analyzer builds convergence zones
type Analyzer struct {
	weights   Weights
	tolerance float64 // Relative distance counted as "same price"
}

// NewAnalyzer creates an analyzer; tolerance <= 0 defaults to 1%
func NewAnalyzer(w Weights, tolerance float64) *Analyzer {
	if tolerance <= 0 {
		tolerance = 0.01
	}
	return &Analyzer{weights: w, tolerance: tolerance}
}

// Analyze collects every factor present at price for dir
func (a *Analyzer) Analyze(price float64, dir market.Direction, in Inputs) *Zone {
	z := &Zone{Price: price, Direction: dir}

	if tfs := a.timeframesNear(price, in.Levels); len(tfs) >= 2 {
		names := make([]string, len(tfs))
		for i, tf := range tfs {
			names[i] = string(tf)
		}
		z.Add(Item{
			Type:        MultiframeZone,
			Description: fmt.Sprintf("Lines from %d timeframes converge", len(tfs)),
			Weight:      math.Min(a.weights.Multiframe*float64(len(tfs))/5, maxMultiframeWeight),
			Source:      strings.Join(names, ","),
		})
	}

	if p := a.matchingPattern(price, dir, in.Patterns); p != nil {
		z.Add(Item{
			Type:        PatternTrigger,
			Description: fmt.Sprintf("Pattern %s at zone", p.Type),
			Weight:      a.weights.Pattern,
			Source:      string(p.Type),
		})
	}

	if in.HasTrigger {
		z.Add(Item{
			Type:        StageAlignment,
			Description: "Trigger confirmed at zone",
			Weight:      a.weights.Stage,
			Source:      "trigger",
		})
	}

	if d := in.Divergence; d != nil {
		w := a.weights.Divergence
		switch d.Class {
		case divergence.ClassA:
			w *= 1.5
		case divergence.ClassC:
			w *= 0.7
		}
		z.Add(Item{
			Type:        DivergenceConfirm,
			Description: fmt.Sprintf("RSI divergence class %s", d.Class),
			Weight:      math.Min(w, maxDivergenceWeight),
			Source:      "div_" + string(d.Class),
		})
	}

	if in.Volume {
		z.Add(Item{
			Type:        VolumeConfirm,
			Description: "Volume confirms move",
			Weight:      a.weights.Volume,
			Source:      "volume",
		})
	}

	return z
}

// timeframesNear returns distinct timeframes of active levels within tolerance of price
func (a *Analyzer) timeframesNear(price float64, levels []Level) []market.Timeframe {
	if price <= 0 {
		return nil
	}
	seen := make(map[market.Timeframe]bool)
	var out []market.Timeframe
	for _, l := range levels {
		if !l.Active || seen[l.Timeframe] {
			continue
		}
		if math.Abs(l.Price-price)/price <= a.tolerance {
			seen[l.Timeframe] = true
			out = append(out, l.Timeframe)
		}
	}
	return out
}

func (a *Analyzer) matchingPattern(price float64, dir market.Direction, patterns []*chartpattern.Pattern) *chartpattern.Pattern {
	if price <= 0 {
		return nil
	}
	for _, p := range patterns {
		if p.Direction != dir || p.EntryPrice() == 0 {
			continue
		}
		if math.Abs(p.EntryPrice()-price)/price <= a.tolerance {
			return p
		}
	}
	return nil
}

// FindBestZones analyzes every active level and pattern entry as a candidate price and
// returns zones with at least one factor, strongest first
func (a *Analyzer) FindBestZones(dir market.Direction, in Inputs) []*Zone {
	seen := make(map[float64]bool)
	var prices []float64
	for _, l := range in.Levels {
		if l.Active && !seen[l.Price] {
			seen[l.Price] = true
			prices = append(prices, l.Price)
		}
	}
	for _, p := range in.Patterns {
		if e := p.EntryPrice(); e != 0 && !seen[e] {
			seen[e] = true
			prices = append(prices, e)
		}
	}

	var zones []*Zone
	for _, price := range prices {
		z := a.Analyze(price, dir, Inputs{Levels: in.Levels, Patterns: in.Patterns})
		if z.Count() >= 1 {
			zones = append(zones, z)
		}
	}

	sort.SliceStable(zones, func(i, j int) bool {
		return zones[i].TotalStrength > zones[j].TotalStrength
	})
	return zones
}
