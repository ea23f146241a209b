package chartpattern

import (
	"math"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

// Config holds the geometric tolerances of pattern detection
type Config struct {
	SwingLookback      int
	PeakTolerance      float64 // Max relative gap between double top/bottom peaks
	ShoulderTolerance  float64 // Max relative gap between shoulders
	TargetRatio        float64 // Fraction of height projected for the target
	WedgeTargetRatio   float64
	InvalidationBuffer float64 // Fraction beyond the extreme that invalidates
	PullbackTolerance  float64 // Half-width of the pullback band around the neckline
	FlatSlope          float64 // Slope magnitude treated as flat
}

// DefaultConfig returns the standard pattern geometry
func DefaultConfig() Config {
	return Config{
		SwingLookback:      3,
		PeakTolerance:      0.01,
		ShoulderTolerance:  0.05,
		TargetRatio:        0.75,
		WedgeTargetRatio:   0.5,
		InvalidationBuffer: 0.01,
		PullbackTolerance:  0.005,
		FlatSlope:          0.0001,
	}
}

// Detector finds chart patterns and drives their lifecycle
type Detector struct {
	config   Config
	swings   *structure.SwingDetector
	patterns map[ID]*Pattern
	order    []ID
	nextID   ID
}

// NewDetector creates a pattern detector
func NewDetector(cfg Config) *Detector {
	if cfg.SwingLookback <= 0 {
		cfg = DefaultConfig()
	}
	return &Detector{
		config:   cfg,
		swings:   structure.NewSwingDetector(cfg.SwingLookback),
		patterns: make(map[ID]*Pattern),
		nextID:   1,
	}
}

// Reset drops every tracked pattern
func (d *Detector) Reset() {
	d.patterns = make(map[ID]*Pattern)
	d.order = nil
}

// Detect finds patterns in bars and starts tracking them in FORMING state
func (d *Detector) Detect(bars []market.Bar) []*Pattern {
	highs, lows := d.swings.Detect(bars)

	var found []*Pattern
	found = append(found, d.doubleTops(highs, lows)...)
	found = append(found, d.doubleBottoms(highs, lows)...)
	found = append(found, d.headShoulders(highs, lows)...)
	found = append(found, d.inverseHeadShoulders(highs, lows)...)
	found = append(found, d.trianglesAndWedges(highs, lows)...)

	for _, p := range found {
		p.ID = d.nextID
		d.nextID++
		p.Status = Forming
		p.KnownFrom = lastIndex(p.Points) + d.config.SwingLookback
		if p.Direction != market.Neutral {
			p.setPullbackZone(d.config)
		}
		d.patterns[p.ID] = p
		d.order = append(d.order, p.ID)
	}
	return found
}

// Scan resets the detector, detects patterns over bars and replays every bar after
// each pattern became visible, so the returned statuses reflect history only.
func (d *Detector) Scan(bars []market.Bar) []*Pattern {
	d.Reset()
	found := d.Detect(bars)
	for i, b := range bars {
		d.Update(b, i)
	}
	return found
}

// Update advances every non-terminal pattern known before idx and returns those that changed
func (d *Detector) Update(b market.Bar, idx int) []*Pattern {
	var changed []*Pattern
	for _, id := range d.order {
		p := d.patterns[id]
		if p.KnownFrom >= idx {
			continue
		}
		if p.advance(b, idx, d.config) {
			changed = append(changed, p)
		}
	}
	return changed
}

// Get returns a pattern by ID
func (d *Detector) Get(id ID) (*Pattern, bool) {
	p, ok := d.patterns[id]
	return p, ok
}

// All returns every tracked pattern in detection order
func (d *Detector) All() []*Pattern {
	out := make([]*Pattern, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.patterns[id])
	}
	return out
}

// WithStatus filters tracked patterns
func (d *Detector) WithStatus(statuses ...Status) []*Pattern {
	var out []*Pattern
	for _, p := range d.All() {
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Tradeable returns patterns waiting for or inside their pullback entry
func (d *Detector) Tradeable() []*Pattern {
	return d.WithStatus(PullbackWait, Active)
}

func (d *Detector) doubleTops(highs, lows []structure.SwingPoint) []*Pattern {
	var out []*Pattern
	for i := 0; i+1 < len(highs); i++ {
		p1, p2 := highs[i], highs[i+1]
		avg := (p1.Price + p2.Price) / 2
		if math.Abs(p1.Price-p2.Price)/avg > d.config.PeakTolerance {
			continue
		}
		valley, ok := firstBetween(lows, p1.Index, p2.Index)
		if !ok {
			continue
		}

		h := avg - valley.Price
		out = append(out, &Pattern{
			Type:         DoubleTop,
			Direction:    market.Bearish,
			Neckline:     valley.Price,
			Target:       valley.Price - h*d.config.TargetRatio,
			Invalidation: math.Max(p1.Price, p2.Price) * (1 + d.config.InvalidationBuffer),
			Height:       h,
			Points:       []structure.SwingPoint{p1, valley, p2},
		})
	}
	return out
}

func (d *Detector) doubleBottoms(highs, lows []structure.SwingPoint) []*Pattern {
	var out []*Pattern
	for i := 0; i+1 < len(lows); i++ {
		b1, b2 := lows[i], lows[i+1]
		avg := (b1.Price + b2.Price) / 2
		if math.Abs(b1.Price-b2.Price)/avg > d.config.PeakTolerance {
			continue
		}
		peak, ok := firstBetween(highs, b1.Index, b2.Index)
		if !ok {
			continue
		}

		h := peak.Price - avg
		out = append(out, &Pattern{
			Type:         DoubleBottom,
			Direction:    market.Bullish,
			Neckline:     peak.Price,
			Target:       peak.Price + h*d.config.TargetRatio,
			Invalidation: math.Min(b1.Price, b2.Price) * (1 - d.config.InvalidationBuffer),
			Height:       h,
			Points:       []structure.SwingPoint{b1, peak, b2},
		})
	}
	return out
}

func (d *Detector) headShoulders(highs, lows []structure.SwingPoint) []*Pattern {
	var out []*Pattern
	for i := 0; i+2 < len(highs); i++ {
		ls, head, rs := highs[i], highs[i+1], highs[i+2]
		if head.Price <= ls.Price || head.Price <= rs.Price {
			continue
		}
		if math.Abs(ls.Price-rs.Price)/ls.Price > d.config.ShoulderTolerance {
			continue
		}
		leftLow, ok1 := firstBetween(lows, ls.Index, head.Index)
		rightLow, ok2 := firstBetween(lows, head.Index, rs.Index)
		if !ok1 || !ok2 {
			continue
		}

		neck := (leftLow.Price + rightLow.Price) / 2
		h := head.Price - neck
		out = append(out, &Pattern{
			Type:         HeadShoulders,
			Direction:    market.Bearish,
			Neckline:     neck,
			Target:       neck - h*d.config.TargetRatio,
			Invalidation: head.Price * (1 + d.config.InvalidationBuffer),
			Height:       h,
			Points:       []structure.SwingPoint{ls, leftLow, head, rightLow, rs},
		})
	}
	return out
}

func (d *Detector) inverseHeadShoulders(highs, lows []structure.SwingPoint) []*Pattern {
	var out []*Pattern
	for i := 0; i+2 < len(lows); i++ {
		ls, head, rs := lows[i], lows[i+1], lows[i+2]
		if head.Price >= ls.Price || head.Price >= rs.Price {
			continue
		}
		if math.Abs(ls.Price-rs.Price)/ls.Price > d.config.ShoulderTolerance {
			continue
		}
		leftHigh, ok1 := firstBetween(highs, ls.Index, head.Index)
		rightHigh, ok2 := firstBetween(highs, head.Index, rs.Index)
		if !ok1 || !ok2 {
			continue
		}

		neck := (leftHigh.Price + rightHigh.Price) / 2
		h := neck - head.Price
		out = append(out, &Pattern{
			Type:         InvHeadShoulders,
			Direction:    market.Bullish,
			Neckline:     neck,
			Target:       neck + h*d.config.TargetRatio,
			Invalidation: head.Price * (1 - d.config.InvalidationBuffer),
			Height:       h,
			Points:       []structure.SwingPoint{ls, leftHigh, head, rightHigh, rs},
		})
	}
	return out
}

// trianglesAndWedges classifies the last two highs and lows by slope sign
func (d *Detector) trianglesAndWedges(highs, lows []structure.SwingPoint) []*Pattern {
	if len(highs) < 2 || len(lows) < 2 {
		return nil
	}
	h1, h2 := highs[len(highs)-2], highs[len(highs)-1]
	l1, l2 := lows[len(lows)-2], lows[len(lows)-1]

	hs := (h2.Price - h1.Price) / float64(maxInt(1, h2.Index-h1.Index))
	ls := (l2.Price - l1.Price) / float64(maxInt(1, l2.Index-l1.Index))
	height := h2.Price - l2.Price
	points := structure.MergeSwings([]structure.SwingPoint{h1, h2}, []structure.SwingPoint{l1, l2})
	flat := d.config.FlatSlope
	cfg := d.config

	var out []*Pattern

	switch {
	case hs < 0 && ls > 0:
		out = append(out, &Pattern{
			Type:      SymmetricTriangle,
			Direction: market.Neutral,
			Neckline:  (h2.Price + l2.Price) / 2,
			Height:    height,
			Points:    points,
			upper:     h2.Price,
			lower:     l2.Price,
		})
	case math.Abs(hs) < flat && ls > 0:
		out = append(out, &Pattern{
			Type:         AscendingTriangle,
			Direction:    market.Bullish,
			Neckline:     h2.Price,
			Target:       h2.Price + height*cfg.TargetRatio,
			Invalidation: l2.Price * (1 - cfg.InvalidationBuffer),
			Height:       height,
			Points:       points,
		})
	case hs < 0 && math.Abs(ls) < flat:
		out = append(out, &Pattern{
			Type:         DescendingTriangle,
			Direction:    market.Bearish,
			Neckline:     l2.Price,
			Target:       l2.Price - height*cfg.TargetRatio,
			Invalidation: h2.Price * (1 + cfg.InvalidationBuffer),
			Height:       height,
			Points:       points,
		})
	}

	switch {
	case hs > 0 && ls > 0:
		out = append(out, &Pattern{
			Type:         RisingWedge,
			Direction:    market.Bearish,
			Neckline:     l2.Price,
			Target:       l2.Price - height*cfg.WedgeTargetRatio,
			Invalidation: h2.Price * (1 + cfg.InvalidationBuffer),
			Height:       height,
			Points:       points,
		})
	case hs < 0 && ls < 0:
		out = append(out, &Pattern{
			Type:         FallingWedge,
			Direction:    market.Bullish,
			Neckline:     h2.Price,
			Target:       h2.Price + height*cfg.WedgeTargetRatio,
			Invalidation: l2.Price * (1 - cfg.InvalidationBuffer),
			Height:       height,
			Points:       points,
		})
	}

	return out
}

func firstBetween(points []structure.SwingPoint, from, to int) (structure.SwingPoint, bool) {
	for _, p := range points {
		if p.Index > from && p.Index < to {
			return p, true
		}
	}
	return structure.SwingPoint{}, false
}

func lastIndex(points []structure.SwingPoint) int {
	last := 0
	for _, p := range points {
		if p.Index > last {
			last = p.Index
		}
	}
	return last
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
