package chartpattern

import (
	"math"
	"testing"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

func sp(price float64, idx int, typ structure.SwingType) structure.SwingPoint {
	return structure.SwingPoint{Price: price, Index: idx, Type: typ, Confirmed: true}
}

func hi(price float64, idx int) structure.SwingPoint { return sp(price, idx, structure.SwingHigh) }
func lo(price float64, idx int) structure.SwingPoint { return sp(price, idx, structure.SwingLow) }

func b(o, h, l, c float64) market.Bar {
	return market.Bar{Open: o, High: h, Low: l, Close: c}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDoubleTopGeometry(t *testing.T) {
	d := NewDetector(DefaultConfig())
	highs := []structure.SwingPoint{hi(110, 5), hi(110.5, 15)}
	lows := []structure.SwingPoint{lo(100, 10)}

	found := d.doubleTops(highs, lows)
	if len(found) != 1 {
		t.Fatalf("expected one double top, got %d", len(found))
	}
	p := found[0]
	if p.Direction != market.Bearish || p.Neckline != 100 {
		t.Errorf("unexpected pattern: %+v", p)
	}
	h := 110.25 - 100
	if !approx(p.Target, 100-h*0.75) {
		t.Errorf("target = %f, want %f", p.Target, 100-h*0.75)
	}
	if !approx(p.Invalidation, 110.5*1.01) {
		t.Errorf("invalidation = %f", p.Invalidation)
	}

	// Peaks more than 1% apart
	if got := d.doubleTops([]structure.SwingPoint{hi(110, 5), hi(112, 15)}, lows); len(got) != 0 {
		t.Error("peaks 1.8% apart must not form a double top")
	}
	// No valley strictly between the peaks
	if got := d.doubleTops(highs, []structure.SwingPoint{lo(100, 15)}); len(got) != 0 {
		t.Error("double top needs an intervening low")
	}
}

func TestDoubleBottomGeometry(t *testing.T) {
	d := NewDetector(DefaultConfig())
	found := d.doubleBottoms([]structure.SwingPoint{hi(110, 10)}, []structure.SwingPoint{lo(100, 5), lo(100, 15)})
	if len(found) != 1 {
		t.Fatalf("expected one double bottom, got %d", len(found))
	}
	p := found[0]
	if p.Direction != market.Bullish || p.Neckline != 110 || !approx(p.Target, 117.5) || !approx(p.Invalidation, 99) {
		t.Errorf("unexpected pattern: %+v", p)
	}
}

func TestHeadAndShoulders(t *testing.T) {
	d := NewDetector(DefaultConfig())
	highs := []structure.SwingPoint{hi(110, 5), hi(120, 15), hi(111, 25)}
	lows := []structure.SwingPoint{lo(100, 10), lo(102, 20)}

	found := d.headShoulders(highs, lows)
	if len(found) != 1 {
		t.Fatalf("expected head and shoulders, got %d", len(found))
	}
	p := found[0]
	if p.Neckline != 101 || p.Height != 19 || len(p.Points) != 5 {
		t.Errorf("unexpected pattern: %+v", p)
	}
	if !approx(p.Target, 101-19*0.75) || !approx(p.Invalidation, 121.2) {
		t.Errorf("target = %f invalidation = %f", p.Target, p.Invalidation)
	}

	// Shoulders more than 5% apart
	if got := d.headShoulders([]structure.SwingPoint{hi(100, 5), hi(120, 15), hi(110, 25)}, lows); len(got) != 0 {
		t.Error("uneven shoulders must be rejected")
	}
}

func TestInverseHeadAndShoulders(t *testing.T) {
	d := NewDetector(DefaultConfig())
	lows := []structure.SwingPoint{lo(100, 5), lo(90, 15), lo(101, 25)}
	highs := []structure.SwingPoint{hi(110, 10), hi(108, 20)}

	found := d.inverseHeadShoulders(highs, lows)
	if len(found) != 1 {
		t.Fatalf("expected inverse head and shoulders, got %d", len(found))
	}
	p := found[0]
	if p.Direction != market.Bullish || p.Neckline != 109 || p.Height != 19 {
		t.Errorf("unexpected pattern: %+v", p)
	}
}

func TestTriangleAndWedgeClassification(t *testing.T) {
	tests := []struct {
		name  string
		highs []structure.SwingPoint
		lows  []structure.SwingPoint
		want  []PatternType
	}{
		{"symmetric", []structure.SwingPoint{hi(120, 0), hi(115, 10)}, []structure.SwingPoint{lo(100, 5), lo(105, 15)}, []PatternType{SymmetricTriangle}},
		{"ascending", []structure.SwingPoint{hi(120, 0), hi(120, 10)}, []structure.SwingPoint{lo(100, 5), lo(105, 15)}, []PatternType{AscendingTriangle}},
		{"descending", []structure.SwingPoint{hi(120, 0), hi(115, 10)}, []structure.SwingPoint{lo(100, 5), lo(100, 15)}, []PatternType{DescendingTriangle}},
		{"rising wedge", []structure.SwingPoint{hi(120, 0), hi(125, 10)}, []structure.SwingPoint{lo(100, 5), lo(110, 15)}, []PatternType{RisingWedge}},
		{"falling wedge", []structure.SwingPoint{hi(120, 0), hi(115, 10)}, []structure.SwingPoint{lo(100, 5), lo(90, 15)}, []PatternType{FallingWedge}},
	}

	d := NewDetector(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.trianglesAndWedges(tt.highs, tt.lows)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d patterns, want %d", len(got), len(tt.want))
			}
			for i, p := range got {
				if p.Type != tt.want[i] {
					t.Errorf("pattern %d = %s, want %s", i, p.Type, tt.want[i])
				}
			}
		})
	}
}

func TestWedgeUsesHalfHeightTarget(t *testing.T) {
	d := NewDetector(DefaultConfig())
	got := d.trianglesAndWedges([]structure.SwingPoint{hi(120, 0), hi(125, 10)}, []structure.SwingPoint{lo(100, 5), lo(110, 15)})
	p := got[0]
	// height = 125 - 110
	if !approx(p.Target, 110-15*0.5) {
		t.Errorf("rising wedge target = %f, want %f", p.Target, 110-7.5)
	}
}

func bullishPattern() *Pattern {
	p := &Pattern{
		Type:         DoubleBottom,
		Direction:    market.Bullish,
		Status:       Forming,
		Neckline:     110,
		Target:       117.5,
		Invalidation: 99,
		Height:       10,
	}
	p.setPullbackZone(DefaultConfig())
	return p
}

func TestLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	p := bullishPattern()

	// Breakout bar stays above the pullback band, then a bearish bar inside the band
	// is ignored before a bullish one activates the pattern.
	steps := []struct {
		bar  market.Bar
		want Status
	}{
		{b(105, 108, 104, 107), Forming},
		{b(110.6, 113, 110.6, 112), PullbackWait},
		{b(112, 112.5, 110.3, 111), PullbackWait},
		{b(110.2, 112, 109.8, 111.5), Active},
		{b(112, 118, 111, 117), TargetHit},
	}

	for i, s := range steps {
		p.advance(s.bar, i, cfg)
		if p.Status != s.want {
			t.Fatalf("step %d: status = %s, want %s", i, p.Status, s.want)
		}
	}

	// Terminal state never changes
	if p.advance(b(100, 100, 90, 91), 10, cfg) || p.Status != TargetHit {
		t.Error("TARGET_HIT must be terminal")
	}
}

func TestInvalidationTakesPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	p := bullishPattern()
	p.Invalidation = 111 // a close above the neckline but below invalidation

	p.advance(b(110, 112, 109, 110.5), 1, cfg)
	if p.Status != Invalidated {
		t.Fatalf("status = %s, want INVALIDATED", p.Status)
	}
	if p.advance(b(110, 130, 110, 129), 2, cfg) || p.Status != Invalidated {
		t.Error("INVALIDATED must be terminal")
	}
}

func TestNeutralTriangleResolvesAtBreakout(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)
	p := d.trianglesAndWedges([]structure.SwingPoint{hi(120, 0), hi(115, 10)}, []structure.SwingPoint{lo(100, 5), lo(105, 15)})[0]
	p.Status = Forming

	p.advance(b(110, 114, 109, 113), 20, cfg)
	if p.Status != Forming || p.Direction != market.Neutral {
		t.Fatal("close inside the triangle should not resolve it")
	}

	p.advance(b(115.6, 117, 115.6, 116), 21, cfg)
	if p.Direction != market.Bullish || p.Neckline != 115 {
		t.Fatalf("expected bullish resolution at 115, got %s %f", p.Direction, p.Neckline)
	}
	if !approx(p.Target, 115+10*0.75) || !approx(p.Invalidation, 105*0.99) {
		t.Errorf("target = %f invalidation = %f", p.Target, p.Invalidation)
	}
	if p.Status != PullbackWait {
		t.Errorf("status = %s, want PULLBACK_WAIT", p.Status)
	}
}

func TestUpdateSkipsUnknownPatterns(t *testing.T) {
	d := NewDetector(DefaultConfig())
	p := bullishPattern()
	p.ID = 1
	p.KnownFrom = 10
	d.patterns[p.ID] = p
	d.order = append(d.order, p.ID)

	if changed := d.Update(b(108, 113, 108, 112), 10); len(changed) != 0 {
		t.Error("pattern must not react to bars before it is known")
	}
	if changed := d.Update(b(108, 113, 108, 112), 11); len(changed) != 1 {
		t.Error("pattern should break out once known")
	}
	if len(d.Tradeable()) != 1 {
		t.Error("pattern past its breakout should be tradeable")
	}
}
