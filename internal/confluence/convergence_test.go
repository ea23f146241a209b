package confluence

import (
	"math"
	"testing"

	"fortis-trading-bot/internal/chartpattern"
	"fortis-trading-bot/internal/divergence"
	"fortis-trading-bot/internal/market"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMultiframeWeight(t *testing.T) {
	a := NewAnalyzer(DefaultWeights(), 0.01)
	levels := []Level{
		{Price: 100, Timeframe: market.TF4h, Active: true},
		{Price: 100.5, Timeframe: market.TF1h, Active: true},
		{Price: 99.8, Timeframe: market.TF1h, Active: true}, // same timeframe counted once
		{Price: 100.2, Timeframe: market.TF1d, Active: false},
		{Price: 105, Timeframe: market.TF15m, Active: true},
	}

	z := a.Analyze(100, market.Bullish, Inputs{Levels: levels})
	if z.Count() != 1 || !z.Has(MultiframeZone) {
		t.Fatalf("expected one multiframe item, got %+v", z.Items)
	}
	if !approx(z.Items[0].Weight, 0.25*2/5) {
		t.Errorf("weight = %f, want 0.1", z.Items[0].Weight)
	}
	if z.Tradeable() {
		t.Error("one factor is not tradeable")
	}

	// A single timeframe is not a convergence
	z = a.Analyze(100, market.Bullish, Inputs{Levels: levels[:1]})
	if z.Count() != 0 {
		t.Error("single timeframe must not add a multiframe item")
	}
}

func TestDivergenceWeighting(t *testing.T) {
	a := NewAnalyzer(DefaultWeights(), 0.01)
	tests := []struct {
		class divergence.Class
		want  float64
	}{
		{divergence.ClassA, 0.225},
		{divergence.ClassB, 0.15},
		{divergence.ClassC, 0.105},
	}
	for _, tt := range tests {
		z := a.Analyze(100, market.Bullish, Inputs{Divergence: &divergence.Divergence{Class: tt.class}})
		if !approx(z.Items[0].Weight, tt.want) {
			t.Errorf("class %s weight = %f, want %f", tt.class, z.Items[0].Weight, tt.want)
		}
	}
}

func TestTotalStrengthCapped(t *testing.T) {
	z := &Zone{}
	for i := 0; i < 10; i++ {
		z.Add(Item{Type: PatternTrigger, Weight: 0.3})
		if z.TotalStrength < 0 || z.TotalStrength > 1 {
			t.Fatalf("total strength out of range: %f", z.TotalStrength)
		}
	}
	if z.TotalStrength != 1 {
		t.Errorf("total strength = %f, want 1", z.TotalStrength)
	}
}

func TestScore(t *testing.T) {
	a := NewAnalyzer(DefaultWeights(), 0.01)
	pattern := &chartpattern.Pattern{Type: chartpattern.DoubleBottom, Direction: market.Bullish, Neckline: 100.5}

	z := a.Analyze(100, market.Bullish, Inputs{
		Patterns:   []*chartpattern.Pattern{pattern},
		HasTrigger: true,
		Volume:     true,
	})
	if z.Count() != 3 || !z.Tradeable() {
		t.Fatalf("expected 3 factors, got %+v", z.Items)
	}
	// strength 0.65: 0.5 + 0.26 + 0.15 - 0.05 (no multiframe)
	if !approx(z.Score(), 0.86) {
		t.Errorf("score = %f, want 0.86", z.Score())
	}
	if z.Grade() != "A" {
		t.Errorf("grade = %s, want A", z.Grade())
	}

	empty := a.Analyze(100, market.Bullish, Inputs{})
	if !approx(empty.Score(), 0.35) {
		t.Errorf("empty score = %f, want 0.35", empty.Score())
	}
	if empty.Summary() != "No convergences detected" {
		t.Error("unexpected empty summary")
	}
}

func TestPatternMustShareDirection(t *testing.T) {
	a := NewAnalyzer(DefaultWeights(), 0.01)
	pattern := &chartpattern.Pattern{Type: chartpattern.DoubleTop, Direction: market.Bearish, Neckline: 100}
	z := a.Analyze(100, market.Bullish, Inputs{Patterns: []*chartpattern.Pattern{pattern}})
	if z.Count() != 0 {
		t.Error("opposite pattern must not converge")
	}
}

func TestFindBestZones(t *testing.T) {
	a := NewAnalyzer(DefaultWeights(), 0.01)
	levels := []Level{
		{Price: 100, Timeframe: market.TF4h, Active: true},
		{Price: 100.3, Timeframe: market.TF1h, Active: true},
		{Price: 120, Timeframe: market.TF1h, Active: true},
	}
	patterns := []*chartpattern.Pattern{{Type: chartpattern.DoubleBottom, Direction: market.Bullish, Neckline: 100.2}}

	zones := a.FindBestZones(market.Bullish, Inputs{Levels: levels, Patterns: patterns})
	if len(zones) != 3 {
		t.Fatalf("expected 3 zones around 100, got %d", len(zones))
	}
	for i := 1; i < len(zones); i++ {
		if zones[i].TotalStrength > zones[i-1].TotalStrength {
			t.Error("zones must be sorted by strength")
		}
	}
}
