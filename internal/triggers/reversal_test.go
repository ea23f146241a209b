package triggers

import (
	"testing"

	"fortis-trading-bot/internal/market"
)

func k(o, h, l, c float64) market.Bar {
	return market.Bar{Open: o, High: h, Low: l, Close: c}
}

// TestBullishEngulfing tests engulfing detection at a support zone
func TestBullishEngulfing(t *testing.T) {
	rd := NewReversalDetector(DefaultThresholds())

	c1 := k(102, 103, 100, 101) // Bearish, range 3
	c2 := k(99, 105, 98, 104)   // Bullish, body 5 engulfs c1's range

	trig, ok := rd.Engulfing([]market.Bar{c1, c2}, 100, SupportZone)
	if !ok {
		t.Fatal("Should detect bullish engulfing at support")
	}
	if trig.Kind != Engulfing || trig.Direction != market.Bullish || trig.Entry != 104 {
		t.Errorf("unexpected trigger: %+v", trig)
	}
	if !trig.Passes50 || trig.Strength != 0.7 {
		t.Errorf("passes50 = %v strength = %f", trig.Passes50, trig.Strength)
	}

	// Too far from the zone
	if _, ok := rd.Engulfing([]market.Bar{c1, c2}, 90, SupportZone); ok {
		t.Error("Should NOT detect engulfing away from the zone")
	}

	// C1 not bearish
	if _, ok := rd.Engulfing([]market.Bar{k(100, 103, 100, 101), c2}, 100, SupportZone); ok {
		t.Error("Should NOT detect engulfing when C1 is not bearish")
	}

	// Single bar
	if _, ok := rd.Engulfing([]market.Bar{c2}, 100, SupportZone); ok {
		t.Error("Should NOT detect engulfing with one bar")
	}
}

// TestBearishEngulfing tests engulfing detection at a resistance zone
func TestBearishEngulfing(t *testing.T) {
	rd := NewReversalDetector(DefaultThresholds())

	c1 := k(100, 102, 99, 101) // Bullish
	c2 := k(103, 104, 96, 97)  // Bearish, opens above c1 high and closes below c1 low

	trig, ok := rd.Engulfing([]market.Bar{c1, c2}, 103, ResistanceZone)
	if !ok || trig.Direction != market.Bearish {
		t.Fatal("Should detect bearish engulfing at resistance")
	}
}

// TestTweezers tests tweezers bottom detection
func TestTweezers(t *testing.T) {
	rd := NewReversalDetector(DefaultThresholds())

	c1 := k(102, 102.5, 100, 100.5) // Bearish, range 2.5
	c2 := k(100.5, 102.6, 100.1, 102.2) // Bullish, range 2.5

	trig, ok := rd.Tweezers([]market.Bar{c1, c2}, 100, SupportZone)
	if !ok {
		t.Fatal("Should detect tweezers bottom")
	}
	if trig.Kind != Tweezers || trig.Strength != 0.5 || !trig.Passes50 {
		t.Errorf("unexpected trigger: %+v", trig)
	}

	// Ranges too different
	c2Wide := k(100.5, 105, 100.1, 104)
	if _, ok := rd.Tweezers([]market.Bar{c1, c2Wide}, 100, SupportZone); ok {
		t.Error("Should NOT detect tweezers with dissimilar ranges")
	}

	// Zero ranges must not divide by zero
	flat := k(100, 100, 100, 100)
	if _, ok := rd.Tweezers([]market.Bar{flat, flat}, 100, SupportZone); ok {
		t.Error("Should NOT detect tweezers on flat bars")
	}
}

// TestMorningStar tests the three-bar star at support
func TestMorningStar(t *testing.T) {
	rd := NewReversalDetector(DefaultThresholds())

	c1 := k(106, 106.5, 101, 101.5) // Strong bearish
	c2 := k(100.6, 101.5, 99.8, 100.8) // Indecision, body 0.2 of range 1.7
	c3 := k(101, 105.5, 100.8, 105) // Bullish, closes above c1 midpoint 103.75

	trig, ok := rd.Star([]market.Bar{c1, c2, c3}, 100, SupportZone)
	if !ok {
		t.Fatal("Should detect morning star")
	}
	if trig.Kind != MorningStar || trig.Entry != 105 || !trig.Passes50 {
		t.Errorf("unexpected trigger: %+v", trig)
	}

	// C3 closes below the midpoint of C1's body
	c3Weak := k(101, 103.5, 100.8, 103)
	if _, ok := rd.Star([]market.Bar{c1, c2, c3Weak}, 100, SupportZone); ok {
		t.Error("Should NOT detect star without a close past the midpoint")
	}
}

// TestEveningStar tests the three-bar star at resistance
func TestEveningStar(t *testing.T) {
	rd := NewReversalDetector(DefaultThresholds())

	c1 := k(100, 105, 99.5, 104.5)
	c2 := k(105.2, 106, 104.8, 105.3)
	c3 := k(105, 105.2, 100.5, 101)

	trig, ok := rd.Star([]market.Bar{c1, c2, c3}, 106, ResistanceZone)
	if !ok || trig.Kind != EveningStar || trig.Direction != market.Bearish {
		t.Fatalf("Should detect evening star, got %+v %v", trig, ok)
	}
}

// TestFakeOut tests the single-bar false breakout
func TestFakeOut(t *testing.T) {
	rd := NewReversalDetector(DefaultThresholds())

	// Pierces support at 100 by more than 0.5% and closes back above with a strong body
	c := k(99.6, 101.6, 99.3, 101.5)
	trig, ok := rd.FakeOut([]market.Bar{c}, 100, SupportZone)
	if !ok {
		t.Fatal("Should detect bullish fake-out")
	}
	if trig.Strength != 0.9 || !trig.Passes50 {
		t.Errorf("unexpected trigger: %+v", trig)
	}

	// Pierce shallower than 0.5%
	shallow := k(99.9, 101.6, 99.6, 101.5)
	if _, ok := rd.FakeOut([]market.Bar{shallow}, 100, SupportZone); ok {
		t.Error("Should NOT detect fake-out without a real pierce")
	}
}

// TestDetectAllOrder tests that the strongest trigger wins
func TestDetectAllOrder(t *testing.T) {
	rd := NewReversalDetector(DefaultThresholds())

	if _, ok := rd.DetectAll([]market.Bar{k(1, 2, 0.5, 1.5), k(1, 2, 0.5, 1.5)}, 1, SupportZone); ok {
		t.Error("DetectAll needs at least 3 bars")
	}

	bars := []market.Bar{
		k(103, 104, 102, 102.5),
		k(102, 103, 100, 101),
		k(99.6, 101.6, 99.3, 101.5), // fake-out; not an engulfing since body < c1 range
	}
	trig, ok := rd.DetectAll(bars, 100, SupportZone)
	if !ok || trig.Kind != FakeOut {
		t.Fatalf("expected FAKE_OUT, got %+v %v", trig, ok)
	}

	none := []market.Bar{k(100, 101, 99, 100.5), k(100.5, 101, 100, 100.8), k(100.8, 101.2, 100.4, 101)}
	if _, ok := rd.DetectAll(none, 90, SupportZone); ok {
		t.Error("Should NOT detect triggers far from the zone")
	}
}

func TestKindFamily(t *testing.T) {
	if Engulfing.Family() != Reversal || PullbackLong.Family() != Continuation {
		t.Error("unexpected trigger families")
	}
	if ZoneFor(market.Bearish) != ResistanceZone || SupportZone.Expected() != market.Bullish {
		t.Error("unexpected zone mapping")
	}
}
