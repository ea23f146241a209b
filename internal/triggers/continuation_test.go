package triggers

import (
	"testing"

	"fortis-trading-bot/internal/market"
)

func TestContinuationClassification(t *testing.T) {
	cd := NewContinuationDetector(DefaultThresholds())

	// Breakout at 100 from an impulse starting at 90 (impulse size 10)
	tests := []struct {
		name     string
		bars     []market.Bar
		wantKind Kind
		wantOK   bool
		entry    float64
	}{
		{
			name:     "perfect retest",
			bars:     []market.Bar{k(104, 105, 100.2, 101), k(101, 104, 100.5, 103.5)},
			wantKind: PullbackPerfect,
			wantOK:   true,
			entry:    100,
		},
		{
			name:     "long pullback in fib band",
			bars:     []market.Bar{k(103, 103.5, 97, 97.5), k(96.5, 99, 95.8, 98.8)},
			wantKind: PullbackLong,
			wantOK:   true,
			entry:    98.8,
		},
		{
			name:     "short pullback never returns",
			bars:     []market.Bar{k(106, 107, 103, 104), k(104, 108, 103.5, 107.5)},
			wantKind: PullbackShort,
			wantOK:   true,
			entry:    107.5,
		},
		{
			name:   "depth between 10% and fib band",
			bars:   []market.Bar{k(101, 101.5, 98, 98.5), k(98.5, 100.5, 98.3, 100.2)},
			wantOK: false,
		},
		{
			name:   "too deep",
			bars:   []market.Bar{k(100, 100, 93, 94), k(94, 96, 93.5, 95.5)},
			wantOK: false,
		},
		{
			name:   "last bar against direction",
			bars:   []market.Bar{k(104, 105, 100.2, 101), k(103.5, 104, 100.5, 101)},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig, ok := cd.Detect(tt.bars, 100, 90, market.Bullish)
			if ok != tt.wantOK {
				t.Fatalf("detected = %v, want %v (%+v)", ok, tt.wantOK, trig)
			}
			if !ok {
				return
			}
			if trig.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", trig.Kind, tt.wantKind)
			}
			if trig.Entry != tt.entry {
				t.Errorf("entry = %f, want %f", trig.Entry, tt.entry)
			}
			if trig.Family() != Continuation {
				t.Error("pullback must be a continuation trigger")
			}
		})
	}
}

func TestContinuationBearish(t *testing.T) {
	cd := NewContinuationDetector(DefaultThresholds())

	// Breakdown at 100 from 110; bounce back to the level then a bearish close
	bars := []market.Bar{k(96, 99.8, 95, 99), k(99, 99.5, 96, 96.5)}
	trig, ok := cd.Detect(bars, 100, 110, market.Bearish)
	if !ok || trig.Kind != PullbackPerfect || trig.Direction != market.Bearish {
		t.Fatalf("expected bearish perfect pullback, got %+v %v", trig, ok)
	}
}

func TestContinuationRejectsBadInput(t *testing.T) {
	cd := NewContinuationDetector(DefaultThresholds())
	bars := []market.Bar{k(104, 105, 100.2, 101), k(101, 104, 100.5, 103.5)}

	if _, ok := cd.Detect(bars[:1], 100, 90, market.Bullish); ok {
		t.Error("needs at least two bars")
	}
	if _, ok := cd.Detect(bars, 100, 100, market.Bullish); ok {
		t.Error("zero impulse must not detect")
	}
	if _, ok := cd.Detect(bars, 100, 110, market.Bullish); ok {
		t.Error("impulse against the direction must not detect")
	}
}
