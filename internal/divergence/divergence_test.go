package divergence

import (
	"math"
	"testing"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

func TestRSIAlignment(t *testing.T) {
	closes := []float64{10, 11, 10, 11, 10}
	rsi := RSI(closes, 2)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("rsi[%d] should be undefined, got %f", i, rsi[i])
		}
	}
	if math.Abs(rsi[2]-50) > 1e-9 {
		t.Errorf("rsi[2] = %f, want 50", rsi[2])
	}
	// gain (0.5*1+1)/2 = 0.75, loss (0.5*1+0)/2 = 0.25 -> RS 3
	if math.Abs(rsi[3]-75) > 1e-9 {
		t.Errorf("rsi[3] = %f, want 75", rsi[3])
	}
}

func TestRSINoLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	rsi := RSI(closes, 14)
	if rsi[14] != 100 || rsi[19] != 100 {
		t.Errorf("rising series should give RSI 100, got %f %f", rsi[14], rsi[19])
	}
	if len(RSI(closes[:10], 14)) != 10 {
		t.Error("result must stay aligned with input length")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, r1, r2 float64
		want           Class
	}{
		{"strong both", 100, 97, 30, 42, ClassA},
		{"price only", 100, 97, 30, 33, ClassB},
		{"rsi only", 100, 99.5, 30, 36, ClassB},
		{"weak", 100, 99.5, 30, 32, ClassC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.p1, tt.p2, tt.r1, tt.r2); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStrengthCapped(t *testing.T) {
	s := Strength(ClassA, 100, 80, 20, 60)
	if s != 1 {
		t.Errorf("strength should cap at 1, got %f", s)
	}
	s = Strength(ClassC, 100, 99.5, 30, 32)
	want := 0.3 + 0.05 + 0.02
	if math.Abs(s-want) > 1e-9 {
		t.Errorf("strength = %f, want %f", s, want)
	}
}

func TestConditionsAreSymmetric(t *testing.T) {
	pairs := [][2]Type{{RegularBullish, HiddenBearish}, {RegularBearish, HiddenBullish}}
	for _, p := range pairs {
		for _, v := range [][2]float64{{1, 2}, {2, 1}} {
			if priceCondition(p[0], v[0], v[1]) != priceCondition(p[1], v[0], v[1]) {
				t.Errorf("%s and %s should share the price slope", p[0], p[1])
			}
			if oscCondition(p[0], v[0], v[1]) != oscCondition(p[1], v[0], v[1]) {
				t.Errorf("%s and %s should share the oscillator slope", p[0], p[1])
			}
		}
	}
	if RegularBullish.Direction() != market.Bullish || HiddenBearish.Direction() != market.Bearish {
		t.Error("unexpected divergence directions")
	}
}

func TestNearestPrefersFirstOnTie(t *testing.T) {
	points := []oscPoint{{8, 40}, {12, 45}, {20, 50}}
	p, ok := nearest(points, 10, 3)
	if !ok || p.index != 8 {
		t.Errorf("expected first equidistant swing, got %+v", p)
	}
	if _, ok := nearest(points, 16, 3); ok {
		t.Error("no swing within tolerance")
	}
}

func TestScanRegularBullish(t *testing.T) {
	d := NewDetector(DefaultConfig())
	bars := make([]market.Bar, 40)
	for i := range bars {
		bars[i].Timestamp = time.Unix(int64(i), 0)
	}

	lows := []structure.SwingPoint{
		{Price: 100, Index: 10, Type: structure.SwingLow},
		{Price: 97, Index: 25, Type: structure.SwingLow},
	}
	osc := []oscPoint{{11, 28}, {24, 40}}

	divs := d.scan(bars, lows, osc, RegularBullish)
	if len(divs) != 1 {
		t.Fatalf("expected one divergence, got %d", len(divs))
	}
	div := divs[0]
	if div.Class != ClassA || div.Direction != market.Bullish || div.EndIndex != 25 {
		t.Errorf("unexpected divergence: %+v", div)
	}
	if !div.Confirms(market.Bullish) || div.Confirms(market.Bearish) {
		t.Error("regular bullish should confirm bullish only")
	}
	if hidden := d.scan(bars, lows, osc, HiddenBullish); len(hidden) != 0 {
		t.Error("lower low cannot be a hidden bullish divergence")
	}
}

func TestDetectInsufficientData(t *testing.T) {
	d := NewDetector(DefaultConfig())
	if divs := d.Detect(make([]market.Bar, 34)); divs != nil {
		t.Error("expected no divergences below the minimum history")
	}
}

func TestOscillatorSwingsSkipUndefined(t *testing.T) {
	nan := math.NaN()
	values := []float64{nan, nan, nan, 50, 40, 45, 60, 45, 40, 50, 55}
	highs, lows := oscillatorSwings(values, 3)
	if len(lows) != 0 {
		t.Errorf("window touching undefined values must be skipped: %+v", lows)
	}
	if len(highs) != 1 || highs[0].index != 6 {
		t.Errorf("expected swing high at 6, got %+v", highs)
	}
}

func TestRSIMatchesIndicatorLibrary(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7) + 3*math.Sin(float64(i)*1.3)
	}

	ours := RSI(closes, 14)
	lib := helper.ChanToSlice(momentum.NewRsiWithPeriod[float64](14).Compute(helper.SliceToChan(closes)))
	if len(lib) == 0 {
		t.Fatal("indicator library produced no values")
	}

	// Both are Wilder smoothed, so the tails agree once the seeds have decayed
	for k := 1; k <= 20; k++ {
		a, b := ours[len(ours)-k], lib[len(lib)-k]
		if math.Abs(a-b) > 1 {
			t.Errorf("RSI %d bars from the end: got %f, library %f", k-1, a, b)
		}
	}
}
