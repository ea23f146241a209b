package triggers

import (
	"math"

	"fortis-trading-bot/internal/market"
)

// ReversalDetector detects candlestick reversals at a working zone
type ReversalDetector struct {
	th Thresholds
}

// NewReversalDetector creates a reversal detector
func NewReversalDetector(th Thresholds) *ReversalDetector {
	return &ReversalDetector{th: th}
}

// DetectAll tries each reversal in order of strength and returns the first match.
// Needs at least 3 bars; the second result is false when nothing was found.
func (rd *ReversalDetector) DetectAll(bars []market.Bar, zone float64, zt ZoneType) (Trigger, bool) {
	if len(bars) < 3 {
		return Trigger{}, false
	}

	detectors := []func([]market.Bar, float64, ZoneType) (Trigger, bool){
		rd.FakeOut,
		rd.Engulfing,
		rd.Star,
		rd.Tweezers,
	}
	for _, detect := range detectors {
		if t, ok := detect(bars, zone, zt); ok {
			return t, true
		}
	}
	return Trigger{}, false
}

// Engulfing checks whether the last bar's body engulfs the full range of the bar before it
func (rd *ReversalDetector) Engulfing(bars []market.Bar, zone float64, zt ZoneType) (Trigger, bool) {
	if len(bars) < 2 {
		return Trigger{}, false
	}
	c1, c2 := bars[len(bars)-2], bars[len(bars)-1]
	dir := zt.Expected()

	var engulfs, inZone bool
	if dir == market.Bullish {
		engulfs = c1.IsBearish() && c2.IsBullish() &&
			c2.Body() > c1.Range() &&
			c2.Close > c1.High && c2.Open < c1.Low
		inZone = c2.Low <= zone*(1+rd.th.ZoneTolerance)
	} else {
		engulfs = c1.IsBullish() && c2.IsBearish() &&
			c2.Body() > c1.Range() &&
			c2.Close < c1.Low && c2.Open > c1.High
		inZone = c2.High >= zone*(1-rd.th.ZoneTolerance)
	}
	if !engulfs || !inZone {
		return Trigger{}, false
	}

	return Trigger{
		Kind:      Engulfing,
		Direction: dir,
		Entry:     c2.Close,
		Strength:  rd.th.EngulfingStrength,
		Passes50:  c2.Body() > c2.Range()*rd.th.EngulfingBody,
		Bars:      []market.Bar{c1, c2},
	}, true
}

// Tweezers checks two bars of similar range with matching extremes and opposite bodies
func (rd *ReversalDetector) Tweezers(bars []market.Bar, zone float64, zt ZoneType) (Trigger, bool) {
	if len(bars) < 2 {
		return Trigger{}, false
	}
	c1, c2 := bars[len(bars)-2], bars[len(bars)-1]
	dir := zt.Expected()

	maxRange := math.Max(c1.Range(), c2.Range())
	if maxRange <= 0 {
		return Trigger{}, false
	}
	if math.Abs(c1.Range()-c2.Range())/maxRange >= rd.th.TweezersRangeDiff {
		return Trigger{}, false
	}

	var ok, inZone bool
	if dir == market.Bullish {
		similar := c1.Low > 0 && math.Abs(c1.Low-c2.Low)/c1.Low < rd.th.TweezersExtreme
		ok = similar && c1.IsBearish() && c2.IsBullish()
		inZone = math.Min(c1.Low, c2.Low) <= zone*(1+rd.th.ZoneTolerance)
	} else {
		similar := c1.High > 0 && math.Abs(c1.High-c2.High)/c1.High < rd.th.TweezersExtreme
		ok = similar && c1.IsBullish() && c2.IsBearish()
		inZone = math.Max(c1.High, c2.High) >= zone*(1-rd.th.ZoneTolerance)
	}
	if !ok || !inZone {
		return Trigger{}, false
	}

	return Trigger{
		Kind:      Tweezers,
		Direction: dir,
		Entry:     c2.Close,
		Strength:  rd.th.TweezersStrength,
		Passes50:  c2.Body() > c2.Range()*rd.th.TweezersBody,
		Bars:      []market.Bar{c1, c2},
	}, true
}

// Star checks a morning star at support or an evening star at resistance
func (rd *ReversalDetector) Star(bars []market.Bar, zone float64, zt ZoneType) (Trigger, bool) {
	if len(bars) < 3 {
		return Trigger{}, false
	}
	c1, c2, c3 := bars[len(bars)-3], bars[len(bars)-2], bars[len(bars)-1]
	dir := zt.Expected()

	// C2: indecision bar
	if c2.Body() >= c2.Range()*rd.th.StarMiddleBody {
		return Trigger{}, false
	}

	mid := (c1.Open + c1.Close) / 2
	var ok, inZone bool
	kind := MorningStar
	if dir == market.Bullish {
		ok = c1.IsBearish() && c3.IsBullish() && c3.Close > mid
		inZone = c2.Low <= zone*(1+rd.th.ZoneTolerance)
	} else {
		kind = EveningStar
		ok = c1.IsBullish() && c3.IsBearish() && c3.Close < mid
		inZone = c2.High >= zone*(1-rd.th.ZoneTolerance)
	}
	if !ok || !inZone {
		return Trigger{}, false
	}

	return Trigger{
		Kind:      kind,
		Direction: dir,
		Entry:     c3.Close,
		Strength:  rd.th.StarStrength,
		Passes50:  c3.Body() > c3.Range()*rd.th.StarBody,
		Bars:      []market.Bar{c1, c2, c3},
	}, true
}

// FakeOut checks a single bar that pierces the zone and closes back across it
func (rd *ReversalDetector) FakeOut(bars []market.Bar, zone float64, zt ZoneType) (Trigger, bool) {
	if len(bars) < 1 {
		return Trigger{}, false
	}
	c := bars[len(bars)-1]
	dir := zt.Expected()
	strongBody := c.Body() > c.Range()*rd.th.FakeOutReversal

	var ok bool
	if dir == market.Bullish {
		ok = c.Low < zone*(1-rd.th.FakeOutPierce) && c.Close > zone && c.IsBullish() && strongBody
	} else {
		ok = c.High > zone*(1+rd.th.FakeOutPierce) && c.Close < zone && c.IsBearish() && strongBody
	}
	if !ok {
		return Trigger{}, false
	}

	return Trigger{
		Kind:      FakeOut,
		Direction: dir,
		Entry:     c.Close,
		Strength:  rd.th.FakeOutStrength,
		Passes50:  c.Body() > c.Range()*rd.th.FakeOutBody,
		Bars:      []market.Bar{c},
	}, true
}
