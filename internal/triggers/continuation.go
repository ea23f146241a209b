package triggers

import "fortis-trading-bot/internal/market"

// ContinuationDetector classifies the pullback after a zone breakout
type ContinuationDetector struct {
	th Thresholds
}

// NewContinuationDetector creates a continuation detector
func NewContinuationDetector(th Thresholds) *ContinuationDetector {
	return &ContinuationDetector{th: th}
}

// Detect measures the pullback of bars (the bars since the breakout) against the
// impulse from impulseStart to breakout.
//
// Depth <= PerfectDepth that returned to the zone is a perfect pullback, depth in
// (PerfectDepth, LongDepth] inside the fib band is a long pullback, depth below
// PerfectDepth that never returned is a short pullback. The last bar must close in
// the breakout direction.
func (cd *ContinuationDetector) Detect(bars []market.Bar, breakout, impulseStart float64, dir market.Direction) (Trigger, bool) {
	if len(bars) < 2 || dir == market.Neutral {
		return Trigger{}, false
	}

	impulse := breakout - impulseStart
	if dir == market.Bearish {
		impulse = impulseStart - breakout
	}
	if impulse <= 0 {
		return Trigger{}, false
	}

	last := bars[len(bars)-1]
	var extreme, depth float64
	var returned, continuing bool

	if dir == market.Bullish {
		extreme = bars[0].Low
		for _, b := range bars[1:] {
			if b.Low < extreme {
				extreme = b.Low
			}
		}
		depth = (breakout - extreme) / impulse
		returned = extreme <= breakout*(1+cd.th.ReturnTolerance)
		continuing = last.IsBullish()
	} else {
		extreme = bars[0].High
		for _, b := range bars[1:] {
			if b.High > extreme {
				extreme = b.High
			}
		}
		depth = (extreme - breakout) / impulse
		returned = extreme >= breakout*(1-cd.th.ReturnTolerance)
		continuing = last.IsBearish()
	}

	if !continuing {
		return Trigger{}, false
	}

	t := Trigger{Direction: dir, Depth: depth, Bars: tail(bars, 3)}

	switch {
	case depth <= cd.th.PerfectDepth && returned:
		t.Kind = PullbackPerfect
		t.Entry = breakout
		t.Passes50 = last.Body() > last.Range()*cd.th.PerfectBody
	case depth > cd.th.PerfectDepth && depth <= cd.th.LongDepth:
		if depth < cd.th.FibLow || depth > cd.th.FibHigh {
			return Trigger{}, false
		}
		// Reversal-confirming close off the pullback extreme
		if (dir == market.Bullish && last.Close <= extreme) || (dir == market.Bearish && last.Close >= extreme) {
			return Trigger{}, false
		}
		t.Kind = PullbackLong
		t.Entry = last.Close
		t.Passes50 = last.Body() > last.Range()*cd.th.LongBody
	case depth < cd.th.PerfectDepth && !returned:
		t.Kind = PullbackShort
		t.Entry = last.Close
		t.Passes50 = last.Body() > last.Range()*cd.th.ShortBody
	default:
		return Trigger{}, false
	}

	return t, true
}

func tail(bars []market.Bar, n int) []market.Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
