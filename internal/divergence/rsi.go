package divergence

import "math"

// RSI computes a Wilder-smoothed relative strength index over closes.
// The result is aligned with closes: values before index period are NaN, the value
// at index period uses the simple averages of the first period changes, and later
// values use Wilder smoothing. RSI is 100 when the average loss is zero.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := change(closes[i-1], closes[i])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		g, l := change(closes[i-1], closes[i])
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// oscPoint is a swing on the oscillator series
type oscPoint struct {
	index int
	value float64
}

// oscillatorSwings finds strict swing highs and lows on values with the given radius.
// Windows containing an undefined value are skipped.
func oscillatorSwings(values []float64, radius int) (highs, lows []oscPoint) {
	for i := radius; i < len(values)-radius; i++ {
		v := values[i]
		if math.IsNaN(v) {
			continue
		}
		isHigh, isLow := true, true
		for j := i - radius; j <= i+radius; j++ {
			if j == i {
				continue
			}
			w := values[j]
			if math.IsNaN(w) {
				isHigh, isLow = false, false
				break
			}
			if w >= v {
				isHigh = false
			}
			if w <= v {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, oscPoint{i, v})
		}
		if isLow {
			lows = append(lows, oscPoint{i, v})
		}
	}
	return highs, lows
}

// nearest returns the oscillator swing closest to idx within tol bars; ties keep the first
func nearest(points []oscPoint, idx, tol int) (oscPoint, bool) {
	best := oscPoint{}
	bestDist := tol + 1
	for _, p := range points {
		d := p.index - idx
		if d < 0 {
			d = -d
		}
		if d <= tol && d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist <= tol
}
