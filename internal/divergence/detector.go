package divergence

import (
	"math"
	"time"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

// Type is the divergence family
type Type string

const (
	RegularBullish Type = "REGULAR_BULLISH" // Price lower low, RSI higher low
	RegularBearish Type = "REGULAR_BEARISH" // Price higher high, RSI lower high
	HiddenBullish  Type = "HIDDEN_BULLISH"  // Price higher low, RSI lower low
	HiddenBearish  Type = "HIDDEN_BEARISH"  // Price lower high, RSI higher high
)

// Direction is the bias the divergence confirms
func (t Type) Direction() market.Direction {
	if t == RegularBullish || t == HiddenBullish {
		return market.Bullish
	}
	return market.Bearish
}

// Class grades divergence magnitude, A strongest
type Class string

const (
	ClassA Class = "A"
	ClassB Class = "B"
	ClassC Class = "C"
)

// Divergence is a price/RSI disagreement between two consecutive swings
type Divergence struct {
	Type       Type             `json:"type"`
	Class      Class            `json:"class"`
	Direction  market.Direction `json:"direction"`
	Price1     float64          `json:"price1"`
	Price2     float64          `json:"price2"`
	RSI1       float64          `json:"rsi1"`
	RSI2       float64          `json:"rsi2"`
	StartIndex int              `json:"start_index"`
	EndIndex   int              `json:"end_index"`
	Timestamp  time.Time        `json:"timestamp"`
	Strength   float64          `json:"strength"`
}

// Confirms reports whether the divergence supports the expected direction
func (d Divergence) Confirms(expected market.Direction) bool {
	return d.Type.Direction() == expected
}

// Config holds divergence detection parameters
type Config struct {
	RSIPeriod      int
	Lookback       int
	PriceRadius    int
	RSIRadius      int
	MatchTolerance int // Max bar distance between a price swing and its RSI swing
}

// DefaultConfig returns RSI(14) with the standard swing windows
func DefaultConfig() Config {
	return Config{
		RSIPeriod:      14,
		Lookback:       20,
		PriceRadius:    2,
		RSIRadius:      3,
		MatchTolerance: 3,
	}
}

// Detector finds RSI divergences
type Detector struct {
	config Config
	swings *structure.SwingDetector
}

// NewDetector creates a divergence detector
func NewDetector(cfg Config) *Detector {
	if cfg.RSIPeriod <= 0 {
		cfg = DefaultConfig()
	}
	return &Detector{
		config: cfg,
		swings: structure.NewSwingDetector(cfg.PriceRadius),
	}
}

// MinBars is the shortest history Detect will analyze
func (d *Detector) MinBars() int {
	return d.config.Lookback + 15
}

// Detect returns every divergence across consecutive price swings, regular bullish
// first, then regular bearish, hidden bullish and hidden bearish.
func (d *Detector) Detect(bars []market.Bar) []Divergence {
	if len(bars) < d.MinBars() {
		return nil
	}

	rsi := RSI(market.Closes(bars), d.config.RSIPeriod)
	rsiHighs, rsiLows := oscillatorSwings(rsi, d.config.RSIRadius)
	priceHighs, priceLows := d.swings.Detect(bars)

	var out []Divergence
	out = append(out, d.scan(bars, priceLows, rsiLows, RegularBullish)...)
	out = append(out, d.scan(bars, priceHighs, rsiHighs, RegularBearish)...)
	out = append(out, d.scan(bars, priceLows, rsiLows, HiddenBullish)...)
	out = append(out, d.scan(bars, priceHighs, rsiHighs, HiddenBearish)...)
	return out
}

// First returns the first divergence confirming dir
func First(divs []Divergence, dir market.Direction) (Divergence, bool) {
	for _, d := range divs {
		if d.Confirms(dir) {
			return d, true
		}
	}
	return Divergence{}, false
}

func (d *Detector) scan(bars []market.Bar, swings []structure.SwingPoint, osc []oscPoint, typ Type) []Divergence {
	var out []Divergence
	tol := d.config.MatchTolerance

	for i := 1; i < len(swings); i++ {
		prev, cur := swings[i-1], swings[i]
		if !priceCondition(typ, prev.Price, cur.Price) {
			continue
		}

		r1, ok1 := nearest(osc, prev.Index, tol)
		r2, ok2 := nearest(osc, cur.Index, tol)
		if !ok1 || !ok2 || !oscCondition(typ, r1.value, r2.value) {
			continue
		}

		class := Classify(prev.Price, cur.Price, r1.value, r2.value)
		out = append(out, Divergence{
			Type:       typ,
			Class:      class,
			Direction:  typ.Direction(),
			Price1:     prev.Price,
			Price2:     cur.Price,
			RSI1:       r1.value,
			RSI2:       r2.value,
			StartIndex: prev.Index,
			EndIndex:   cur.Index,
			Timestamp:  bars[cur.Index].Timestamp,
			Strength:   Strength(class, prev.Price, cur.Price, r1.value, r2.value),
		})
	}
	return out
}

func priceCondition(t Type, p1, p2 float64) bool {
	switch t {
	case RegularBullish:
		return p2 < p1
	case RegularBearish:
		return p2 > p1
	case HiddenBullish:
		return p2 > p1
	default:
		return p2 < p1
	}
}

func oscCondition(t Type, r1, r2 float64) bool {
	switch t {
	case RegularBullish:
		return r2 > r1
	case RegularBearish:
		return r2 < r1
	case HiddenBullish:
		return r2 < r1
	default:
		return r2 > r1
	}
}

// Classify grades a divergence by relative price change and RSI point change
func Classify(p1, p2, r1, r2 float64) Class {
	pd := math.Abs(p2-p1) / p1
	rd := math.Abs(r2 - r1)
	switch {
	case pd > 0.02 && rd > 10:
		return ClassA
	case pd > 0.01 || rd > 5:
		return ClassB
	default:
		return ClassC
	}
}

// Strength is the class base plus capped magnitude bonuses, at most 1
func Strength(c Class, p1, p2, r1, r2 float64) float64 {
	base := map[Class]float64{ClassA: 0.9, ClassB: 0.6, ClassC: 0.3}[c]
	priceBonus := math.Min(math.Abs(p2-p1)/p1*10, 0.1)
	rsiBonus := math.Min(math.Abs(r2-r1)/100, 0.1)
	return math.Min(base+priceBonus+rsiBonus, 1)
}
