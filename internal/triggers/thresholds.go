package triggers

// Thresholds centralizes every tolerance used by the trigger detectors
type Thresholds struct {
	ZoneTolerance float64 `json:"zone_tolerance"` // Distance from the zone counted as "at the zone"

	EngulfingBody     float64 `json:"engulfing_body"`
	EngulfingStrength float64 `json:"engulfing_strength"`

	TweezersRangeDiff float64 `json:"tweezers_range_diff"` // Max relative difference between the two ranges
	TweezersExtreme   float64 `json:"tweezers_extreme"`    // Max relative gap between the matching lows/highs
	TweezersBody      float64 `json:"tweezers_body"`
	TweezersStrength  float64 `json:"tweezers_strength"`

	StarMiddleBody float64 `json:"star_middle_body"` // Max body/range of the indecision bar
	StarBody       float64 `json:"star_body"`
	StarStrength   float64 `json:"star_strength"`

	FakeOutPierce   float64 `json:"fake_out_pierce"`
	FakeOutReversal float64 `json:"fake_out_reversal"` // Min body/range of the reversal bar
	FakeOutBody     float64 `json:"fake_out_body"`
	FakeOutStrength float64 `json:"fake_out_strength"`

	PerfectDepth    float64 `json:"perfect_depth"`
	LongDepth       float64 `json:"long_depth"`
	FibLow          float64 `json:"fib_low"`
	FibHigh         float64 `json:"fib_high"`
	ReturnTolerance float64 `json:"return_tolerance"`
	PerfectBody     float64 `json:"perfect_body"`
	LongBody        float64 `json:"long_body"`
	ShortBody       float64 `json:"short_body"`
}

// DefaultThresholds returns the standard trigger rules
func DefaultThresholds() Thresholds {
	return Thresholds{
		ZoneTolerance: 0.005,

		EngulfingBody:     0.5,
		EngulfingStrength: 0.7,

		TweezersRangeDiff: 0.2,
		TweezersExtreme:   0.005,
		TweezersBody:      0.4,
		TweezersStrength:  0.5,

		StarMiddleBody: 0.3,
		StarBody:       0.5,
		StarStrength:   0.6,

		FakeOutPierce:   0.005,
		FakeOutReversal: 0.6,
		FakeOutBody:     0.5,
		FakeOutStrength: 0.9,

		PerfectDepth:    0.1,
		LongDepth:       0.5,
		FibLow:          0.382,
		FibHigh:         0.5,
		ReturnTolerance: 0.005,
		PerfectBody:     0.5,
		LongBody:        0.4,
		ShortBody:       0.5,
	}
}
