package analysis

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volume"

	"fortis-trading-bot/internal/market"
)

// VolumeType is the pressure behind the last bar
type VolumeType string

const (
	Buying  VolumeType = "buying"
	Selling VolumeType = "selling"
	Neutral VolumeType = "neutral"
)

const (
	highVolumeRatio   = 1.5
	climaxVolumeRatio = 3.0
)

// VolumeAnalyzer provides volume-based confirmation
type VolumeAnalyzer struct {
	avgPeriod int // Period for average volume calculation
}

// VolumeProfile represents volume analysis results
type VolumeProfile struct {
	CurrentVolume  float64    `json:"current_volume"`
	AverageVolume  float64    `json:"average_volume"`
	VolumeRatio    float64    `json:"volume_ratio"` // Current / Average
	IsHighVolume   bool       `json:"is_high_volume"`
	IsClimaxVolume bool       `json:"is_climax_volume"`
	OBV            float64    `json:"obv"`
	VolumeType     VolumeType `json:"volume_type"`
}

// NewVolumeAnalyzer creates a new volume analyzer
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20
	}
	return &VolumeAnalyzer{avgPeriod: avgPeriod}
}

// AnalyzeVolume profiles the last bar against the moving average of volume
func (va *VolumeAnalyzer) AnalyzeVolume(bars []market.Bar) *VolumeProfile {
	if len(bars) == 0 {
		return nil
	}

	current := bars[len(bars)-1]
	avg := va.AverageVolume(bars)

	var ratio float64
	if avg > 0 {
		ratio = current.Volume / avg
	}

	return &VolumeProfile{
		CurrentVolume:  current.Volume,
		AverageVolume:  avg,
		VolumeRatio:    ratio,
		IsHighVolume:   ratio >= highVolumeRatio,
		IsClimaxVolume: ratio > climaxVolumeRatio,
		OBV:            va.OBV(bars),
		VolumeType:     DetermineVolumeType(current),
	}
}

// AverageVolume is the simple moving average of the last avgPeriod volumes
// (fewer when the series is shorter)
func (va *VolumeAnalyzer) AverageVolume(bars []market.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	period := va.avgPeriod
	if len(bars) < period {
		period = len(bars)
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	values := helper.ChanToSlice(sma.Compute(helper.SliceToChan(market.Volumes(bars))))
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// OBV returns the final on-balance volume of the series
func (va *VolumeAnalyzer) OBV(bars []market.Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	obv := volume.NewObv[float64]()
	values := helper.ChanToSlice(obv.Compute(
		helper.SliceToChan(market.Closes(bars)),
		helper.SliceToChan(market.Volumes(bars)),
	))
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// Confirms reports whether the last bar carries high volume that does not
// oppose dir
func (va *VolumeAnalyzer) Confirms(bars []market.Bar, dir market.Direction) bool {
	p := va.AnalyzeVolume(bars)
	if p == nil || !p.IsHighVolume {
		return false
	}
	switch dir {
	case market.Bullish:
		return p.VolumeType != Selling
	case market.Bearish:
		return p.VolumeType != Buying
	}
	return false
}

// DetermineVolumeType identifies buying or selling pressure from the bar shape
func DetermineVolumeType(b market.Bar) VolumeType {
	body := b.Body()
	upperWick := b.High - math.Max(b.Open, b.Close)
	lowerWick := math.Min(b.Open, b.Close) - b.Low

	switch {
	case b.IsBullish() && upperWick < body*0.2:
		return Buying
	case b.IsBearish() && lowerWick < body*0.2:
		return Selling
	}
	return Neutral
}
