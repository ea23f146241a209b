package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a chart interval label as used by the exchange
type Timeframe string

const (
	TF1M  Timeframe = "1M"
	TF1w  Timeframe = "1w"
	TF1d  Timeframe = "1d"
	TF4h  Timeframe = "4h"
	TF1h  Timeframe = "1h"
	TF15m Timeframe = "15m"
	TF5m  Timeframe = "5m"
)

// Hierarchy lists the supported timeframes from highest to lowest
var Hierarchy = []Timeframe{TF1M, TF1w, TF1d, TF4h, TF1h, TF15m, TF5m}

var minutes = map[Timeframe]int{
	TF1M:  43200,
	TF1w:  10080,
	TF1d:  1440,
	TF4h:  240,
	TF1h:  60,
	TF15m: 15,
	TF5m:  5,
}

// ParseTimeframe validates a timeframe label
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s))
	if _, ok := minutes[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// ParseTimeframes splits a comma separated list such as "4h,1h"
func ParseTimeframes(s string) ([]Timeframe, error) {
	var out []Timeframe
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		tf, err := ParseTimeframe(part)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}

// Minutes returns the bar length in minutes, 0 if unknown
func (tf Timeframe) Minutes() int {
	return minutes[tf]
}

// Duration returns the bar length
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Minutes()) * time.Minute
}

// Index returns the position in Hierarchy (0 = highest), -1 if unknown
func (tf Timeframe) Index() int {
	for i, h := range Hierarchy {
		if h == tf {
			return i
		}
	}
	return -1
}

// Higher returns every timeframe above tf, highest first
func (tf Timeframe) Higher() []Timeframe {
	idx := tf.Index()
	if idx <= 0 {
		return nil
	}
	out := make([]Timeframe, idx)
	copy(out, Hierarchy[:idx])
	return out
}

// Lower returns the next timeframe down and false at the bottom of the hierarchy
func (tf Timeframe) Lower() (Timeframe, bool) {
	idx := tf.Index()
	if idx < 0 || idx+1 >= len(Hierarchy) {
		return "", false
	}
	return Hierarchy[idx+1], true
}

// CanOperate reports whether a line drawn on lineTF may be traded on current:
// the same timeframe or exactly one step lower.
func CanOperate(lineTF, current Timeframe) bool {
	if lineTF == current {
		return true
	}
	lower, ok := lineTF.Lower()
	return ok && lower == current
}
