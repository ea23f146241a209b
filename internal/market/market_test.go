package market

import (
	"testing"
)

func TestBarDerived(t *testing.T) {
	tests := []struct {
		name string
		bar  Bar
		dir  Direction
		rng  float64
		body float64
	}{
		{"bullish", Bar{Open: 100, High: 105, Low: 98, Close: 104}, Bullish, 7, 4},
		{"bearish", Bar{Open: 104, High: 105, Low: 98, Close: 100}, Bearish, 7, 4},
		{"doji", Bar{Open: 100, High: 101, Low: 99, Close: 100}, Neutral, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bar.Direction(); got != tt.dir {
				t.Errorf("Direction() = %s, want %s", got, tt.dir)
			}
			if got := tt.bar.Range(); got != tt.rng {
				t.Errorf("Range() = %f, want %f", got, tt.rng)
			}
			if got := tt.bar.Body(); got != tt.body {
				t.Errorf("Body() = %f, want %f", got, tt.body)
			}
		})
	}
}

func TestTimeframeHierarchy(t *testing.T) {
	higher := TF4h.Higher()
	if len(higher) != 3 || higher[0] != TF1M || higher[2] != TF1d {
		t.Errorf("unexpected higher timeframes for 4h: %v", higher)
	}
	if len(TF1M.Higher()) != 0 {
		t.Error("1M should have no higher timeframe")
	}

	lower, ok := TF4h.Lower()
	if !ok || lower != TF1h {
		t.Errorf("Lower(4h) = %s, %v", lower, ok)
	}
	if _, ok := TF5m.Lower(); ok {
		t.Error("5m should have no lower timeframe")
	}
	if TF1h.Minutes() != 60 || TF1M.Minutes() != 43200 {
		t.Error("unexpected minute mapping")
	}
}

func TestCanOperate(t *testing.T) {
	tests := []struct {
		line, current Timeframe
		want          bool
	}{
		{TF4h, TF4h, true},
		{TF4h, TF1h, true},
		{TF4h, TF15m, false},
		{TF1h, TF4h, false},
	}
	for _, tt := range tests {
		if got := CanOperate(tt.line, tt.current); got != tt.want {
			t.Errorf("CanOperate(%s, %s) = %v, want %v", tt.line, tt.current, got, tt.want)
		}
	}
}

func TestParseTimeframes(t *testing.T) {
	tfs, err := ParseTimeframes("4h, 1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tfs) != 2 || tfs[0] != TF4h || tfs[1] != TF1h {
		t.Errorf("got %v", tfs)
	}
	if _, err := ParseTimeframes("4h,2h"); err == nil {
		t.Error("expected error for unsupported timeframe")
	}
}
