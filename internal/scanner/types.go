package scanner

import (
	"time"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/signals"
)

// PairResult is the outcome of analyzing one symbol/timeframe pair
type PairResult struct {
	Symbol     string            `json:"symbol"`
	Timeframe  market.Timeframe  `json:"timeframe"`
	Price      float64           `json:"price"`
	Bars       int               `json:"bars"`
	Candidates int               `json:"candidates"`
	Validated  int               `json:"validated"`
	Rejected   int               `json:"rejected"`
	NewSignals []*signals.Signal `json:"new_signals"`
	Bias       market.Direction  `json:"bias"`
	Error      string            `json:"error,omitempty"`
}

// ScanResult aggregates every pair of one scan cycle
type ScanResult struct {
	ScanID         string            `json:"scan_id"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Duration       time.Duration     `json:"duration"`
	SymbolsScanned int               `json:"symbols_scanned"`
	Pairs          []PairResult      `json:"pairs"`
	NewSignals     []*signals.Signal `json:"new_signals"`
	Errors         int               `json:"errors"`
}

// Config holds scanner configuration
type Config struct {
	Enabled      bool
	Symbols      []string
	Timeframes   []market.Timeframe
	ScanInterval time.Duration
	Bars         int
	WorkerCount  int
	PersistBars  bool
	DedupTTL     time.Duration // How long a signal key suppresses repeat alerts
	MaxRecent    int           // Signals kept in memory for readers
	Signals      signals.Config
}

// DefaultConfig returns the live-mode defaults
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Symbols:      []string{"BTCUSDT", "ETHUSDT"},
		Timeframes:   []market.Timeframe{market.TF4h, market.TF1h},
		ScanInterval: 60 * time.Second,
		Bars:         200,
		WorkerCount:  4,
		DedupTTL:     24 * time.Hour,
		MaxRecent:    100,
		Signals:      signals.DefaultConfig(),
	}
}
