package signals

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"fortis-trading-bot/internal/analysis"
	"fortis-trading-bot/internal/chartpattern"
	"fortis-trading-bot/internal/confluence"
	"fortis-trading-bot/internal/divergence"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/structure"
	"fortis-trading-bot/internal/trendline"
	"fortis-trading-bot/internal/triggers"
)

// ErrInsufficientData is returned when the window is shorter than MinBars
var ErrInsufficientData = errors.New("insufficient bar history")

// Result summarizes one scan
type Result struct {
	Symbol               string                `json:"symbol"`
	Timeframe            market.Timeframe      `json:"timeframe"`
	Bars                 int                   `json:"bars"`
	Price                float64               `json:"price"`
	ActiveLines          int                   `json:"active_lines"`
	ConfirmedLines       int                   `json:"confirmed_lines"`
	Patterns             int                   `json:"patterns"`
	ActivePatterns       int                   `json:"active_patterns"`
	Divergences          int                   `json:"divergences"`
	ReversalTriggers     int                   `json:"reversal_triggers"`
	ContinuationTriggers int                   `json:"continuation_triggers"`
	Candidates           []*Candidate          `json:"candidates"`
	Signals              []*Signal             `json:"signals"`
	Checkpoint           *structure.Checkpoint `json:"checkpoint,omitempty"`
	Multiframe           analysis.Context      `json:"multiframe"`
}

// Generator turns bar windows of one pair into validated signals
type Generator struct {
	config       Config
	ctx          *Context
	reversal     *triggers.ReversalDetector
	continuation *triggers.ContinuationDetector
	divergence   *divergence.Detector
	convergence  *confluence.Analyzer
	volume       *analysis.VolumeAnalyzer
	log          *logging.Logger

	candidates []*Candidate
	signals    []*Signal
}

// NewGenerator creates a generator with its own pair context
func NewGenerator(symbol string, tf market.Timeframe, cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		config:       cfg,
		ctx:          NewContext(symbol, tf, cfg),
		reversal:     triggers.NewReversalDetector(cfg.Triggers),
		continuation: triggers.NewContinuationDetector(cfg.Triggers),
		divergence:   divergence.NewDetector(cfg.Divergence),
		convergence:  confluence.NewAnalyzer(confluence.DefaultWeights(), cfg.ConvergenceTolerance),
		volume:       analysis.NewVolumeAnalyzer(cfg.VolumePeriod),
		log:          logging.PairContext(symbol, string(tf)),
	}
}

// Context exposes the pair state
func (g *Generator) Context() *Context {
	return g.ctx
}

// Config returns the effective configuration
func (g *Generator) Config() Config {
	return g.config
}

// Generate runs the whole pipeline over bars, the most recent window of the
// pair, and returns the signals validated in this pass
func (g *Generator) Generate(bars []market.Bar) (*Result, error) {
	if len(bars) < g.config.MinBars {
		return nil, ErrInsufficientData
	}

	last := bars[len(bars)-1]
	tf := g.ctx.Timeframe

	patterns := g.ctx.refresh(bars)
	tradeable := g.ctx.Patterns.Tradeable()
	divs := g.divergence.Detect(bars)
	levels := g.ctx.Lines.Levels()

	res := &Result{
		Symbol:      g.ctx.Symbol,
		Timeframe:   tf,
		Bars:        len(bars),
		Price:       last.Close,
		Patterns:    len(patterns),
		Divergences: len(divs),
		Checkpoint:  g.ctx.snapshot.Checkpoint,
		Multiframe:  g.ctx.Lines.Analyze(last.Close, tf),
	}
	for _, p := range patterns {
		if p.Status != chartpattern.Invalidated {
			res.ActivePatterns++
		}
	}

	recent := tail(bars, g.config.TriggerWindow)
	var fresh []*Candidate

	for _, l := range g.ctx.Lines.Lines().Active("") {
		if !market.CanOperate(l.Timeframe, tf) {
			continue
		}
		if l.Timeframe == tf {
			res.ActiveLines++
			if l.Confirmed() {
				res.ConfirmedLines++
			}
		}

		price := g.ctx.Lines.LinePrice(l)
		if last.Close <= 0 || math.Abs(price-last.Close)/last.Close > g.config.ZoneDistance {
			continue
		}
		if ok, reason := g.ctx.Lines.ShouldOperate(l, tf, price); !ok {
			g.log.Debug("Line skipped", "line_id", int(l.ID), "reason", reason)
			continue
		}

		c := g.lineCandidate(l, price, recent, last)
		fresh = append(fresh, g.attach(c, bars, levels, tradeable, divs, res))
	}

	for _, p := range tradeable {
		c := g.patternCandidate(p, recent, last)
		fresh = append(fresh, g.attach(c, bars, levels, tradeable, divs, res))
	}

	for _, c := range fresh {
		if s := g.validate(c, last); s != nil {
			res.Signals = append(res.Signals, s)
		}
	}
	g.candidates = append(g.candidates, fresh...)
	res.Candidates = fresh

	if len(res.Signals) > 0 {
		g.log.Info("Signals validated", "count", len(res.Signals), "candidates", len(fresh))
	}
	return res, nil
}

// lineCandidate pairs a line zone with the strongest reversal at the line, or a
// continuation pullback off a confirmed line
func (g *Generator) lineCandidate(l *trendline.Line, price float64, recent []market.Bar, last market.Bar) *Candidate {
	dir := l.Type.Direction()
	c := g.newCandidate(FromLine, price, dir, last)
	c.LineID = l.ID

	if t, ok := g.reversal.DetectAll(recent, price, triggers.ZoneFor(dir)); ok {
		c.Trigger = &t
	} else if l.Confirmed() {
		start := price * (1 - g.config.ImpulseFallback)
		if dir == market.Bearish {
			start = price * (1 + g.config.ImpulseFallback)
		}
		if t, ok := g.continuation.Detect(recent, price, start, dir); ok {
			c.Trigger = &t
		}
	}
	return c
}

// patternCandidate uses the neckline as zone: a pullback continuation first,
// a reversal at the neckline otherwise
func (g *Generator) patternCandidate(p *chartpattern.Pattern, recent []market.Bar, last market.Bar) *Candidate {
	c := g.newCandidate(FromPattern, p.EntryPrice(), p.Direction, last)
	c.PatternID = p.ID
	c.PatternType = p.Type

	if t, ok := g.continuation.Detect(recent, p.EntryPrice(), p.ImpulseStart(), p.Direction); ok {
		c.Trigger = &t
	} else if t, ok := g.reversal.DetectAll(recent, p.EntryPrice(), triggers.ZoneFor(p.Direction)); ok {
		c.Trigger = &t
	}
	return c
}

func (g *Generator) newCandidate(origin Origin, price float64, dir market.Direction, last market.Bar) *Candidate {
	return &Candidate{
		ID:        uuid.NewString(),
		Origin:    origin,
		ZonePrice: price,
		Direction: dir,
		Timeframe: g.ctx.Timeframe,
		Status:    Pending,
		CreatedAt: last.Timestamp,
	}
}

// attach adds divergence and convergence to a candidate and counts its trigger
func (g *Generator) attach(c *Candidate, bars []market.Bar, levels []confluence.Level, patterns []*chartpattern.Pattern, divs []divergence.Divergence, res *Result) *Candidate {
	if c.Trigger != nil {
		c.Status = Triggered
		if c.Trigger.Family() == triggers.Continuation {
			res.ContinuationTriggers++
		} else {
			res.ReversalTriggers++
		}
	}
	if d, ok := divergence.First(divs, c.Direction); ok {
		c.Divergence = &d
	}
	c.Convergence = g.convergence.Analyze(c.ZonePrice, c.Direction, confluence.Inputs{
		Levels:     levels,
		Patterns:   patterns,
		HasTrigger: c.Trigger != nil,
		Divergence: c.Divergence,
		Volume:     g.volume.Confirms(bars, c.Direction),
	})
	return c
}

// validate applies the Trinity: a zone, a trigger passing the 50% rule, and a
// reward:risk of at least 1 on the default stop and target
func (g *Generator) validate(c *Candidate, last market.Bar) *Signal {
	if c.Status.Terminal() {
		return nil
	}

	entry := c.ZonePrice
	stop := entry * (1 - g.config.StopPercent)
	target := entry * (1 + g.config.TargetPercent)
	if c.Direction == market.Bearish {
		stop = entry * (1 + g.config.StopPercent)
		target = entry * (1 - g.config.TargetPercent)
	}
	v := risk.ValidateTrade(entry, stop, target, c.Direction)

	switch {
	case !c.HasZone():
		c.transition(Rejected, "no zone")
		return nil
	case c.Trigger == nil:
		c.transition(Rejected, "no trigger")
		return nil
	case !c.Trigger.Passes50:
		c.transition(Rejected, "trigger fails the 50% rule")
		return nil
	case !v.Valid:
		c.transition(Rejected, v.Reason)
		return nil
	}

	c.transition(Validated, "")
	s := &Signal{
		ID:               uuid.NewString(),
		Timestamp:        last.Timestamp,
		Symbol:           g.ctx.Symbol,
		Timeframe:        c.Timeframe,
		Direction:        c.Direction,
		Origin:           c.Origin,
		ZonePrice:        c.ZonePrice,
		TriggerType:      c.Trigger.Kind,
		EntryPrice:       entry,
		StopLoss:         stop,
		TakeProfit1:      target,
		RiskReward:       v.Ratio,
		ConvergenceScore: 0.5,
		IsValid:          true,
	}
	if c.Convergence != nil {
		s.ConvergenceScore = c.Convergence.Score()
		s.Grade = c.Convergence.Grade()
	}
	g.signals = append(g.signals, s)
	return s
}

// ExpireForZone expires every open candidate whose zone lies within the
// convergence tolerance of price. Returns the number expired.
func (g *Generator) ExpireForZone(price float64) int {
	n := 0
	for _, c := range g.candidates {
		if samePrice(c.ZonePrice, price, g.config.ConvergenceTolerance) && c.transition(Expired, "zone invalidated") {
			n++
		}
	}
	return n
}

// Pending returns candidates still waiting for a trigger
func (g *Generator) Pending() []*Candidate {
	var out []*Candidate
	for _, c := range g.candidates {
		if c.Status == Pending {
			out = append(out, c)
		}
	}
	return out
}

// Candidates returns every tracked candidate
func (g *Generator) Candidates() []*Candidate {
	return g.candidates
}

// ActiveSignals returns validated signals not yet invalidated
func (g *Generator) ActiveSignals() []*Signal {
	var out []*Signal
	for _, s := range g.signals {
		if s.IsValid {
			out = append(out, s)
		}
	}
	return out
}

// InvalidateSignal marks a signal invalid. Returns false for unknown IDs.
func (g *Generator) InvalidateSignal(id string) bool {
	for _, s := range g.signals {
		if s.ID == id {
			s.Invalidate()
			return true
		}
	}
	return false
}

// ClearOldCandidates drops candidates that never validated and are older than
// maxAge bars of the pair's timeframe, measured from the newest candidate.
// Returns the number removed.
func (g *Generator) ClearOldCandidates(maxAge int) int {
	if len(g.candidates) == 0 {
		return 0
	}
	newest := g.candidates[0].CreatedAt
	for _, c := range g.candidates[1:] {
		if c.CreatedAt.After(newest) {
			newest = c.CreatedAt
		}
	}
	step := g.ctx.Timeframe.Duration()

	kept := g.candidates[:0]
	removed := 0
	for _, c := range g.candidates {
		old := step <= 0 || newest.Sub(c.CreatedAt) >= step*time.Duration(maxAge)
		if c.Status != Validated && c.Status != Triggered && old {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(g.candidates); i++ {
		g.candidates[i] = nil
	}
	g.candidates = kept
	return removed
}

// ClearOldSignals drops signals stamped more than maxAge bars before the
// newest one. Returns the number removed.
func (g *Generator) ClearOldSignals(maxAge int) int {
	if len(g.signals) == 0 {
		return 0
	}
	newest := g.signals[0].Timestamp
	for _, s := range g.signals[1:] {
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}
	horizon := g.ctx.Timeframe.Duration() * time.Duration(maxAge)

	kept := g.signals[:0]
	for _, s := range g.signals {
		if newest.Sub(s.Timestamp) <= horizon {
			kept = append(kept, s)
		}
	}
	removed := len(g.signals) - len(kept)
	for i := len(kept); i < len(g.signals); i++ {
		g.signals[i] = nil
	}
	g.signals = kept
	return removed
}

func samePrice(a, b, tol float64) bool {
	if b == 0 {
		return a == 0
	}
	return math.Abs(a-b)/math.Abs(b) <= tol
}

func tail(bars []market.Bar, n int) []market.Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

// Summary reports candidate and signal counts for the pair
func (g *Generator) Summary() string {
	byStatus := map[Status]int{}
	for _, c := range g.candidates {
		byStatus[c.Status]++
	}
	return fmt.Sprintf("%s %s: %d candidates (%d validated, %d rejected, %d expired), %d active signals",
		g.ctx.Symbol, g.ctx.Timeframe, len(g.candidates),
		byStatus[Validated], byStatus[Rejected], byStatus[Expired], len(g.ActiveSignals()))
}
