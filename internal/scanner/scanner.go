package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fortis-trading-bot/internal/analysis"
	"fortis-trading-bot/internal/events"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/metrics"
	"fortis-trading-bot/internal/notification"
	"fortis-trading-bot/internal/signals"
)

const scanTimeout = 5 * time.Minute

// Store persists scan output. *database.Store satisfies it.
type Store interface {
	SaveSignal(ctx context.Context, sig *signals.Signal) error
	SaveCandles(ctx context.Context, symbol string, bars []market.Bar) (int, error)
}

// SignalPublisher streams new signals. *publisher.Publisher satisfies it.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, sig *signals.Signal) error
}

// pair owns the generator of one symbol/timeframe. Its state is never shared
// with another pair.
type pair struct {
	mu  sync.Mutex
	gen *signals.Generator
}

// Scanner runs the signal pipeline over every configured symbol and timeframe
type Scanner struct {
	frames    *analysis.TimeframeManager
	config    Config
	notifier  *notification.Manager
	store     Store
	publisher SignalPublisher
	bus       *events.EventBus
	metrics   *metrics.Recorder
	dedup     Deduper
	log       *logging.Logger
	now       func() time.Time

	mu         sync.RWMutex
	pairs      map[string]*pair
	recent     []*signals.Signal
	lastResult *ScanResult

	scanMu   sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScanner creates a scanner fetching bars through frames
func NewScanner(frames *analysis.TimeframeManager, config Config) *Scanner {
	def := DefaultConfig()
	if config.Bars <= 0 {
		config.Bars = def.Bars
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = def.ScanInterval
	}
	if config.DedupTTL <= 0 {
		config.DedupTTL = def.DedupTTL
	}
	if config.MaxRecent <= 0 {
		config.MaxRecent = def.MaxRecent
	}

	return &Scanner{
		frames:   frames,
		config:   config,
		dedup:    NewSeenCache(),
		log:      logging.WithComponent("scanner"),
		now:      time.Now,
		pairs:    make(map[string]*pair),
		stopChan: make(chan struct{}),
	}
}

// SetNotifier sends alerts for new signals and approached zones
func (sc *Scanner) SetNotifier(m *notification.Manager) { sc.notifier = m }

// SetStore persists new signals, and bars when PersistBars is set
func (sc *Scanner) SetStore(s Store) { sc.store = s }

// SetPublisher streams new signals
func (sc *Scanner) SetPublisher(p SignalPublisher) { sc.publisher = p }

// SetEventBus publishes scan, signal and zone events
func (sc *Scanner) SetEventBus(bus *events.EventBus) { sc.bus = bus }

// SetMetrics records scan metrics
func (sc *Scanner) SetMetrics(r *metrics.Recorder) { sc.metrics = r }

// SetDeduper replaces the in-process de-duplication cache
func (sc *Scanner) SetDeduper(d Deduper) {
	if d != nil {
		sc.dedup = d
	}
}

// Start begins the background scan loop
func (sc *Scanner) Start() {
	if !sc.config.Enabled {
		sc.log.Info("Signal scanner is disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sc.cancel = cancel

	sc.wg.Add(1)
	go sc.runScanLoop(ctx)
	sc.log.Info("Signal scanner started",
		"symbols", len(sc.config.Symbols),
		"timeframes", len(sc.config.Timeframes),
		"interval", sc.config.ScanInterval.String())
}

// runScanLoop executes scans at configured intervals
func (sc *Scanner) runScanLoop(ctx context.Context) {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately
	sc.scanWithTimeout(ctx)

	for {
		select {
		case <-ticker.C:
			sc.scanWithTimeout(ctx)
		case <-sc.stopChan:
			sc.log.Info("Signal scanner stopped")
			return
		}
	}
}

func (sc *Scanner) scanWithTimeout(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()
	sc.Scan(ctx)
}

// Stop gracefully shuts down the scanner
func (sc *Scanner) Stop() {
	sc.stopOnce.Do(func() {
		if sc.cancel != nil {
			sc.cancel()
		}
		close(sc.stopChan)
	})
	sc.wg.Wait()
}

// Scan executes a single scan cycle. Bars are fetched in parallel with at
// most WorkerCount symbols in flight; the timeframes of a symbol are analyzed
// one after the other. A failing symbol does not abort the others.
func (sc *Scanner) Scan(ctx context.Context) *ScanResult {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()

	start := sc.now()
	result := &ScanResult{
		ScanID:         fmt.Sprintf("scan-%d", start.Unix()),
		StartTime:      start,
		SymbolsScanned: len(sc.config.Symbols),
	}

	perSymbol := make([][]PairResult, len(sc.config.Symbols))
	var g errgroup.Group
	g.SetLimit(sc.config.WorkerCount)

	for i, symbol := range sc.config.Symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scan %s: %w", symbol, err)
			}
			perSymbol[i] = sc.scanSymbol(ctx, symbol)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sc.log.WithError(err).Warn("Scan interrupted", "scan_id", result.ScanID)
	}

	for _, pairs := range perSymbol {
		for _, pr := range pairs {
			if pr.Error != "" {
				result.Errors++
			}
			for _, sig := range pr.NewSignals {
				sc.dispatch(ctx, sig)
				result.NewSignals = append(result.NewSignals, sig)
			}
			result.Pairs = append(result.Pairs, pr)
		}
	}

	result.EndTime = sc.now()
	result.Duration = result.EndTime.Sub(start)

	sc.mu.Lock()
	sc.lastResult = result
	sc.mu.Unlock()

	if d, ok := sc.dedup.(*SeenCache); ok {
		d.CleanupExpired()
	}

	sc.log.WithDuration(result.Duration).Info("Scan completed",
		"scan_id", result.ScanID,
		"pairs", len(result.Pairs),
		"new_signals", len(result.NewSignals),
		"errors", result.Errors)
	return result
}

// scanSymbol fetches every configured timeframe of symbol and analyzes each pair
func (sc *Scanner) scanSymbol(ctx context.Context, symbol string) []PairResult {
	out := make([]PairResult, 0, len(sc.config.Timeframes))

	data, err := sc.frames.GetMultiTimeframeData(ctx, symbol, sc.config.Timeframes, sc.config.Bars)
	if err != nil {
		sc.log.WithError(err).Warn("Fetch failed", "symbol", symbol)
		sc.metrics.RecordError("fetch")
		if sc.bus != nil {
			sc.bus.PublishError("scanner", "fetch failed for "+symbol, err)
		}
		for _, tf := range sc.config.Timeframes {
			sc.metrics.RecordScan(symbol, string(tf), 0, err)
			out = append(out, PairResult{Symbol: symbol, Timeframe: tf, Error: err.Error()})
		}
		return out
	}

	if sc.config.PersistBars && sc.store != nil {
		for _, tf := range sc.config.Timeframes {
			if _, err := sc.store.SaveCandles(ctx, symbol, data.Data[tf]); err != nil {
				sc.log.WithError(err).Warn("Failed to persist bars", "symbol", symbol, "timeframe", string(tf))
				sc.metrics.RecordError("persist")
			}
		}
	}

	for _, tf := range sc.config.Timeframes {
		out = append(out, sc.analyzePair(ctx, symbol, tf, data.Data))
	}
	return out
}

// analyzePair runs the generator of one pair over its latest window. Higher
// timeframes fetched in the same cycle are registered first so the pair sees
// their lines.
func (sc *Scanner) analyzePair(ctx context.Context, symbol string, tf market.Timeframe, data map[market.Timeframe][]market.Bar) PairResult {
	began := time.Now()
	pr := PairResult{Symbol: symbol, Timeframe: tf, Bars: len(data[tf])}

	p := sc.pair(symbol, tf)
	p.mu.Lock()
	for _, higher := range tf.Higher() {
		if bars := data[higher]; len(bars) > 0 {
			p.gen.Context().RegisterTimeframe(higher, bars)
		}
	}
	res, err := p.gen.Generate(data[tf])
	zoneDistance := p.gen.Config().ZoneDistance
	var validated []*signals.Signal
	if err == nil {
		// The generator keeps its own signals; sinks get copies
		validated = cloneSignals(res.Signals)
		p.gen.ClearOldCandidates(sc.config.Bars)
		p.gen.ClearOldSignals(sc.config.Bars)
	}
	p.mu.Unlock()

	sc.metrics.RecordScan(symbol, string(tf), time.Since(began), err)
	if err != nil {
		pr.Error = err.Error()
		if errors.Is(err, signals.ErrInsufficientData) {
			sc.log.Warn("Not enough bars", "symbol", symbol, "timeframe", string(tf), "bars", pr.Bars)
		} else {
			sc.log.WithError(err).Error("Analysis failed", "symbol", symbol, "timeframe", string(tf))
		}
		return pr
	}

	pr.Price = res.Price
	pr.Bias = res.Multiframe.Bias
	pr.Candidates = len(res.Candidates)
	for _, c := range res.Candidates {
		switch c.Status {
		case signals.Validated:
			pr.Validated++
		case signals.Rejected:
			pr.Rejected++
		}
	}
	sc.metrics.RecordCandidates(pr.Validated, pr.Rejected)
	sc.metrics.RecordLastPrice(symbol, res.Price)

	for _, sig := range validated {
		if sc.dedup.FirstSeen(ctx, sig.Key(), sc.config.DedupTTL) {
			pr.NewSignals = append(pr.NewSignals, sig)
		}
	}

	sc.checkZones(ctx, symbol, tf, res, zoneDistance)

	if sc.bus != nil {
		sc.bus.PublishScanCompleted(symbol, string(tf), pr.Candidates, len(pr.NewSignals), time.Since(began))
	}
	return pr
}

// checkZones alerts once per zone when price comes within distance of the
// nearest multi-timeframe support or resistance
func (sc *Scanner) checkZones(ctx context.Context, symbol string, tf market.Timeframe, res *signals.Result, distance float64) {
	mf := res.Multiframe
	for _, z := range []*analysis.Zone{mf.NearestSupport, mf.NearestResistance} {
		if z == nil || res.Price <= 0 || math.Abs(z.Price-res.Price)/res.Price > distance {
			continue
		}
		key := fmt.Sprintf("zone|%s|%s|%s|%.6g", symbol, tf, z.Type, z.Price)
		if !sc.dedup.FirstSeen(ctx, key, sc.config.DedupTTL) {
			continue
		}

		if sc.bus != nil {
			sc.bus.PublishZoneApproaching(symbol, string(tf), string(z.Type), string(mf.Bias), z.Price)
		}
		if sc.notifier != nil {
			if err := sc.notifier.SendZoneAlert(ctx, symbol, string(z.Type), z.Price, mf.Bias, tf); err != nil {
				sc.metrics.RecordError("notify")
			}
		}
	}
}

// dispatch fans a new signal out to every sink. Sink failures are logged and
// never block the others.
func (sc *Scanner) dispatch(ctx context.Context, sig *signals.Signal) {
	log := logging.SignalContext(sig.Symbol, string(sig.Direction), sig.ConvergenceScore)
	log.Info("New signal", "signal_id", sig.ID, "timeframe", string(sig.Timeframe), "entry", sig.EntryPrice)

	sc.remember(sig)
	sc.metrics.RecordSignal(sig.Symbol, string(sig.Timeframe), string(sig.Direction))

	if sc.notifier != nil {
		if err := sc.notifier.SendSignal(ctx, sig); err != nil {
			sc.metrics.RecordError("notify")
		}
	}
	if sc.store != nil {
		if err := sc.store.SaveSignal(ctx, sig); err != nil {
			log.WithError(err).Warn("Failed to persist signal", "signal_id", sig.ID)
			sc.metrics.RecordError("persist")
		}
	}
	if sc.publisher != nil {
		if err := sc.publisher.PublishSignal(ctx, sig); err != nil {
			log.WithError(err).Warn("Failed to publish signal", "signal_id", sig.ID)
			sc.metrics.RecordError("publish")
		}
	}
	if sc.bus != nil {
		sc.bus.PublishSignal(sig.ID, sig.Symbol, string(sig.Timeframe), string(sig.Direction),
			sig.EntryPrice, sig.StopLoss, sig.TakeProfit1, sig.ConvergenceScore)
	}
}

func (sc *Scanner) pair(symbol string, tf market.Timeframe) *pair {
	key := symbol + "|" + string(tf)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	p, ok := sc.pairs[key]
	if !ok {
		p = &pair{gen: signals.NewGenerator(symbol, tf, sc.config.Signals)}
		sc.pairs[key] = p
	}
	return p
}

func (sc *Scanner) remember(sig *signals.Signal) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	cp := *sig
	sc.recent = append(sc.recent, &cp)
	if n := len(sc.recent) - sc.config.MaxRecent; n > 0 {
		sc.recent = append(sc.recent[:0], sc.recent[n:]...)
	}
}

// GetLastResult returns the most recent scan result
func (sc *Scanner) GetLastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

// RecentSignals returns up to limit alerted signals, newest first. An empty
// symbol matches every symbol.
func (sc *Scanner) RecentSignals(symbol string, limit int) []*signals.Signal {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	out := make([]*signals.Signal, 0)
	for i := len(sc.recent) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if symbol == "" || sc.recent[i].Symbol == symbol {
			cp := *sc.recent[i]
			out = append(out, &cp)
		}
	}
	return out
}

// InvalidateSignal marks an alerted signal invalid. Returns false for unknown IDs.
func (sc *Scanner) InvalidateSignal(id string) bool {
	found := false
	symbol := ""

	sc.mu.Lock()
	for _, sig := range sc.recent {
		if sig.ID == id {
			sig.Invalidate()
			found, symbol = true, sig.Symbol
			break
		}
	}
	pairs := make(map[string]*pair, len(sc.pairs))
	for key, p := range sc.pairs {
		pairs[key] = p
	}
	sc.mu.Unlock()

	for key, p := range pairs {
		p.mu.Lock()
		ok := p.gen.InvalidateSignal(id)
		p.mu.Unlock()
		if ok {
			found = true
			if symbol == "" {
				symbol, _, _ = strings.Cut(key, "|")
			}
			break
		}
	}

	if found && sc.bus != nil {
		sc.bus.PublishSignalInvalidated(id, symbol)
	}
	return found
}

func cloneSignals(in []*signals.Signal) []*signals.Signal {
	out := make([]*signals.Signal, 0, len(in))
	for _, sig := range in {
		cp := *sig
		out = append(out, &cp)
	}
	return out
}

// Summaries reports candidate and signal counts for every pair seen so far
func (sc *Scanner) Summaries() []string {
	sc.mu.RLock()
	pairs := make([]*pair, 0, len(sc.pairs))
	for _, p := range sc.pairs {
		pairs = append(pairs, p)
	}
	sc.mu.RUnlock()

	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		p.mu.Lock()
		out = append(out, p.gen.Summary())
		p.mu.Unlock()
	}
	sort.Strings(out)
	return out
}
