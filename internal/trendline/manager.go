package trendline

import (
	"math"
	"sort"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/structure"
)

// EventKind is the outcome of testing a bar against a line
type EventKind string

const (
	EventTouch     EventKind = "TOUCH"
	EventStrike    EventKind = "STRIKE"
	EventEliminate EventKind = "ELIMINATE"
)

// Event records one lifecycle change
type Event struct {
	LineID  ID        `json:"line_id"`
	Kind    EventKind `json:"kind"`
	Index   int       `json:"index"`
	Price   float64   `json:"price"`
	Strikes int       `json:"strikes"`
}

// Config holds the zone tolerances
type Config struct {
	ZoneTolerance     float64 // Fraction of line price counted as "at the line"
	ReactionTolerance float64 // Sub-tolerance a reaction bar must reach
	SwingLookback     int
}

// DefaultConfig returns 0.5% zone and reaction tolerances with a swing radius of 2
func DefaultConfig() Config {
	return Config{
		ZoneTolerance:     0.005,
		ReactionTolerance: 0.005,
		SwingLookback:     2,
	}
}

// Manager owns every line of one symbol. Lines live in an arena keyed by ID and are
// indexed by timeframe in creation order.
type Manager struct {
	config Config
	lines  map[ID]*Line
	byTF   map[market.Timeframe][]ID
	nextID ID
}

// NewManager creates an empty line manager
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.ZoneTolerance <= 0 {
		cfg.ZoneTolerance = def.ZoneTolerance
	}
	if cfg.ReactionTolerance <= 0 {
		cfg.ReactionTolerance = def.ReactionTolerance
	}
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = def.SwingLookback
	}
	return &Manager{
		config: cfg,
		lines:  make(map[ID]*Line),
		byTF:   make(map[market.Timeframe][]ID),
		nextID: 1,
	}
}

// Add stores a line and assigns its ID
func (m *Manager) Add(l *Line) ID {
	l.ID = m.nextID
	m.nextID++
	m.lines[l.ID] = l
	m.byTF[l.Timeframe] = append(m.byTF[l.Timeframe], l.ID)
	return l.ID
}

// Get returns a line by ID
func (m *Manager) Get(id ID) (*Line, bool) {
	l, ok := m.lines[id]
	return l, ok
}

// Reset drops every line of one timeframe
func (m *Manager) Reset(tf market.Timeframe) {
	for _, id := range m.byTF[tf] {
		delete(m.lines, id)
	}
	delete(m.byTF, tf)
}

// AutoDetect creates a horizontal line per swing and an inclined line per
// consecutive pair of same-type swings. Each line becomes visible only once its
// last pivot is confirmed by the swing window.
func (m *Manager) AutoDetect(bars []market.Bar, tf market.Timeframe) []*Line {
	sd := structure.NewSwingDetector(m.config.SwingLookback)
	highs, lows := sd.Detect(bars)
	lb := sd.Lookback()

	var created []*Line
	add := func(l *Line) {
		if l == nil {
			return
		}
		l.KnownFrom += lb
		m.Add(l)
		created = append(created, l)
	}

	for _, s := range highs {
		add(NewHorizontal(s, tf))
	}
	for _, s := range lows {
		add(NewHorizontal(s, tf))
	}
	for i := 1; i < len(highs); i++ {
		add(NewInclined(highs[i-1], highs[i], tf))
	}
	for i := 1; i < len(lows); i++ {
		add(NewInclined(lows[i-1], lows[i], tf))
	}

	return created
}

// Update tests bar idx against every active line of the bar's timeframe that was
// known before idx, and applies touches and strikes.
func (m *Manager) Update(b market.Bar, idx int) []Event {
	var events []Event

	for _, id := range m.byTF[b.Timeframe] {
		l := m.lines[id]
		if !l.Active || l.KnownFrom >= idx {
			continue
		}

		lp := l.PriceAt(idx)
		zone := lp * m.config.ZoneTolerance
		if b.Low > lp+zone || b.High < lp-zone {
			continue
		}

		if m.isReaction(l, b, lp) {
			l.AddTouch()
			events = append(events, Event{LineID: id, Kind: EventTouch, Index: idx, Price: b.Close})
			continue
		}

		kind := EventStrike
		if l.AddStrike() {
			kind = EventEliminate
			l.EliminateAt = idx
		}
		events = append(events, Event{LineID: id, Kind: kind, Index: idx, Price: b.Close, Strikes: l.Strikes})
	}

	return events
}

// Replay runs Update over bars[from:]
func (m *Manager) Replay(bars []market.Bar, from int) []Event {
	if from < 0 {
		from = 0
	}
	var events []Event
	for i := from; i < len(bars); i++ {
		events = append(events, m.Update(bars[i], i)...)
	}
	return events
}

func (m *Manager) isReaction(l *Line, b market.Bar, lp float64) bool {
	if l.Type == Support {
		return b.IsBullish() && b.Low <= lp*(1+m.config.ReactionTolerance)
	}
	return b.IsBearish() && b.High >= lp*(1-m.config.ReactionTolerance)
}

// Active returns active lines of tf in creation order. An empty tf returns all timeframes.
func (m *Manager) Active(tf market.Timeframe) []*Line {
	var out []*Line
	for _, t := range m.timeframes(tf) {
		for _, id := range m.byTF[t] {
			if l := m.lines[id]; l.Active {
				out = append(out, l)
			}
		}
	}
	return out
}

// Confirmed returns active lines with at least two touches
func (m *Manager) Confirmed(tf market.Timeframe) []*Line {
	var out []*Line
	for _, l := range m.Active(tf) {
		if l.Confirmed() {
			out = append(out, l)
		}
	}
	return out
}

// Supports returns active support lines
func (m *Manager) Supports(tf market.Timeframe) []*Line {
	return m.byType(tf, Support)
}

// Resistances returns active resistance lines
func (m *Manager) Resistances(tf market.Timeframe) []*Line {
	return m.byType(tf, Resistance)
}

// Near returns active lines whose price at idx is within tol (fraction) of price
func (m *Manager) Near(tf market.Timeframe, price float64, idx int, tol float64) []*Line {
	var out []*Line
	for _, l := range m.Active(tf) {
		if price > 0 && math.Abs(l.PriceAt(idx)-price)/price <= tol {
			out = append(out, l)
		}
	}
	return out
}

func (m *Manager) byType(tf market.Timeframe, t LineType) []*Line {
	var out []*Line
	for _, l := range m.Active(tf) {
		if l.Type == t {
			out = append(out, l)
		}
	}
	return out
}

func (m *Manager) timeframes(tf market.Timeframe) []market.Timeframe {
	if tf != "" {
		return []market.Timeframe{tf}
	}
	tfs := make([]market.Timeframe, 0, len(m.byTF))
	for t := range m.byTF {
		tfs = append(tfs, t)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i].Index() < tfs[j].Index() })
	return tfs
}
