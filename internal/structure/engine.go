package structure

import "fortis-trading-bot/internal/market"

// Snapshot is the structural state of a bar sequence
type Snapshot struct {
	SwingHighs []SwingPoint `json:"swing_highs"`
	SwingLows  []SwingPoint `json:"swing_lows"`
	Movements  []Movement   `json:"movements"`
	Current    *Movement    `json:"current,omitempty"`
	Boxes      []Box        `json:"boxes"`
	Box        *Box         `json:"box,omitempty"`
	Impulses   []Impulse    `json:"impulses"`
	Checkpoint *Checkpoint  `json:"checkpoint,omitempty"`
}

// Engine coordinates swing, movement, box and checkpoint detection
type Engine struct {
	swings      *SwingDetector
	movements   *MovementDetector
	boxes       *BoxManager
	checkpoints *CheckpointManager
}

// NewEngine creates a structure engine with the given swing radius
func NewEngine(swingLookback int) *Engine {
	return &Engine{
		swings:      NewSwingDetector(swingLookback),
		movements:   NewMovementDetector(),
		boxes:       NewBoxManager(),
		checkpoints: NewCheckpointManager(),
	}
}

// Analyze rebuilds the structure from bars. Each call starts from a clean state so
// replaying a prefix of history gives the same answer every time.
func (e *Engine) Analyze(bars []market.Bar) Snapshot {
	e.boxes.Reset()
	e.checkpoints.Reset()

	highs, lows := e.swings.Detect(bars)
	moves := e.movements.Process(bars)
	for i := range moves {
		e.boxes.FromMovement(&moves[i])
	}
	impulses := DetectImpulses(moves, highs, lows, e.checkpoints)

	return Snapshot{
		SwingHighs: highs,
		SwingLows:  lows,
		Movements:  moves,
		Current:    e.movements.Current(),
		Boxes:      e.boxes.History(),
		Box:        e.boxes.Current(),
		Impulses:   impulses,
		Checkpoint: e.checkpoints.Current(),
	}
}

// IsPriceNoise tests price against the current box of the last analysis
func (e *Engine) IsPriceNoise(price float64) bool {
	return e.boxes.IsPriceNoise(price)
}

// CheckpointBroken tests price against the current checkpoint of the last analysis
func (e *Engine) CheckpointBroken(price float64) bool {
	return e.checkpoints.IsBroken(price)
}

// Checkpoint returns the current checkpoint, nil when none has formed
func (e *Engine) Checkpoint() *Checkpoint {
	return e.checkpoints.Current()
}
