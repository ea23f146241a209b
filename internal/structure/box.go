package structure

import "fortis-trading-bot/internal/market"

// Box is the envelope of the last closed movement. Price inside it is noise.
type Box struct {
	High       float64          `json:"high"`
	Low        float64          `json:"low"`
	Direction  market.Direction `json:"direction"`
	StartIndex int              `json:"start_index"`
	EndIndex   int              `json:"end_index"`
	Fixed      bool             `json:"fixed"`
}

// Contains is a closed-interval price test
func (b *Box) Contains(price float64) bool {
	return b.Low <= price && price <= b.High
}

// BoxManager keeps the current box and the frozen history
type BoxManager struct {
	history []Box
	current *Box
}

func NewBoxManager() *BoxManager {
	return &BoxManager{}
}

// FromMovement freezes the current box and replaces it with one built from m
func (bm *BoxManager) FromMovement(m *Movement) *Box {
	if bm.current != nil {
		bm.current.Fixed = true
		bm.history = append(bm.history, *bm.current)
	}
	bm.current = &Box{
		High:       m.High(),
		Low:        m.Low(),
		Direction:  m.Direction,
		StartIndex: m.StartIndex,
		EndIndex:   m.EndIndex,
	}
	return bm.current
}

func (bm *BoxManager) Current() *Box { return bm.current }
func (bm *BoxManager) History() []Box { return bm.history }

// IsPriceNoise reports whether price sits inside the current box
func (bm *BoxManager) IsPriceNoise(price float64) bool {
	if bm.current == nil {
		return false
	}
	return bm.current.Contains(price)
}

func (bm *BoxManager) Reset() {
	bm.history = nil
	bm.current = nil
}
