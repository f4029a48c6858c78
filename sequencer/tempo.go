package sequencer

import (
	"math"
	"sync"
)

// Tempo dial range
const (
	MinTempo = 86.0
	MaxTempo = 200.0
)

// Tempo is the BPM shared by the recorder and the composer
type Tempo struct {
	mu       sync.RWMutex
	bpm      float64
	onChange func(float64)
}

// NewTempo starts at bpm clamped to the dial range
func NewTempo(bpm float64) *Tempo {
	return &Tempo{bpm: clampTempo(bpm)}
}

// OnChange registers fn to run after every effective change
func (t *Tempo) OnChange(fn func(float64)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// BPM returns the current tempo
func (t *Tempo) BPM() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bpm
}

// Set changes the tempo, clamped to MinTempo..MaxTempo. Non-numbers are
// ignored. Returns the tempo now in effect.
func (t *Tempo) Set(bpm float64) float64 {
	if math.IsNaN(bpm) {
		return t.BPM()
	}
	bpm = clampTempo(bpm)

	t.mu.Lock()
	changed := bpm != t.bpm
	t.bpm = bpm
	fn := t.onChange
	t.mu.Unlock()

	if changed && fn != nil {
		fn(bpm)
	}
	return bpm
}

// Nudge moves the tempo by delta
func (t *Tempo) Nudge(delta float64) float64 {
	return t.Set(t.BPM() + delta)
}

func clampTempo(bpm float64) float64 {
	if math.IsNaN(bpm) {
		return MinTempo
	}
	return math.Min(math.Max(bpm, MinTempo), MaxTempo)
}
