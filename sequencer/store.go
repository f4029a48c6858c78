package sequencer

import (
	"fmt"
	"sync"

	"go-looper/debug"
)

// Store holds committed loops and instrument presets. Loops are only
// ever appended; nothing is deleted during a session.
type Store struct {
	mu      sync.RWMutex
	loops   []*Loop
	byID    map[string]*Loop
	nextID  int
	presets []Instrument
}

// NewStore creates a store seeded with presets
func NewStore(presets []Instrument) *Store {
	s := &Store{byID: make(map[string]*Loop)}
	s.SetPresets(presets)
	return s
}

// AddLoop commits a pattern under a new unique id
func (s *Store) AddLoop(notes Pattern, bpm float64) *Loop {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	l := &Loop{
		ID:    fmt.Sprintf("loop-%d", s.nextID),
		Notes: notes,
		BPM:   bpm,
	}
	s.loops = append(s.loops, l)
	s.byID[l.ID] = l
	debug.Log("store", "added %s (%d notes, %.0f bpm)", l.ID, notes.Count(), bpm)
	return l
}

// Loop returns the loop with id
func (s *Store) Loop(id string) (*Loop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byID[id]
	return l, ok
}

// Resolve finds the loop a slot refers to. An inline loop wins over
// the id; a nil store only resolves inline loops.
func (s *Store) Resolve(ref *LoopRef) *Loop {
	if ref == nil {
		return nil
	}
	if ref.Inline != nil {
		return ref.Inline
	}
	if s == nil {
		return nil
	}
	l, _ := s.Loop(ref.LoopID)
	return l
}

// Loops returns every loop in commit order
func (s *Store) Loops() []*Loop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Loop, len(s.loops))
	copy(out, s.loops)
	return out
}

// SetPresets replaces the preset list
func (s *Store) SetPresets(presets []Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = append([]Instrument(nil), presets...)
}

// Presets returns a copy of the preset list
func (s *Store) Presets() []Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Instrument(nil), s.presets...)
}

// Preset looks a preset up by id
func (s *Store) Preset(id string) (Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.presets {
		if p.ID == id {
			return p, true
		}
	}
	return Instrument{}, false
}
