package sequencer

import (
	"math"
	"time"
)

// StepsPerLoop is the fixed pattern length
const StepsPerLoop = 8

// Step is one recorded note. A nil *Step in a pattern is silence.
type Step struct {
	Note       uint8
	Instrument *Instrument // private copy, nil = default timbre
	Duration   float64     // per-note override in seconds, 0 = none
}

// NewStep captures note with a copy of inst
func NewStep(note uint8, inst *Instrument) *Step {
	return &Step{Note: note, Instrument: Snapshot(inst)}
}

// NoteDuration resolves the step's length: the step override, else the
// instrument's duration, else DefaultNoteDuration.
func (s *Step) NoteDuration() time.Duration {
	secs := DefaultNoteDuration
	switch {
	case s.Duration > 0 && finite(s.Duration):
		secs = s.Duration
	case s.Instrument != nil && s.Instrument.Duration > 0 && finite(s.Instrument.Duration):
		secs = s.Instrument.Duration
	}
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// Pattern is the eight steps of a loop
type Pattern [StepsPerLoop]*Step

// Empty reports whether every step is silence
func (p Pattern) Empty() bool {
	for _, s := range p {
		if s != nil {
			return false
		}
	}
	return true
}

// Count returns the number of sounding steps
func (p Pattern) Count() int {
	n := 0
	for _, s := range p {
		if s != nil {
			n++
		}
	}
	return n
}

// Loop is a committed pattern. Loops are immutable once stored.
type Loop struct {
	ID    string
	Notes Pattern
	BPM   float64
}

// LoopRef fills a channel slot: either an inline loop or a store id
type LoopRef struct {
	LoopID string
	Inline *Loop
}

// Channel is one row of the arrangement. A nil slot is silence.
type Channel struct {
	ID    string
	Slots []*LoopRef
}

// Steps is the channel's effective length in steps
func (c Channel) Steps() int {
	return len(c.Slots) * StepsPerLoop
}

// HasLoops reports whether any slot is filled
func (c Channel) HasLoops() bool {
	for _, s := range c.Slots {
		if s != nil {
			return true
		}
	}
	return false
}

// LongestSteps is the composition length: the longest channel in steps
func LongestSteps(channels []Channel) int {
	longest := 0
	for _, ch := range channels {
		if n := ch.Steps(); n > longest {
			longest = n
		}
	}
	return longest
}
