package sequencer

import (
	"fmt"
	"math"
)

// Waveform names an oscillator shape
type Waveform string

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Triangle Waveform = "triangle"
	Sawtooth Waveform = "sawtooth"
)

// Valid reports whether w is one of the known shapes
func (w Waveform) Valid() bool {
	switch w {
	case Sine, Square, Triangle, Sawtooth:
		return true
	}
	return false
}

// ADSR envelope, times in seconds, sustain as a level 0-1
type ADSR struct {
	Attack  float64 `yaml:"attack" json:"attack"`
	Decay   float64 `yaml:"decay" json:"decay"`
	Sustain float64 `yaml:"sustain" json:"sustain"`
	Release float64 `yaml:"release" json:"release"`
}

// DefaultNoteDuration is used when neither the step nor its instrument
// carries a duration.
const DefaultNoteDuration = 0.14

// Instrument is a timbre snapshot. Once captured into a Step it is
// never mutated; copy it to change anything.
type Instrument struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name,omitempty" json:"name,omitempty"`
	Waveform Waveform `yaml:"waveform" json:"waveform"`
	ADSR     ADSR     `yaml:"adsr" json:"adsr"`
	Duration float64  `yaml:"duration,omitempty" json:"duration,omitempty"` // seconds, 0 = unset
	Gain     float64  `yaml:"gain" json:"gain"`
}

// DefaultInstrument is the timbre used for steps captured without one
func DefaultInstrument() Instrument {
	return Instrument{
		ID:       "default",
		Name:     "Default",
		Waveform: Sine,
		ADSR: ADSR{
			Attack:  0.02,
			Decay:   0.2,
			Sustain: 0.8,
			Release: 0.3,
		},
		Gain: 0.7,
	}
}

// Snapshot returns a private copy of inst, or nil for nil
func Snapshot(inst *Instrument) *Instrument {
	if inst == nil {
		return nil
	}
	c := *inst
	return &c
}

// Label is what the UI shows for the instrument
func (i Instrument) Label() string {
	if i.Name != "" {
		return i.Name
	}
	if i.ID != "" {
		return i.ID
	}
	return string(i.Waveform)
}

func (i Instrument) String() string {
	return fmt.Sprintf("%s(%s a=%.2f d=%.2f s=%.2f r=%.2f g=%.2f)",
		i.Label(), i.Waveform, i.ADSR.Attack, i.ADSR.Decay, i.ADSR.Sustain, i.ADSR.Release, i.Gain)
}

// NoteFrequency converts a MIDI note number to Hz (69 = A4 = 440 Hz)
func NoteFrequency(note uint8) float64 {
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
