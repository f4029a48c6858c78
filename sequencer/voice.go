package sequencer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go-looper/debug"
)

// ErrVoiceCacheClosed is returned once DisposeAll has run
var ErrVoiceCacheClosed = errors.New("voice cache closed")

// VoiceKey identifies a distinct timbre. Two instruments with equal keys
// share one voice.
type VoiceKey struct {
	Waveform Waveform
	Attack   float64
	Decay    float64
	Sustain  float64
	Release  float64
	Gain     float64
}

// Trigger asks a voice to sound one note
type Trigger struct {
	Note      uint8
	Frequency float64
	Duration  time.Duration
	At        time.Time
}

// VoiceOutput is a voice as built by the audio backend
type VoiceOutput interface {
	Play(tr Trigger)
	Close() error
}

// Synth builds voices for a backend
type Synth interface {
	NewVoice(key VoiceKey) (VoiceOutput, error)
}

// VoiceLimits cap release and gain before a voice is built
type VoiceLimits struct {
	MaxRelease float64
	MaxGain    float64
}

// DefaultVoiceLimits keeps release at or under 0.3 s and gain at or under 0.2
func DefaultVoiceLimits() VoiceLimits {
	return VoiceLimits{MaxRelease: 0.3, MaxGain: 0.2}
}

// Voice is a cached, reusable sound source
type Voice struct {
	Key VoiceKey
	out VoiceOutput
}

// Trigger sounds note for dur starting at at
func (v *Voice) Trigger(note uint8, dur time.Duration, at time.Time) {
	v.out.Play(Trigger{
		Note:      note,
		Frequency: NoteFrequency(note),
		Duration:  dur,
		At:        at,
	})
}

// VoiceCache lazily builds one voice per VoiceKey and keeps it until
// DisposeAll. It never evicts.
type VoiceCache struct {
	mu     sync.Mutex
	synth  Synth
	limits VoiceLimits
	voices map[VoiceKey]*Voice
	closed bool
}

// NewVoiceCache creates an empty cache over synth. Zero limits mean
// DefaultVoiceLimits.
func NewVoiceCache(synth Synth, limits VoiceLimits) *VoiceCache {
	if limits == (VoiceLimits{}) {
		limits = DefaultVoiceLimits()
	}
	return &VoiceCache{
		synth:  synth,
		limits: limits,
		voices: make(map[VoiceKey]*Voice),
	}
}

// KeyFor computes the cache key for inst (nil = default timbre)
func (c *VoiceCache) KeyFor(inst *Instrument) VoiceKey {
	def := DefaultInstrument()
	if inst == nil {
		inst = &def
	}

	wave := inst.Waveform
	if !wave.Valid() {
		wave = def.Waveform
	}
	return VoiceKey{
		Waveform: wave,
		Attack:   nonNegative(inst.ADSR.Attack, def.ADSR.Attack),
		Decay:    nonNegative(inst.ADSR.Decay, def.ADSR.Decay),
		Sustain:  math.Min(nonNegative(inst.ADSR.Sustain, def.ADSR.Sustain), 1),
		Release:  math.Min(nonNegative(inst.ADSR.Release, def.ADSR.Release), c.limits.MaxRelease),
		Gain:     math.Min(nonNegative(inst.Gain, def.Gain), c.limits.MaxGain),
	}
}

// Acquire returns the voice for inst, building it on first use
func (c *VoiceCache) Acquire(inst *Instrument) (*Voice, error) {
	key := c.KeyFor(inst)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrVoiceCacheClosed
	}
	if v, ok := c.voices[key]; ok {
		return v, nil
	}

	out, err := c.synth.NewVoice(key)
	if err != nil {
		return nil, fmt.Errorf("new voice %s: %w", key.Waveform, err)
	}
	v := &Voice{Key: key, out: out}
	c.voices[key] = v
	debug.Log("voice", "created %+v (%d live)", key, len(c.voices))
	return v, nil
}

// Len returns the number of live voices
func (c *VoiceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voices)
}

// DisposeAll closes every voice. Only the first call does anything;
// later calls return ErrVoiceCacheClosed.
func (c *VoiceCache) DisposeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrVoiceCacheClosed
	}
	c.closed = true

	var errs []error
	for key, v := range c.voices {
		if err := v.out.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.voices, key)
	}
	debug.Log("voice", "disposed all voices")
	return errors.Join(errs...)
}

// nonNegative replaces non-finite values with def and clamps at 0
func nonNegative(v, def float64) float64 {
	if !finite(v) {
		return def
	}
	return math.Max(v, 0)
}
