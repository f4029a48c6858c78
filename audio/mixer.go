package audio

import (
	"math"
	"sync"
	"time"

	"go-looper/debug"
	"go-looper/sequencer"
)

// Mixer sums every sounding note, applies the master gain and a soft
// limiter. It implements sequencer.Synth.
//
// Trigger times are wall-clock; frame 0 is the moment the mixer was
// created and the mapping is re-anchored if rendering stalls.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	master     float64
	ceiling    float64
	now        func() time.Time
	epoch      time.Time
	frame      int64
	notes      []*note
}

type note struct {
	v     *voice
	osc   oscillator
	env   envelope
	gain  float64
	start int64
}

// NewMixer creates a mixer. limitDB is the limiter ceiling (e.g. -3).
func NewMixer(sampleRate int, masterGain, limitDB float64) *Mixer {
	return newMixer(sampleRate, masterGain, limitDB, time.Now)
}

func newMixer(sampleRate int, masterGain, limitDB float64, now func() time.Time) *Mixer {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Mixer{
		sampleRate: sampleRate,
		master:     masterGain,
		ceiling:    math.Pow(10, limitDB/20),
		now:        now,
		epoch:      now(),
	}
}

// SampleRate returns the output rate in Hz
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// NewVoice implements sequencer.Synth
func (m *Mixer) NewVoice(key sequencer.VoiceKey) (sequencer.VoiceOutput, error) {
	return &voice{m: m, key: key}, nil
}

// Active returns the number of notes still sounding or scheduled
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

func (m *Mixer) schedule(v *voice, tr sequencer.Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sr := float64(m.sampleRate)
	start := int64(math.Round(tr.At.Sub(m.epoch).Seconds() * sr))
	if start < m.frame {
		start = m.frame
	}
	m.notes = append(m.notes, &note{
		v:     v,
		osc:   newOscillator(v.key.Waveform, tr.Frequency, sr),
		env:   newEnvelope(v.key, tr.Duration.Seconds(), sr),
		gain:  v.key.Gain,
		start: start,
	})
}

// drop removes every note belonging to v
func (m *Mixer) drop(v *voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.notes[:0]
	for _, n := range m.notes {
		if n.v != v {
			kept = append(kept, n)
		}
	}
	for i := len(kept); i < len(m.notes); i++ {
		m.notes[i] = nil
	}
	m.notes = kept
}

// Render fills dst with mono samples in -1..1 and advances time
func (m *Mixer) Render(dst []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resync()

	for i := range dst {
		frame := m.frame + int64(i)
		var sum float64
		for _, n := range m.notes {
			if frame < n.start || n.env.done() {
				continue
			}
			sum += n.osc.sample() * n.env.level() * n.gain
		}
		dst[i] = m.limit(sum * m.master)
	}
	m.frame += int64(len(dst))

	kept := m.notes[:0]
	for _, n := range m.notes {
		if !n.env.done() {
			kept = append(kept, n)
		}
	}
	for i := len(kept); i < len(m.notes); i++ {
		m.notes[i] = nil
	}
	m.notes = kept
}

// resync re-anchors the epoch when the rendered position and the wall
// clock disagree by more than half a second (device stalled or suspended)
func (m *Mixer) resync() {
	sr := float64(m.sampleRate)
	wall := int64(m.now().Sub(m.epoch).Seconds() * sr)
	if d := wall - m.frame; d > int64(sr/2) || d < -int64(sr/2) {
		debug.Log("audio", "resync: off by %d frames", d)
		m.epoch = m.now().Add(-time.Duration(float64(m.frame) / sr * float64(time.Second)))
	}
}

// limit soft-clips so the output never exceeds the ceiling
func (m *Mixer) limit(x float64) float64 {
	return m.ceiling * math.Tanh(x/m.ceiling)
}

type voice struct {
	m      *Mixer
	key    sequencer.VoiceKey
	mu     sync.Mutex
	closed bool
}

func (v *voice) Play(tr sequencer.Trigger) {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	v.m.schedule(v, tr)
}

func (v *voice) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.m.drop(v)
	return nil
}
