// Package audio renders voice triggers: a software mixer played through
// oto, a MIDI-out adapter for external synths, and a silent sink.
package audio

import (
	"math"

	"go-looper/sequencer"
)

// oscillator generates one waveform, phase in [0,1)
type oscillator struct {
	wave       sequencer.Waveform
	phase      float64
	freq       float64
	sampleRate float64
}

func newOscillator(wave sequencer.Waveform, freq, sampleRate float64) oscillator {
	return oscillator{wave: wave, freq: freq, sampleRate: sampleRate}
}

// sample returns the next value in -1..1
func (o *oscillator) sample() float64 {
	if o.freq <= 0 {
		return 0
	}
	p := o.phase
	o.phase += o.freq / o.sampleRate
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}

	switch o.wave {
	case sequencer.Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case sequencer.Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	case sequencer.Sawtooth:
		return 2*p - 1
	default:
		return math.Sin(2 * math.Pi * p)
	}
}

// envelope is a linear ADSR measured in frames. The gate closes after
// gate frames; release starts from whatever level was reached.
type envelope struct {
	attack, decay, release int64
	sustain                float64
	gate                   int64
	pos                    int64
	releaseFrom            float64
}

func newEnvelope(adsr sequencer.VoiceKey, gateSecs, sampleRate float64) envelope {
	frames := func(secs float64) int64 { return int64(math.Round(secs * sampleRate)) }
	return envelope{
		attack:  frames(adsr.Attack),
		decay:   frames(adsr.Decay),
		release: frames(adsr.Release),
		sustain: adsr.Sustain,
		gate:    max(frames(gateSecs), 1),
	}
}

// level returns the current gain and advances one frame
func (e *envelope) level() float64 {
	pos := e.pos
	e.pos++

	if pos < e.gate {
		l := e.held(pos)
		e.releaseFrom = l
		return l
	}
	if e.release <= 0 {
		return 0
	}
	r := pos - e.gate
	if r >= e.release {
		return 0
	}
	return e.releaseFrom * (1 - float64(r)/float64(e.release))
}

func (e *envelope) held(pos int64) float64 {
	if pos < e.attack {
		return float64(pos+1) / float64(e.attack)
	}
	pos -= e.attack
	if pos < e.decay {
		return 1 - (1-e.sustain)*float64(pos)/float64(e.decay)
	}
	return e.sustain
}

// done reports whether the release has finished
func (e *envelope) done() bool {
	return e.pos >= e.gate+e.release
}
