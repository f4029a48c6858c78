package audio

import (
	"fmt"
	"math"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-looper/debug"
	"go-looper/sequencer"
)

// drumChannel is skipped when allocating voice channels (GM percussion)
const drumChannel = 9

// General MIDI programs closest to each waveform
var gmPrograms = map[sequencer.Waveform]uint8{
	sequencer.Sine:     79, // Ocarina
	sequencer.Square:   80, // Lead 1 (square)
	sequencer.Sawtooth: 81, // Lead 2 (sawtooth)
	sequencer.Triangle: 73, // Flute
}

// MIDIOutput renders voices on an external synth. Each voice gets its
// own MIDI channel (wrapping after 15) with a program picked from its
// waveform; triggers become timed note on / note off pairs.
type MIDIOutput struct {
	send  func(gomidi.Message) error
	clock sequencer.Clock
	base  uint8

	mu      sync.Mutex
	next    uint8
	used    map[uint8]bool
	pending map[sequencer.Timer]struct{}
	closed  bool
}

// OpenMIDIOutput connects to the named output port. channel is 1-16.
func OpenMIDIOutput(portName string, channel int) (*MIDIOutput, error) {
	port, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", portName, err)
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", portName, err)
	}
	return NewMIDIOutput(send, channel, nil), nil
}

// NewMIDIOutput wraps a sender. A nil clock means the wall clock.
func NewMIDIOutput(send func(gomidi.Message) error, channel int, clock sequencer.Clock) *MIDIOutput {
	if clock == nil {
		clock = sequencer.SystemClock()
	}
	if channel < 1 || channel > 16 {
		channel = 1
	}
	return &MIDIOutput{
		send:    send,
		clock:   clock,
		base:    uint8(channel - 1),
		used:    make(map[uint8]bool),
		pending: make(map[sequencer.Timer]struct{}),
	}
}

// NewVoice implements sequencer.Synth
func (o *MIDIOutput) NewVoice(key sequencer.VoiceKey) (sequencer.VoiceOutput, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, fmt.Errorf("midi output closed")
	}
	ch := o.allocate()
	o.mu.Unlock()

	program := gmPrograms[key.Waveform]
	if err := o.send(gomidi.ProgramChange(ch, program)); err != nil {
		return nil, fmt.Errorf("program change on channel %d: %w", ch+1, err)
	}
	debug.Log("audio", "midi voice %s on channel %d", key.Waveform, ch+1)
	return &midiVoice{out: o, channel: ch, velocity: velocityFor(key.Gain)}, nil
}

// allocate expects mu held
func (o *MIDIOutput) allocate() uint8 {
	for {
		ch := (o.base + o.next) % 16
		o.next++
		if ch != drumChannel {
			o.used[ch] = true
			return ch
		}
	}
}

// velocityFor maps voice gain to velocity; gain reaches the cache capped
// at 0.2, which is full velocity here.
func velocityFor(gain float64) uint8 {
	v := math.Round(math.Min(gain/0.2, 1) * 127)
	return uint8(max(v, 1))
}

// schedule sends msg at the trigger time, or at its end when noteOff is set
func (o *MIDIOutput) schedule(msg gomidi.Message, tr sequencer.Trigger, noteOff bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	delay := tr.At.Sub(o.clock.Now())
	if noteOff {
		delay += tr.Duration
	}
	if delay < 0 {
		delay = 0
	}

	var t sequencer.Timer
	t = o.clock.AfterFunc(delay, func() {
		o.mu.Lock()
		delete(o.pending, t)
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return
		}
		if err := o.send(msg); err != nil {
			debug.Log("audio", "midi send: %v", err)
		}
	})
	o.pending[t] = struct{}{}
}

// Close cancels pending notes and silences every channel it used
func (o *MIDIOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for t := range o.pending {
		t.Stop()
	}
	o.pending = nil
	used := o.used
	o.mu.Unlock()

	var err error
	for ch := range used {
		if e := o.send(gomidi.ControlChange(ch, 123, 0)); e != nil && err == nil {
			err = e
		}
	}
	return err
}

type midiVoice struct {
	out      *MIDIOutput
	channel  uint8
	velocity uint8
}

func (v *midiVoice) Play(tr sequencer.Trigger) {
	v.out.schedule(gomidi.NoteOn(v.channel, tr.Note, v.velocity), tr, false)
	v.out.schedule(gomidi.NoteOff(v.channel, tr.Note), tr, true)
}

// Close is a no-op; MIDIOutput.Close silences the channels
func (v *midiVoice) Close() error {
	return nil
}
