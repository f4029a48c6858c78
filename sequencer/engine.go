package sequencer

import (
	"errors"
	"sync"
	"time"

	"go-looper/debug"
)

// ErrEngineClosed is returned by Close after the first call
var ErrEngineClosed = errors.New("engine closed")

// Mode is what the engine is currently playing
type Mode int

const (
	ModeStopped Mode = iota
	ModePreview
	ModeComposition
)

func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeComposition:
		return "composition"
	}
	return "stopped"
}

// Engine owns the one transport and plays either a single pattern
// (preview) or the whole arrangement (composition). Starting one stops
// the other.
type Engine struct {
	transport *Transport
	voices    *VoiceCache
	store     *Store
	clock     Clock

	mu       sync.Mutex
	mode     Mode
	run      uint64
	pattern  Pattern
	channels []Channel
	longest  int
	onStep   func(int)
	onMode   func(Mode)
	closed   bool
}

// NewEngine wires a transport driven by clock (nil = SystemClock) to
// voices. store resolves slot loop ids at tick time.
func NewEngine(store *Store, voices *VoiceCache, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	e := &Engine{
		transport: NewTransport(clock),
		voices:    voices,
		store:     store,
		clock:     clock,
	}
	e.transport.OnStep(e.handleTick)
	return e
}

// OnModeChange registers fn to run whenever the mode changes
func (e *Engine) OnModeChange(fn func(Mode)) {
	e.mu.Lock()
	e.onMode = fn
	e.mu.Unlock()
}

// Mode returns the current playback mode
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Composition returns the channels being played and their wrap length
// in steps. Both are zero unless the composition is running.
func (e *Engine) Composition() ([]Channel, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeComposition {
		return nil, 0
	}
	return e.channels, e.longest
}

// Transport returns the transport state
func (e *Engine) Transport() TransportState {
	return e.transport.State()
}

// PlayPreview loops pattern at bpm, calling onStep with 0-7 on every
// step before its note sounds. An all-silent pattern is not played.
func (e *Engine) PlayPreview(pattern Pattern, bpm float64, onStep func(int)) bool {
	if pattern.Empty() {
		return false
	}
	if !e.start(ModePreview, bpm, onStep, func() {
		e.pattern = pattern
		e.channels = nil
		e.longest = StepsPerLoop
	}) {
		return false
	}
	debug.Log("engine", "preview %d notes at %.0f bpm", pattern.Count(), bpm)
	return true
}

// PlayComposition plays channels in parallel, wrapping at the longest
// channel. onStep gets the global step before that step's notes sound.
// A composition without a single filled slot is not played.
func (e *Engine) PlayComposition(channels []Channel, bpm float64, onStep func(int)) bool {
	filled := false
	for _, ch := range channels {
		if ch.HasLoops() {
			filled = true
			break
		}
	}
	if !filled {
		return false
	}
	snapshot := append([]Channel(nil), channels...)
	longest := LongestSteps(snapshot)
	if !e.start(ModeComposition, bpm, onStep, func() {
		e.pattern = Pattern{}
		e.channels = snapshot
		e.longest = longest
	}) {
		return false
	}
	debug.Log("engine", "composition %d channels, %d steps at %.0f bpm", len(snapshot), longest, bpm)
	return true
}

func (e *Engine) start(mode Mode, bpm float64, onStep func(int), load func()) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	load()
	e.mode = mode
	e.onStep = onStep
	// held across Start so the first tick sees the new run id
	e.run = e.transport.Start(bpm)
	onMode := e.onMode
	e.mu.Unlock()

	if onMode != nil {
		onMode(mode)
	}
	return true
}

// Stop halts whatever is playing
func (e *Engine) Stop() {
	e.stopIf(func(Mode) bool { return true })
}

// StopPreview halts playback only if a preview is running
func (e *Engine) StopPreview() {
	e.stopIf(func(m Mode) bool { return m == ModePreview })
}

// StopComposition halts playback only if the composition is running
func (e *Engine) StopComposition() {
	e.stopIf(func(m Mode) bool { return m == ModeComposition })
}

func (e *Engine) stopIf(match func(Mode) bool) {
	e.mu.Lock()
	if e.mode == ModeStopped || !match(e.mode) {
		e.mu.Unlock()
		return
	}
	e.transport.Stop()
	e.mode = ModeStopped
	e.onStep = nil
	onMode := e.onMode
	e.mu.Unlock()

	debug.Log("engine", "stopped")
	if onMode != nil {
		onMode(ModeStopped)
	}
}

// SetTempo re-paces playback without restarting it
func (e *Engine) SetTempo(bpm float64) {
	e.transport.SetTempo(bpm)
}

// Audition sounds a single note immediately with inst
func (e *Engine) Audition(note uint8, inst *Instrument) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	e.trigger(&Step{Note: note, Instrument: inst}, e.clock.Now())
}

// Close stops playback, waits for a tick in progress and then releases
// every voice. It must not be called from an onStep callback.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.closed = true
	e.mode = ModeStopped
	e.onStep = nil
	e.transport.Stop()
	e.mu.Unlock()

	e.transport.Quiesce()
	return e.voices.DisposeAll()
}

func (e *Engine) handleTick(tick Tick) {
	e.mu.Lock()
	if e.closed || e.mode == ModeStopped || tick.Run != e.run {
		e.mu.Unlock()
		return
	}
	mode, pattern, channels, longest, onStep := e.mode, e.pattern, e.channels, e.longest, e.onStep
	e.mu.Unlock()

	switch mode {
	case ModePreview:
		i := int(tick.Step % StepsPerLoop)
		if onStep != nil {
			onStep(i)
		}
		if s := pattern[i]; s != nil {
			e.trigger(s, tick.At)
		}

	case ModeComposition:
		g := int(tick.Step % int64(longest))
		if onStep != nil {
			onStep(g)
		}
		slot, step := g/StepsPerLoop, g%StepsPerLoop
		for _, ch := range channels {
			if slot >= len(ch.Slots) {
				continue
			}
			l := e.store.Resolve(ch.Slots[slot])
			if l == nil {
				continue
			}
			if s := l.Notes[step]; s != nil {
				e.trigger(s, tick.At)
			}
		}
	}
}

func (e *Engine) trigger(s *Step, at time.Time) {
	v, err := e.voices.Acquire(s.Instrument)
	if err != nil {
		debug.Log("engine", "note %d dropped: %v", s.Note, err)
		return
	}
	v.Trigger(s.Note, s.NoteDuration(), at)
}
