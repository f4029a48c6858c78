package sequencer

import (
	"math"
	"sync"
	"time"

	"go-looper/debug"
)

const (
	// DefaultBPM replaces a tempo that is not a positive number
	DefaultBPM = 86.0
	// MaxBPM is the fastest tempo the transport will run
	MaxBPM = 300.0
	// StepsPerBeat: one transport step is an eighth note
	StepsPerBeat = 2
)

// SanitizeBPM maps invalid tempos to DefaultBPM and caps at MaxBPM
func SanitizeBPM(bpm float64) float64 {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return DefaultBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// StepPeriod is the time between steps at bpm (60 / (bpm*2) seconds)
func StepPeriod(bpm float64) time.Duration {
	bpm = SanitizeBPM(bpm)
	return time.Duration(float64(time.Minute) / (bpm * StepsPerBeat))
}

// Tick is one transport step
type Tick struct {
	Run  uint64    // which Start this tick belongs to
	Step int64     // steps since Start, from 0
	At   time.Time // scheduled time of the step, not the time it fired
	BPM  float64
}

// TransportState is a snapshot for display and tests
type TransportState struct {
	Running bool
	BPM     float64
	Step    int64 // next step to fire
}

// Transport is the step clock. It keeps exactly one timer pending while
// running and delivers ticks one at a time.
//
// Every scheduled timer carries a handle; a timer whose handle is no
// longer current (because of Stop, Start or SetTempo) does nothing.
type Transport struct {
	clock Clock

	mu      sync.Mutex
	running bool
	bpm     float64
	step    int64
	run     uint64
	handle  uint64
	timer   Timer
	next    time.Time // when the pending tick is due
	last    time.Time // when the previous tick was due
	onStep  func(Tick)

	tickMu sync.Mutex // held while a tick is delivered
}

// NewTransport creates a stopped transport. A nil clock means SystemClock.
func NewTransport(clock Clock) *Transport {
	if clock == nil {
		clock = SystemClock()
	}
	return &Transport{clock: clock, bpm: DefaultBPM}
}

// OnStep sets the tick callback. It runs on the timer goroutine and may
// call Start, Stop or SetTempo.
func (t *Transport) OnStep(fn func(Tick)) {
	t.mu.Lock()
	t.onStep = fn
	t.mu.Unlock()
}

// Start begins ticking at bpm with the first tick due now. A running
// transport is stopped first. Returns the run id carried by its ticks.
func (t *Transport) Start(bpm float64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.bpm = SanitizeBPM(bpm)
	t.running = true
	t.step = 0
	t.run++
	t.next = t.clock.Now()
	t.last = time.Time{}
	t.scheduleLocked()

	debug.Log("transport", "start run=%d bpm=%.1f period=%v", t.run, t.bpm, StepPeriod(t.bpm))
	return t.run
}

// Stop halts the transport. Safe to call when stopped.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		debug.Log("transport", "stop run=%d at step %d", t.run, t.step)
	}
	t.stopLocked()
}

func (t *Transport) stopLocked() {
	t.running = false
	t.handle++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// SetTempo changes the tempo. While running the pending tick is re-paced
// from the previous tick; the step count is kept.
func (t *Transport) SetTempo(bpm float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bpm = SanitizeBPM(bpm)
	if bpm == t.bpm {
		return
	}
	t.bpm = bpm
	if !t.running {
		return
	}
	if !t.last.IsZero() {
		t.next = t.last.Add(StepPeriod(bpm))
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.scheduleLocked()
	debug.Log("transport", "tempo %.1f at step %d", bpm, t.step)
}

// State returns a snapshot
func (t *Transport) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TransportState{Running: t.running, BPM: t.bpm, Step: t.step}
}

// Quiesce waits for a tick that is being delivered to finish
func (t *Transport) Quiesce() {
	t.tickMu.Lock()
	t.tickMu.Unlock()
}

func (t *Transport) scheduleLocked() {
	t.handle++
	h := t.handle

	now := t.clock.Now()
	period := StepPeriod(t.bpm)
	// Fell behind by more than a step (sleep, debugger): drop the
	// missed steps rather than firing them in a burst.
	if now.Sub(t.next) > period {
		t.next = now
	}
	delay := t.next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	t.timer = t.clock.AfterFunc(delay, func() { t.fire(h) })
}

func (t *Transport) fire(h uint64) {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	t.mu.Lock()
	if !t.running || h != t.handle {
		t.mu.Unlock()
		return
	}
	tick := Tick{Run: t.run, Step: t.step, At: t.next, BPM: t.bpm}
	t.step++
	t.last = t.next
	t.next = t.next.Add(StepPeriod(t.bpm))
	t.scheduleLocked()
	fn := t.onStep
	t.mu.Unlock()

	debug.LogEvery(32, "transport", "tick run=%d step=%d", tick.Run, tick.Step)
	if fn != nil {
		fn(tick)
	}
}
