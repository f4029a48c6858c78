package sequencer

import (
	"sort"
	"sync"
	"time"
)

// manualClock only moves when Advance is called. Due timers fire
// synchronously, in order, on the caller's goroutine.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing every timer that comes due
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		t := due[0]
		t.fired = true
		if t.at.After(c.now) {
			c.now = t.at
		}
		c.mu.Unlock()
		t.f()
	}
}

// Pending counts timers that may still fire
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Runs a timer that was already handed to the transport, even if it was
// stopped, to simulate a callback racing with Stop.
func (c *manualClock) fireStale(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.f()
}

// recordingSynth remembers every voice built and every trigger played
type recordingSynth struct {
	mu       sync.Mutex
	voices   []*recordingVoice
	triggers []playedNote
	fail     error
}

type playedNote struct {
	Key VoiceKey
	Trigger
}

type recordingVoice struct {
	s      *recordingSynth
	key    VoiceKey
	closes int
}

func (s *recordingSynth) NewVoice(key VoiceKey) (VoiceOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	v := &recordingVoice{s: s, key: key}
	s.voices = append(s.voices, v)
	return v, nil
}

func (v *recordingVoice) Play(tr Trigger) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.triggers = append(v.s.triggers, playedNote{Key: v.key, Trigger: tr})
}

func (v *recordingVoice) Close() error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.closes++
	return nil
}

func (s *recordingSynth) played() []playedNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]playedNote(nil), s.triggers...)
}

func (s *recordingSynth) notes() []uint8 {
	var out []uint8
	for _, p := range s.played() {
		out = append(out, p.Note)
	}
	return out
}

func (s *recordingSynth) reset() {
	s.mu.Lock()
	s.triggers = nil
	s.mu.Unlock()
}
