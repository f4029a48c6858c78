package sequencer

import (
	"sync"
	"sync/atomic"

	"go-looper/debug"
	"go-looper/midi"
)

// Previewer plays a single pattern. *Engine implements it.
type Previewer interface {
	PlayPreview(pattern Pattern, bpm float64, onStep func(int)) bool
	StopPreview()
	Mode() Mode
}

// IDSource reports the newest note identity handed out so far
type IDSource interface {
	LastID() uint64
}

// RecorderState is a snapshot for display
type RecorderState struct {
	Recording   bool
	Playing     bool
	CurrentStep int // next slot to write
	ActiveStep  int // preview playhead, -1 when not playing
	Notes       Pattern
	Instrument  *Instrument
}

// Recorder captures keyboard notes into an 8-step pattern and commits
// finished patterns to the store as loops.
//
// Recording and preview playback are separate flags; starting preview
// always turns recording off. The playing flag is not stored here, it
// is whatever the engine is doing.
type Recorder struct {
	store  *Store
	tempo  *Tempo
	player Previewer
	ids    IDSource

	mu         sync.Mutex
	recording  bool
	step       int
	notes      Pattern
	instrument *Instrument

	// identities at or below floor are stale; seen holds the ones above
	// it already handled, since events from different inputs can arrive
	// out of stamp order
	floor uint64
	seen  map[uint64]struct{}

	active atomic.Int64
}

// NewRecorder creates an armed recorder (recording, empty pattern)
func NewRecorder(store *Store, tempo *Tempo, player Previewer, ids IDSource) *Recorder {
	r := &Recorder{
		store:     store,
		tempo:     tempo,
		player:    player,
		ids:       ids,
		recording: true,
		seen:      make(map[uint64]struct{}),
	}
	r.active.Store(-1)
	return r
}

// State returns a snapshot
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	playing := r.playingLocked()
	active := -1
	if playing {
		active = int(r.active.Load())
	}
	return RecorderState{
		Recording:   r.recording,
		Playing:     playing,
		CurrentStep: r.step,
		ActiveStep:  active,
		Notes:       r.notes,
		Instrument:  r.instrument,
	}
}

func (r *Recorder) playingLocked() bool {
	return r.player.Mode() == ModePreview
}

// SetInstrument selects the timbre captured by later notes. inst is
// copied; nil means the default timbre.
func (r *Recorder) SetInstrument(inst *Instrument) {
	r.mu.Lock()
	r.instrument = Snapshot(inst)
	r.mu.Unlock()
}

// Instrument returns the current timbre (nil = default)
func (r *Recorder) Instrument() *Instrument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instrument
}

// ToggleRecord arms or disarms recording. Arming rewinds to the first
// slot, stops preview and ignores any note issued before this moment.
func (r *Recorder) ToggleRecord() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recording = !r.recording
	if r.recording {
		r.step = 0
		r.consumeLocked()
		r.player.StopPreview()
	}
	debug.Log("rec", "recording=%v", r.recording)
}

// seenWindow bounds how many handled identities are remembered above
// the floor
const seenWindow = 64

// consumeLocked marks every identity issued so far as stale
func (r *Recorder) consumeLocked() {
	if r.ids == nil {
		return
	}
	r.raiseFloorLocked(r.ids.LastID())
}

func (r *Recorder) raiseFloorLocked(floor uint64) {
	if floor <= r.floor {
		return
	}
	r.floor = floor
	for id := range r.seen {
		if id <= floor {
			delete(r.seen, id)
		}
	}
}

// markSeenLocked reports whether id is new and remembers it
func (r *Recorder) markSeenLocked(id uint64) bool {
	if id == 0 || id <= r.floor {
		return false
	}
	if _, dup := r.seen[id]; dup {
		return false
	}
	r.seen[id] = struct{}{}
	if len(r.seen) > seenWindow {
		oldest := id
		for s := range r.seen {
			oldest = min(oldest, s)
		}
		r.raiseFloorLocked(oldest)
	}
	return true
}

// HandleNote records ev into the next slot. Events without an identity,
// already-seen identities, and events while not recording or with a
// full pattern are ignored. Reports whether a slot was written.
func (r *Recorder) HandleNote(ev midi.NoteEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.markSeenLocked(ev.ID) {
		return false
	}

	if !r.recording || r.step >= StepsPerLoop {
		return false
	}
	r.notes[r.step] = NewStep(ev.Note, r.instrument)
	debug.Log("rec", "note %d -> slot %d", ev.Note, r.step)
	r.step++
	return true
}

// Skip leaves the current slot silent and moves on
func (r *Recorder) Skip() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.step >= StepsPerLoop {
		return false
	}
	r.notes[r.step] = nil
	r.step++
	return true
}

// DeleteLast clears the previous slot and steps back onto it
func (r *Recorder) DeleteLast() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.step == 0 {
		return false
	}
	r.step--
	r.notes[r.step] = nil
	return true
}

// DeleteAll clears the pattern and re-arms recording from slot 0
func (r *Recorder) DeleteAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = Pattern{}
	r.step = 0
	r.recording = true
	r.consumeLocked()
	r.player.StopPreview()
	debug.Log("rec", "cleared")
}

// Commit stores the pattern as a loop at the current tempo and resets
// to an empty, armed pattern.
func (r *Recorder) Commit() *Loop {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.store.AddLoop(r.notes, r.tempo.BPM())
	r.notes = Pattern{}
	r.step = 0
	r.recording = true
	r.consumeLocked()
	r.player.StopPreview()
	return l
}

// PlayPause toggles preview of the recorded pattern. Recording is turned
// off either way. An all-silent pattern changes nothing.
func (r *Recorder) PlayPause() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.notes.Empty() {
		return false
	}
	r.recording = false

	if r.playingLocked() {
		r.player.StopPreview()
		return true
	}
	r.active.Store(-1)
	return r.player.PlayPreview(r.notes, r.tempo.BPM(), func(step int) {
		r.active.Store(int64(step))
	})
}
