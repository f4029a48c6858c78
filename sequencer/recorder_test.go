package sequencer

import (
	"testing"
	"time"

	"go-looper/midi"
)

type recorderRig struct {
	rec    *Recorder
	engine *Engine
	store  *Store
	tempo  *Tempo
	ids    *midi.NoteIDs
	clock  *manualClock
	synth  *recordingSynth
}

func newRecorderRig() *recorderRig {
	engine, store, clock, synth := newTestEngine()
	ids := &midi.NoteIDs{}
	tempo := NewTempo(120)
	return &recorderRig{
		rec:    NewRecorder(store, tempo, engine, ids),
		engine: engine,
		store:  store,
		tempo:  tempo,
		ids:    ids,
		clock:  clock,
		synth:  synth,
	}
}

func (r *recorderRig) press(note uint8) bool {
	return r.rec.HandleNote(r.ids.Stamp(midi.NoteEvent{Note: note, Velocity: 100}))
}

func slotNotes(p Pattern) []int {
	out := make([]int, len(p))
	for i, s := range p {
		if s != nil {
			out[i] = int(s.Note)
		}
	}
	return out
}

func TestRecorderStartsArmed(t *testing.T) {
	r := newRecorderRig()
	st := r.rec.State()
	if !st.Recording || st.Playing || st.CurrentStep != 0 || st.ActiveStep != -1 || !st.Notes.Empty() {
		t.Fatalf("unexpected initial state %+v", st)
	}
}

func TestRecordSkipDelete(t *testing.T) {
	r := newRecorderRig()

	r.press(60)
	r.rec.Skip()
	r.press(64)
	r.press(67)
	r.rec.DeleteLast()

	st := r.rec.State()
	if got := slotNotes(st.Notes); got[0] != 60 || got[1] != 0 || got[2] != 64 || got[3] != 0 {
		t.Fatalf("slots = %v", got)
	}
	if st.CurrentStep != 3 {
		t.Fatalf("current step = %d, want 3", st.CurrentStep)
	}
}

func TestDeleteLastAtStartIsNoop(t *testing.T) {
	r := newRecorderRig()
	if r.rec.DeleteLast() {
		t.Fatal("DeleteLast at step 0 reported a change")
	}
	if r.rec.State().CurrentStep != 0 {
		t.Fatal("step moved")
	}
}

func TestRecorderIgnoresDuplicateAndAnonymousEvents(t *testing.T) {
	r := newRecorderRig()

	ev := r.ids.Stamp(midi.NoteEvent{Note: 60})
	if !r.rec.HandleNote(ev) {
		t.Fatal("first delivery should record")
	}
	if r.rec.HandleNote(ev) {
		t.Fatal("redelivered event recorded twice")
	}
	if r.rec.HandleNote(midi.NoteEvent{Note: 61}) {
		t.Fatal("event without identity recorded")
	}
	if st := r.rec.State(); st.CurrentStep != 1 {
		t.Fatalf("current step = %d, want 1", st.CurrentStep)
	}
}

func TestRecorderAcceptsOutOfOrderIdentities(t *testing.T) {
	r := newRecorderRig()

	// two inputs stamp A then B, but B is handled first
	a := r.ids.Stamp(midi.NoteEvent{Note: 60})
	b := r.ids.Stamp(midi.NoteEvent{Note: 64})
	if !r.rec.HandleNote(b) {
		t.Fatal("B not recorded")
	}
	if !r.rec.HandleNote(a) {
		t.Fatal("earlier-stamped A dropped as a duplicate")
	}
	if r.rec.HandleNote(a) || r.rec.HandleNote(b) {
		t.Fatal("redelivery recorded")
	}

	st := r.rec.State()
	if got := slotNotes(st.Notes); got[0] != 64 || got[1] != 60 || st.CurrentStep != 2 {
		t.Fatalf("slots = %v, step %d", got, st.CurrentStep)
	}
}

func TestRecorderSeenWindowStaysBounded(t *testing.T) {
	r := newRecorderRig()
	r.rec.ToggleRecord() // off, notes are still deduped

	first := r.ids.Stamp(midi.NoteEvent{Note: 60})
	r.rec.HandleNote(first)
	for i := 0; i < 2*seenWindow; i++ {
		r.press(60)
	}

	r.rec.mu.Lock()
	n := len(r.rec.seen)
	r.rec.mu.Unlock()
	if n > seenWindow {
		t.Fatalf("remembering %d identities, want at most %d", n, seenWindow)
	}
	if r.rec.HandleNote(first) {
		t.Fatal("identity that fell out of the window was accepted")
	}
}

func TestArmingConsumesInFlightEvents(t *testing.T) {
	r := newRecorderRig()
	r.rec.ToggleRecord() // off

	inFlight := r.ids.Stamp(midi.NoteEvent{Note: 50})
	r.rec.ToggleRecord() // on again

	if r.rec.HandleNote(inFlight) {
		t.Fatal("event issued before arming was recorded")
	}
	if !r.press(52) {
		t.Fatal("fresh event after arming not recorded")
	}
	if got := slotNotes(r.rec.State().Notes); got[0] != 52 {
		t.Fatalf("slot 0 = %d, want 52", got[0])
	}
}

func TestNotRecordingIgnoresNotes(t *testing.T) {
	r := newRecorderRig()
	r.rec.ToggleRecord()
	if r.press(60) {
		t.Fatal("recorded while idle")
	}
	if !r.rec.State().Notes.Empty() {
		t.Fatal("pattern changed while idle")
	}
}

func TestFullPatternIgnoresNotes(t *testing.T) {
	r := newRecorderRig()
	for i := 0; i < StepsPerLoop; i++ {
		r.press(uint8(60 + i))
	}
	if r.press(90) || r.rec.Skip() {
		t.Fatal("ninth input changed a full pattern")
	}
	st := r.rec.State()
	if st.CurrentStep != StepsPerLoop || st.Notes[7].Note != 67 {
		t.Fatalf("unexpected full state %+v", st)
	}
}

func TestCapturedInstrumentIsACopy(t *testing.T) {
	r := newRecorderRig()
	inst := &Instrument{ID: "lead", Waveform: Square, Gain: 0.5}
	r.rec.SetInstrument(inst)
	r.press(60)

	inst.Waveform = Triangle
	r.rec.SetInstrument(inst)
	r.press(62)

	notes := r.rec.State().Notes
	if notes[0].Instrument.Waveform != Square || notes[1].Instrument.Waveform != Triangle {
		t.Fatalf("captured waveforms %s, %s", notes[0].Instrument.Waveform, notes[1].Instrument.Waveform)
	}
}

func TestPlayPauseEmptyIsNoop(t *testing.T) {
	r := newRecorderRig()
	if r.rec.PlayPause() {
		t.Fatal("empty pattern started preview")
	}
	st := r.rec.State()
	if !st.Recording || st.Playing {
		t.Fatalf("state changed: %+v", st)
	}
}

func TestPlayPauseTogglesPreview(t *testing.T) {
	r := newRecorderRig()
	r.press(60)
	r.press(62)

	if !r.rec.PlayPause() {
		t.Fatal("preview did not start")
	}
	st := r.rec.State()
	if st.Recording || !st.Playing {
		t.Fatalf("after play: %+v", st)
	}

	r.clock.Advance(250 * time.Millisecond)
	if got := r.rec.State().ActiveStep; got != 1 {
		t.Fatalf("active step = %d, want 1", got)
	}
	if got := r.synth.notes(); len(got) != 2 || got[0] != 60 || got[1] != 62 {
		t.Fatalf("preview played %v", got)
	}

	r.rec.PlayPause()
	st = r.rec.State()
	if st.Playing || st.ActiveStep != -1 {
		t.Fatalf("after pause: %+v", st)
	}
}

func TestTempoChangeReachesPreview(t *testing.T) {
	r := newRecorderRig()
	r.tempo.OnChange(r.engine.SetTempo)
	r.press(60)
	r.rec.PlayPause()

	r.tempo.Set(150)
	if got := r.engine.Transport().BPM; got != 150 {
		t.Fatalf("transport bpm = %v, want 150", got)
	}
}

func TestCommitStoresAndResets(t *testing.T) {
	r := newRecorderRig()
	r.press(60)
	r.rec.Skip()
	r.press(64)
	r.rec.PlayPause()
	r.tempo.Set(140)

	l := r.rec.Commit()
	if l.ID != "loop-1" || l.BPM != 140 {
		t.Fatalf("unexpected loop %+v", l)
	}
	if got := slotNotes(l.Notes); got[0] != 60 || got[1] != 0 || got[2] != 64 {
		t.Fatalf("committed slots %v", got)
	}
	if stored, ok := r.store.Loop(l.ID); !ok || stored != l {
		t.Fatal("loop not in store")
	}

	st := r.rec.State()
	if !st.Recording || st.Playing || st.CurrentStep != 0 || !st.Notes.Empty() {
		t.Fatalf("not reset after commit: %+v", st)
	}

	// the stored loop is unaffected by further recording
	r.press(70)
	if l.Notes[0].Note != 60 {
		t.Fatal("recording changed a committed loop")
	}
}

func TestDeleteAllRearms(t *testing.T) {
	r := newRecorderRig()
	r.press(60)
	r.rec.PlayPause()

	r.rec.DeleteAll()
	st := r.rec.State()
	if !st.Recording || st.Playing || st.CurrentStep != 0 || !st.Notes.Empty() {
		t.Fatalf("unexpected state after delete all: %+v", st)
	}
	if r.engine.Mode() != ModeStopped {
		t.Fatal("preview still running")
	}
}
