package sequencer

import (
	"testing"
	"time"

	"go-looper/midi"
)

func newTestManager() (*Manager, *manualClock, *recordingSynth) {
	clock := newManualClock()
	synth := &recordingSynth{}
	m := NewManager(Options{
		Synth:    synth,
		Clock:    clock,
		Channels: 5,
		Tempo:    120,
	})
	return m, clock, synth
}

func TestManagerDefaults(t *testing.T) {
	m, _, _ := newTestManager()
	if m.Grid.NumChannels() != 5 {
		t.Fatalf("channels = %d", m.Grid.NumChannels())
	}
	if m.PresetIndex() != 0 || m.Preset() == nil {
		t.Fatal("first preset should be selected")
	}
	if m.Recorder.Instrument().ID != m.Preset().ID {
		t.Fatal("recorder instrument does not follow the preset")
	}
}

func TestManagerNoteRecordsAndAuditions(t *testing.T) {
	m, _, synth := newTestManager()

	m.HandleNote(m.IDs.Stamp(midi.NoteEvent{Note: 60}))
	if got := synth.notes(); len(got) != 1 || got[0] != 60 {
		t.Fatalf("audition = %v", got)
	}
	if st := m.Recorder.State(); st.CurrentStep != 1 || st.Notes[0].Instrument.ID != m.Preset().ID {
		t.Fatalf("recorder state %+v", st)
	}
}

func TestManagerRecordCommitCompose(t *testing.T) {
	m, clock, synth := newTestManager()

	for _, n := range []uint8{60, 62, 64} {
		m.HandleNote(m.IDs.Stamp(midi.NoteEvent{Note: n}))
	}
	l := m.Commit()
	if m.Composer.SelectedLoop() != l.ID {
		t.Fatal("committed loop not selected")
	}

	m.Grid.Select(0, 0)
	m.Composer.PlaceSelected()
	m.Grid.Select(1, 1)
	m.Composer.PlaceSelected()

	synth.reset()
	m.Composer.Play()
	clock.Advance(15 * 250 * time.Millisecond)

	// channel 0 plays g=0..2, channel 1 plays g=8..10
	want := []uint8{60, 62, 64, 60, 62, 64}
	got := synth.notes()
	if len(got) != len(want) {
		t.Fatalf("notes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notes = %v, want %v", got, want)
		}
	}

	m.Tempo.Set(150)
	if m.Engine.Transport().BPM != 150 {
		t.Fatal("tempo change did not reach the running transport")
	}
}

func TestManagerCyclePreset(t *testing.T) {
	m, _, _ := newTestManager()
	n := len(m.Store.Presets())

	m.CyclePreset(-1)
	if m.PresetIndex() != n-1 {
		t.Fatalf("preset index = %d, want %d", m.PresetIndex(), n-1)
	}
	m.CyclePreset(1)
	if m.PresetIndex() != 0 {
		t.Fatalf("preset index = %d, want 0", m.PresetIndex())
	}
	if m.SelectPreset(n) {
		t.Fatal("out of range preset selected")
	}
}

type chanController struct {
	ch chan midi.NoteEvent
}

func (c *chanController) ID() string                        { return "test" }
func (c *chanController) Type() midi.ControllerType         { return midi.ControllerKeyboard }
func (c *chanController) NoteEvents() <-chan midi.NoteEvent { return c.ch }
func (c *chanController) Close() error                      { close(c.ch); return nil }

func TestManagerRuntimeRoutesControllerNotes(t *testing.T) {
	m, _, _ := newTestManager()
	m.StartRuntime()

	ctrl := &chanController{ch: make(chan midi.NoteEvent, 1)}
	m.AddController(ctrl)
	ctrl.ch <- m.IDs.Stamp(midi.NoteEvent{Note: 65})

	deadline := time.After(2 * time.Second)
	for m.Recorder.State().CurrentStep == 0 {
		select {
		case <-deadline:
			t.Fatal("controller note never reached the recorder")
		case <-m.UpdateChan:
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close = %v", err)
	}
}

func TestPlaceDraftIsInline(t *testing.T) {
	m, clock, synth := newTestManager()
	if m.PlaceDraft() {
		t.Fatal("empty pattern placed")
	}

	m.HandleNote(m.IDs.Stamp(midi.NoteEvent{Note: 67}))
	m.Grid.Select(2, 1)
	if !m.PlaceDraft() {
		t.Fatal("draft not placed")
	}
	if n := len(m.Store.Loops()); n != 0 {
		t.Fatalf("draft reached the store: %d loops", n)
	}

	m.Recorder.DeleteAll() // the placed copy must not follow the recorder
	ch, _ := m.Grid.Channel(2)
	if len(ch.Slots) != 2 || ch.Slots[1] == nil || ch.Slots[1].Inline == nil {
		t.Fatalf("slots = %+v", ch.Slots)
	}

	synth.reset()
	m.Composer.Play()
	clock.Advance(8 * 250 * time.Millisecond) // step 8 = slot 1, step 0
	if got := synth.notes(); len(got) != 1 || got[0] != 67 {
		t.Fatalf("notes = %v, want the inline loop's 67", got)
	}
}

func TestPlayheadFollowsPlayingSnapshot(t *testing.T) {
	m, clock, _ := newTestManager()
	if ph := m.Playhead(); ph.Slot != -1 || ph.Sounding(0) {
		t.Fatalf("stopped playhead = %+v", ph)
	}

	l := commitLoop(m, 60) // note on step 0 only
	m.Grid.PlaceLoopAtSlot(0, 0, l.ID)
	m.Composer.Play()
	clock.Advance(0)

	// lengthen the live grid to 16 steps; playback still wraps at 8
	m.Grid.PlaceLoopAtSlot(1, 1, l.ID)
	clock.Advance(8 * 250 * time.Millisecond)

	ph := m.Playhead()
	if ph.Slot != 0 || ph.Step != 0 {
		t.Fatalf("playhead at slot %d step %d, want 0/0", ph.Slot, ph.Step)
	}
	if !ph.Sounding(0) || ph.Sounding(1) {
		t.Fatal("sounding channels do not match the playing arrangement")
	}

	f := m.padFrame()
	if f[7][0] != ledPlayhead || f[6][1] != ledLoop {
		t.Fatal("pad LEDs follow the edited grid instead of playback")
	}
}
