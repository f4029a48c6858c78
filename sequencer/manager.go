package sequencer

import (
	"sync"
	"time"

	"go-looper/debug"
	"go-looper/midi"
)

// Options configure a Manager
type Options struct {
	Synth    Synth
	Clock    Clock // nil = SystemClock
	Limits   VoiceLimits
	Channels int
	Tempo    float64
	Presets  []Instrument
	FPS      int // UI refresh rate while playing
}

// Manager wires the recorder, the composer and the engine together and
// routes keyboard input to them.
type Manager struct {
	Store    *Store
	Grid     *Grid
	Tempo    *Tempo
	Engine   *Engine
	Recorder *Recorder
	Composer *Composer
	IDs      *midi.NoteIDs

	mu        sync.RWMutex
	presetIdx int // -1 = default timbre
	dirty     bool
	fps       int
	pads      map[string]*padSurface

	midiInputChan chan midi.NoteEvent
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager builds the whole playback graph
func NewManager(opts Options) *Manager {
	if opts.Channels < 1 {
		opts.Channels = 5
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Presets == nil {
		opts.Presets = DefaultPresets()
	}

	store := NewStore(opts.Presets)
	voices := NewVoiceCache(opts.Synth, opts.Limits)
	engine := NewEngine(store, voices, opts.Clock)
	tempo := NewTempo(opts.Tempo)
	ids := &midi.NoteIDs{}
	grid := NewGrid(opts.Channels)

	m := &Manager{
		Store:         store,
		Grid:          grid,
		Tempo:         tempo,
		Engine:        engine,
		Recorder:      NewRecorder(store, tempo, engine, ids),
		Composer:      NewComposer(grid, store, tempo, engine),
		IDs:           ids,
		presetIdx:     -1,
		fps:           opts.FPS,
		pads:          make(map[string]*padSurface),
		midiInputChan: make(chan midi.NoteEvent, 32),
		stopChan:      make(chan struct{}),
		UpdateChan:    make(chan struct{}, 1),
	}

	tempo.OnChange(func(bpm float64) {
		// only a running transport needs re-pacing; Start reads Tempo anyway
		if engine.Mode() != ModeStopped {
			engine.SetTempo(bpm)
		}
		m.markDirty()
	})
	engine.OnModeChange(func(Mode) { m.markDirty() })
	grid.Subscribe(m.markDirty)

	if len(opts.Presets) > 0 {
		m.SelectPreset(0)
	}
	return m
}

// StartRuntime starts the input and UI refresh goroutines (called once)
func (m *Manager) StartRuntime() {
	m.wg.Add(2)
	go m.midiInputLoop()
	go m.uiLoop()
}

// AddController forwards a keyboard's notes into the manager until the
// controller closes its channel or the manager shuts down. Pad surfaces
// also drive the arrangement and mirror it on their LEDs.
func (m *Manager) AddController(c midi.Controller) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.stopChan:
				return
			case ev, ok := <-c.NoteEvents():
				if !ok {
					debug.Log("midi", "controller %s closed", c.ID())
					return
				}
				m.enqueue(ev)
			}
		}
	}()

	if ps, ok := c.(midi.PadSurface); ok {
		m.addPadSurface(ps)
	}
	debug.Log("midi", "controller %s (%s) attached", c.ID(), c.Type())
}

func (m *Manager) addPadSurface(ps midi.PadSurface) {
	m.mu.Lock()
	m.pads[ps.ID()] = &padSurface{dev: ps}
	m.dirty = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			if s, ok := m.pads[ps.ID()]; ok && s.dev == ps {
				delete(m.pads, ps.ID())
			}
			m.mu.Unlock()
		}()
		for {
			select {
			case <-m.stopChan:
				return
			case ev, ok := <-ps.PadEvents():
				if !ok {
					return
				}
				m.HandlePad(ev.Row, ev.Col)
			}
		}
	}()
}

// PressKey plays note from the computer keyboard
func (m *Manager) PressKey(note uint8) {
	m.enqueue(m.IDs.Stamp(midi.NoteEvent{Note: note, Velocity: 100}))
}

func (m *Manager) enqueue(ev midi.NoteEvent) {
	select {
	case m.midiInputChan <- ev:
	case <-m.stopChan:
	default:
		debug.Log("midi", "input queue full, dropped note %d", ev.Note)
	}
}

// midiInputLoop consumes keyboard input in arrival order
func (m *Manager) midiInputLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopChan:
			return
		case ev := <-m.midiInputChan:
			m.HandleNote(ev)
		}
	}
}

// HandleNote sounds the note immediately and offers it to the recorder
func (m *Manager) HandleNote(ev midi.NoteEvent) {
	m.Engine.Audition(ev.Note, m.Recorder.Instrument())
	if m.Recorder.HandleNote(ev) {
		m.markDirty()
	}
}

// uiLoop throttles TUI refreshes to the configured FPS; while anything
// plays it refreshes every frame so the playhead moves.
func (m *Manager) uiLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(time.Second / time.Duration(m.fps))
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.mu.Lock()
			dirty := m.dirty
			m.dirty = false
			m.mu.Unlock()

			if dirty || m.Engine.Mode() != ModeStopped {
				m.notify()
				m.refreshPads()
			}
		}
	}
}

func (m *Manager) markDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

func (m *Manager) notify() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// Preset returns the selected preset, nil for the default timbre
func (m *Manager) Preset() *Instrument {
	m.mu.RLock()
	idx := m.presetIdx
	m.mu.RUnlock()
	presets := m.Store.Presets()
	if idx < 0 || idx >= len(presets) {
		return nil
	}
	return &presets[idx]
}

// PresetIndex is the selected preset's position, -1 for the default timbre
func (m *Manager) PresetIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.presetIdx
}

// SelectPreset makes preset i the recording instrument
func (m *Manager) SelectPreset(i int) bool {
	presets := m.Store.Presets()
	if i < 0 || i >= len(presets) {
		return false
	}
	m.mu.Lock()
	m.presetIdx = i
	m.mu.Unlock()
	m.Recorder.SetInstrument(&presets[i])
	debug.Log("rec", "instrument %s", presets[i])
	m.markDirty()
	return true
}

// CyclePreset moves the preset selection by delta, wrapping
func (m *Manager) CyclePreset(delta int) {
	n := len(m.Store.Presets())
	if n == 0 {
		return
	}
	idx := m.PresetIndex()
	if idx < 0 {
		idx = 0
	} else {
		idx = ((idx+delta)%n + n) % n
	}
	m.SelectPreset(idx)
}

// Commit stores the recorded pattern and selects it for placement
func (m *Manager) Commit() *Loop {
	l := m.Recorder.Commit()
	m.Composer.SelectLoop(l.ID)
	m.markDirty()
	return l
}

// PlaceDraft puts the uncommitted pattern at the grid cursor as an
// inline loop, leaving the store alone. Later recording does not change
// the placed copy.
func (m *Manager) PlaceDraft() bool {
	notes := m.Recorder.State().Notes
	if notes.Empty() {
		return false
	}
	ch, slot := m.Grid.Selection()
	return m.Grid.PlaceInline(ch, slot, &Loop{ID: draftLoopID, Notes: notes, BPM: m.Tempo.BPM()})
}

const draftLoopID = "draft"

// Playhead locates composition playback in the arrangement being
// played, which may differ from the live grid after edits.
type Playhead struct {
	Slot     int // -1 when the composition is stopped
	Step     int
	sounding []bool
}

// Sounding reports whether channel ch has a note at the playhead
func (p Playhead) Sounding(ch int) bool {
	return ch >= 0 && ch < len(p.sounding) && p.sounding[ch]
}

// Playhead reads the current composition position
func (m *Manager) Playhead() Playhead {
	ph := Playhead{Slot: -1}
	step := m.Composer.PlayingStep()
	channels, longest := m.Engine.Composition()
	if step < 0 || longest == 0 {
		return ph
	}

	g := step % longest
	ph.Slot, ph.Step = g/StepsPerLoop, g%StepsPerLoop
	ph.sounding = make([]bool, len(channels))
	for i, ch := range channels {
		if ph.Slot >= len(ch.Slots) {
			continue
		}
		if l := m.Store.Resolve(ch.Slots[ph.Slot]); l != nil && l.Notes[ph.Step] != nil {
			ph.sounding[i] = true
		}
	}
	return ph
}

// Close stops playback and input, then releases every voice
func (m *Manager) Close() error {
	var err error
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		err = m.Engine.Close()
	})
	return err
}
