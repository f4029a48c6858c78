package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-looper/midi"
	"go-looper/sequencer"
	"go-looper/theme"
	"go-looper/widgets"
)

const (
	baseOctave = 4
	maxShift   = 2
	minColumns = 8
)

// pianoKeys maps the home row to semitones above C, black keys above
var pianoKeys = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5,
	"t": 6, "g": 7, "y": 8, "h": 9, "u": 10, "j": 11,
}

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // nil when auto-connect is off
	Theme     *theme.Theme
	quitting  bool
	octave    int // shift from baseOctave
	devices   map[string]bool
	status    string
	showHelp  bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
		devices:   make(map[string]bool),
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Manager),
		ListenForDevices(m.DeviceMgr),
	)
}

// noteFor returns the MIDI note for a piano key at the current octave
func (m Model) noteFor(key string) (uint8, bool) {
	semi, ok := pianoKeys[key]
	if !ok {
		return 0, false
	}
	note := 12*(baseOctave+m.octave+1) + semi
	if note < 0 || note > 127 {
		return 0, false
	}
	return uint8(note), true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.devices[event.ID] = true
			m.Manager.AddController(event.Controller)
			m.status = "connected " + event.ID
		case midi.DeviceDisconnected:
			delete(m.devices, event.ID)
			m.status = "disconnected " + event.ID
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	mgr := m.Manager

	if note, ok := m.noteFor(key); ok {
		mgr.PressKey(note)
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		mgr.Engine.Stop()
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp

	// Octave
	case "z":
		if m.octave > -maxShift {
			m.octave--
		}
	case "x":
		if m.octave < maxShift {
			m.octave++
		}

	// Recorder
	case "r":
		mgr.Recorder.ToggleRecord()
	case " ":
		mgr.Recorder.PlayPause()
	case ".":
		mgr.Recorder.Skip()
	case "backspace":
		mgr.Recorder.DeleteLast()
	case "X":
		mgr.Recorder.DeleteAll()
	case "enter":
		l := mgr.Commit()
		m.status = "saved " + l.ID

	// Composer
	case "p":
		mgr.Composer.Toggle()
	case "up":
		mgr.Grid.MoveSelection(-1, 0)
	case "down":
		mgr.Grid.MoveSelection(1, 0)
	case "left":
		mgr.Grid.MoveSelection(0, -1)
	case "right":
		mgr.Grid.MoveSelection(0, 1)
	case "[":
		mgr.Composer.CycleLoop(-1)
	case "]":
		mgr.Composer.CycleLoop(1)
	case "l":
		if !mgr.Composer.PlaceSelected() {
			m.status = "nothing to place"
		}
	case "i":
		if !mgr.PlaceDraft() {
			m.status = "nothing recorded"
		}
	case "L":
		if !mgr.Composer.AppendSelected() {
			m.status = "nothing to append"
		}
	case "delete", "D":
		mgr.Composer.DeleteSelected()

	// Shared
	case "+", "=":
		mgr.Tempo.Nudge(1)
	case "-", "_":
		mgr.Tempo.Nudge(-1)
	case "<", ",":
		mgr.CyclePreset(-1)
	case ">":
		mgr.CyclePreset(1)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		mgr.SelectPreset(int(key[0] - '1'))
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := m.Theme.Fg(theme.RoleAccent).Bold(true)
	labelStyle := m.Theme.Fg(theme.RoleFG)
	dimStyle := m.Theme.Fg(theme.RoleMuted)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.header()))
	out.WriteString("\n\n")

	out.WriteString(labelStyle.Render("Looper"))
	out.WriteString("\n")
	out.WriteString(m.tiles())
	out.WriteString("\n")
	out.WriteString(m.legend())
	out.WriteString("\n")
	out.WriteString(m.presets())
	out.WriteString("\n\n")

	out.WriteString(labelStyle.Render("Composer"))
	out.WriteString("\n")
	out.WriteString(m.grid())
	out.WriteString("\n")
	out.WriteString(m.loops())
	out.WriteString("\n\n")

	if m.showHelp {
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(helpSections)))
	} else {
		out.WriteString(dimStyle.Render(widgets.RenderKeyLine([]widgets.KeyBinding{
			{Key: "asdfghj", Desc: "play"},
			{Key: "r", Desc: "rec"},
			{Key: "space", Desc: "preview"},
			{Key: "enter", Desc: "save loop"},
			{Key: "l", Desc: "place"},
			{Key: "p", Desc: "play song"},
			{Key: "?", Desc: "help"},
			{Key: "q", Desc: "quit"},
		})))
	}
	out.WriteString("\n")

	if m.status != "" {
		out.WriteString(m.Theme.Fg(theme.RoleWarning).Render(m.status))
	}
	return out.String()
}

var helpSections = []widgets.KeySection{
	{
		Title: "Keyboard",
		Keys: []widgets.KeyBinding{
			{Key: "a s d f g h j", Desc: "white keys C to B"},
			{Key: "w e t y u", Desc: "black keys"},
			{Key: "z / x", Desc: "octave down / up"},
		},
	},
	{
		Title: "Looper",
		Keys: []widgets.KeyBinding{
			{Key: "r", Desc: "arm / disarm recording"},
			{Key: "space", Desc: "preview play / pause"},
			{Key: ".", Desc: "skip a step"},
			{Key: "backspace", Desc: "delete last step"},
			{Key: "X", Desc: "clear pattern"},
			{Key: "enter", Desc: "save as loop"},
			{Key: "1-9 < >", Desc: "instrument preset"},
		},
	},
	{
		Title: "Composer",
		Keys: []widgets.KeyBinding{
			{Key: "arrows", Desc: "move cursor"},
			{Key: "[ ]", Desc: "pick loop"},
			{Key: "l", Desc: "place loop at cursor"},
			{Key: "L", Desc: "append loop to channel"},
			{Key: "i", Desc: "place unsaved pattern at cursor"},
			{Key: "D / delete", Desc: "clear slot"},
			{Key: "p", Desc: "play / stop song"},
			{Key: "+ / -", Desc: "tempo"},
		},
	},
}

func (m Model) legend() string {
	c := m.Theme.Tiles
	return strings.Join([]string{
		widgets.RenderLegendItem(c.Playhead, "playing", "current step"),
		widgets.RenderLegendItem(c.Armed, "armed", "next step"),
		widgets.RenderLegendItem(c.Recorded, "recorded", "holds a note"),
	}, "")
}

func (m Model) header() string {
	mode := m.Manager.Engine.Mode()
	state := "IDLE"
	switch {
	case mode == sequencer.ModeComposition:
		state = "SONG"
	case mode == sequencer.ModePreview:
		state = "PLAY"
	case m.Manager.Recorder.State().Recording:
		state = "REC"
	}

	kb := "kb:none"
	if len(m.devices) > 0 {
		names := make([]string, 0, len(m.devices))
		for id := range m.devices {
			names = append(names, id)
		}
		sort.Strings(names)
		kb = "kb:" + strings.Join(names, ",")
	}

	return fmt.Sprintf("go-looper  %-4s  %3.0fbpm  oct:%d  %s",
		state, m.Manager.Tempo.BPM(), baseOctave+m.octave, kb)
}

func (m Model) tiles() string {
	st := m.Manager.Recorder.State()
	colors := m.Theme.Tiles

	tiles := make([]widgets.Tile, sequencer.StepsPerLoop)
	for i := range tiles {
		step := st.Notes[i]
		t := widgets.Tile{Color: colors.Base}
		switch {
		case st.Playing && i == st.ActiveStep:
			t.Color = colors.Playhead
		case st.Recording && i == st.CurrentStep:
			t.Color = colors.Armed
		case step != nil:
			t.Color = colors.Recorded
		}
		if step != nil {
			t.Label = widgets.NoteName(step.Note)
		}
		tiles[i] = t
	}
	return widgets.RenderTileRow(tiles)
}

func (m Model) presets() string {
	sel := m.Manager.PresetIndex()
	active := m.Theme.Fg(theme.RoleSuccess).Bold(true)
	dim := m.Theme.Fg(theme.RoleMuted)

	var parts []string
	for i, p := range m.Manager.Store.Presets() {
		label := fmt.Sprintf("%d:%s", i+1, p.Label())
		if i == sel {
			parts = append(parts, active.Render(label))
		} else {
			parts = append(parts, dim.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) grid() string {
	mgr := m.Manager
	channels := mgr.Grid.Channels()
	selCh, selSlot := mgr.Grid.Selection()

	columns := minColumns
	for _, ch := range channels {
		if len(ch.Slots) > columns {
			columns = len(ch.Slots)
		}
	}
	if selSlot+1 > columns {
		columns = selSlot + 1
	}

	ph := mgr.Playhead()

	sym := m.Theme.Symbols
	muted := m.Theme.RGB(theme.RoleMuted)

	lines := make([]string, len(channels))
	for i, ch := range channels {
		color := m.Theme.ChannelColor(i, len(channels))
		slots := make([]widgets.Slot, columns)
		for j := range slots {
			s := widgets.Slot{Symbol: sym.SlotEmpty, Color: muted, Cursor: i == selCh && j == selSlot}
			if j < len(ch.Slots) && ch.Slots[j] != nil {
				s.Symbol, s.Color = sym.SlotFilled, color
				if j == ph.Slot {
					s.Symbol = sym.SlotPlayhead
				}
			} else if s.Cursor {
				s.Symbol = sym.SlotCursor
			}
			if j == ph.Slot && ph.Sounding(i) {
				s.Symbol, s.Color = sym.SlotPlayhead, m.Theme.Tiles.Playhead
			}
			slots[j] = s
		}
		lines[i] = widgets.RenderSlotRow(ch.ID, slots)
	}
	return strings.Join(lines, "\n")
}

func (m Model) loops() string {
	loops := m.Manager.Store.Loops()
	if len(loops) == 0 {
		return m.Theme.Fg(theme.RoleMuted).Render("no loops saved")
	}
	sel := m.Manager.Composer.SelectedLoop()
	active := m.Theme.Fg(theme.RoleSuccess).Bold(true)
	dim := m.Theme.Fg(theme.RoleMuted)

	parts := make([]string, len(loops))
	for i, l := range loops {
		label := fmt.Sprintf("%s(%d)", l.ID, l.Notes.Count())
		if l.ID == sel {
			parts[i] = active.Render("[" + label + "]")
		} else {
			parts[i] = dim.Render(label)
		}
	}
	return strings.Join(parts, " ")
}
