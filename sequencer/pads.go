package sequencer

import (
	"go-looper/debug"
	"go-looper/midi"
)

// Pad layout: the 8x8 grid shows the first eight channels (top row is
// the first channel) and the page of eight slots holding the cursor.
// The top control row carries the transport buttons.
const (
	padSize    = 8
	controlRow = 8
)

// Control row columns
const (
	padPlay    = iota // composition play/stop
	padPreview        // recorder preview play/pause
	padRecord         // arm/disarm recording
	padCommit         // store the pattern as a loop
	padPrevLoop
	padNextLoop
	padPageLeft
	padPageRight
)

var (
	ledOff      = [3]uint8{}
	ledLoop     = [3]uint8{0x22, 0xc5, 0x5e}
	ledPlayhead = [3]uint8{0xf9, 0x73, 0x16}
	ledCursor   = [3]uint8{0xfa, 0xcc, 0x15}
	ledRecord   = [3]uint8{255, 0, 0}
	ledIdle     = [3]uint8{40, 60, 120}
	ledActive   = [3]uint8{0, 255, 0}
)

// padFrame holds every LED color, indexed [row][col]
type padFrame [9][9][3]uint8

// padPage is the first slot shown on the pads
func padPage(slot int) int {
	return slot / padSize * padSize
}

// HandlePad maps a pad press onto the arrangement. A grid pad selects
// its slot, then clears it if filled or places the selected loop if
// empty.
func (m *Manager) HandlePad(row, col int) {
	if row == controlRow {
		m.handleControlPad(col)
		m.markDirty()
		return
	}
	if row < 0 || row >= padSize || col < 0 || col >= padSize {
		return
	}

	ch := padSize - 1 - row
	if ch >= m.Grid.NumChannels() {
		return
	}
	_, cur := m.Grid.Selection()
	slot := padPage(cur) + col
	m.Grid.Select(ch, slot)

	channel, _ := m.Grid.Channel(ch)
	if slot < len(channel.Slots) && channel.Slots[slot] != nil {
		m.Composer.DeleteSelected()
	} else {
		m.Composer.PlaceSelected()
	}
	debug.Log("pad", "press ch=%d slot=%d", ch, slot)
}

func (m *Manager) handleControlPad(col int) {
	switch col {
	case padPlay:
		m.Composer.Toggle()
	case padPreview:
		m.Recorder.PlayPause()
	case padRecord:
		m.Recorder.ToggleRecord()
	case padCommit:
		m.Commit()
	case padPrevLoop:
		m.Composer.CycleLoop(-1)
	case padNextLoop:
		m.Composer.CycleLoop(1)
	case padPageLeft:
		m.Grid.MoveSelection(0, -padSize)
	case padPageRight:
		m.Grid.MoveSelection(0, padSize)
	}
}

// padFrame renders the current state as LED colors
func (m *Manager) padFrame() padFrame {
	var f padFrame

	channels := m.Grid.Channels()
	selCh, selSlot := m.Grid.Selection()
	page := padPage(selSlot)

	ph := m.Playhead()

	for i := 0; i < len(channels) && i < padSize; i++ {
		row := padSize - 1 - i
		slots := channels[i].Slots
		for col := 0; col < padSize; col++ {
			slot := page + col
			color := ledOff
			if slot < len(slots) && slots[slot] != nil {
				color = ledLoop
			}
			if slot == ph.Slot && ph.Sounding(i) {
				color = ledPlayhead
			}
			if i == selCh && slot == selSlot && color == ledOff {
				color = ledCursor
			}
			f[row][col] = color
		}
	}

	rec := m.Recorder.State()
	f[controlRow][padPlay] = ledIdle
	if m.Composer.Playing() {
		f[controlRow][padPlay] = ledActive
	}
	f[controlRow][padPreview] = ledIdle
	if rec.Playing {
		f[controlRow][padPreview] = ledActive
	}
	f[controlRow][padRecord] = ledIdle
	if rec.Recording {
		f[controlRow][padRecord] = ledRecord
	}
	for _, col := range []int{padCommit, padPrevLoop, padNextLoop, padPageLeft, padPageRight} {
		f[controlRow][col] = ledIdle
	}
	return f
}

// diff lists the pads whose color differs from prev. A nil prev yields
// every pad.
func (f *padFrame) diff(prev *padFrame) []midi.LEDUpdate {
	var out []midi.LEDUpdate
	for row := range f {
		for col := range f[row] {
			if row == controlRow && col == padSize {
				continue // no LED at 8,8
			}
			if prev != nil && prev[row][col] == f[row][col] {
				continue
			}
			out = append(out, midi.LEDUpdate{Row: row, Col: col, Color: f[row][col]})
		}
	}
	return out
}

// padSurface tracks what was last sent to one controller
type padSurface struct {
	dev  midi.PadSurface
	last *padFrame
}

// refreshPads sends changed LEDs to every attached pad surface
func (m *Manager) refreshPads() {
	m.mu.Lock()
	surfaces := make([]*padSurface, 0, len(m.pads))
	for _, s := range m.pads {
		surfaces = append(surfaces, s)
	}
	m.mu.Unlock()
	if len(surfaces) == 0 {
		return
	}

	frame := m.padFrame()
	for _, s := range surfaces {
		updates := frame.diff(s.last)
		if len(updates) == 0 {
			continue
		}
		if err := s.dev.SetLEDBatch(updates); err != nil {
			debug.Log("pad", "%s: %v", s.dev.ID(), err)
		}
		f := frame
		s.last = &f
	}
}
