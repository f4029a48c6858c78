package midi

import (
	"fmt"
	"strings"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-looper/debug"
)

// Launchpad X SysEx bodies (without F0/F7)
var (
	lpProgrammerMode = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F}
	lpFullBrightness = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F}
	lpLEDFeedback    = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x0A, 0x01, 0x01}
)

// lpColor is one entry of the device's velocity palette
type lpColor struct {
	velocity uint8
	rgb      [3]uint8
}

// Approximate RGB of the palette entries the arrangement uses
var lpPalette = []lpColor{
	{0, [3]uint8{0, 0, 0}},
	{5, [3]uint8{255, 0, 0}},
	{7, [3]uint8{180, 60, 60}},
	{9, [3]uint8{255, 100, 0}},
	{13, [3]uint8{255, 200, 0}},
	{17, [3]uint8{0, 180, 0}},
	{21, [3]uint8{0, 255, 0}},
	{37, [3]uint8{0, 200, 200}},
	{43, [3]uint8{40, 60, 120}},
	{45, [3]uint8{0, 100, 255}},
	{49, [3]uint8{150, 0, 200}},
	{53, [3]uint8{255, 80, 180}},
	{84, [3]uint8{255, 150, 50}},
	{119, [3]uint8{255, 255, 255}},
}

// LaunchpadController drives a Novation Launchpad X as a pad surface
type LaunchpadController struct {
	name  string
	send  func(msg gomidi.Message) error
	input inputGuard
	pads  chan PadEvent
	notes chan NoteEvent

	sent atomic.Uint64
}

// NewLaunchpadController opens both ports and puts the device in
// programmer mode. Either port may be nil.
func NewLaunchpadController(name string, in drivers.In, out drivers.Out) (*LaunchpadController, error) {
	var send func(gomidi.Message) error
	if out != nil {
		s, err := gomidi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("launchpad %s output: %w", name, err)
		}
		send = s
	}

	lp := newLaunchpad(name, send)
	if err := lp.input.open(in, lp.onMessage); err != nil {
		return nil, err
	}
	return lp, nil
}

func newLaunchpad(name string, send func(gomidi.Message) error) *LaunchpadController {
	lp := &LaunchpadController{
		name:  name,
		send:  send,
		pads:  make(chan PadEvent, 32),
		notes: make(chan NoteEvent),
	}
	if send != nil {
		for _, body := range [][]byte{lpProgrammerMode, lpFullBrightness, lpLEDFeedback} {
			if err := send(gomidi.SysEx(body)); err != nil {
				debug.Log("midi", "%s setup: %v", name, err)
			}
		}
	}
	return lp
}

// onMessage maps grid notes and top-row CCs to pad presses
func (lp *LaunchpadController) onMessage(msg gomidi.Message, timestampms int32) {
	var channel, data, value uint8
	row, col := -1, -1

	switch {
	case msg.GetNoteOn(&channel, &data, &value) && value > 0:
		row, col = padFromNote(data)
	case msg.GetControlChange(&channel, &data, &value) && value > 0:
		row, col = padFromCC(data)
	}
	if row < 0 {
		return
	}

	ev := PadEvent{Row: row, Col: col, Velocity: value}
	lp.input.do(func() {
		select {
		case lp.pads <- ev:
		default:
		}
	})
}

func (lp *LaunchpadController) ID() string           { return lp.name }
func (lp *LaunchpadController) Type() ControllerType { return ControllerLaunchpad }

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.pads
}

// NoteEvents never delivers; pads are not note input
func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.notes
}

// SetLEDBatch lights each pad with a NoteOn carrying the nearest palette
// velocity. Callers send only what changed.
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 || lp.input.isClosed() {
		return nil
	}
	return lp.light(updates)
}

func (lp *LaunchpadController) light(updates []LEDUpdate) error {
	var firstErr error
	for _, u := range updates {
		msg := gomidi.NoteOn(0, padNote(u.Row, u.Col), nearestLaunchpadColor(u.Color))
		if err := lp.send(msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	n := uint64(len(updates))
	if total := lp.sent.Add(n); total%100 < n {
		debug.Log("lp-send", "%d leds sent (batch of %d)", total, n)
	}
	return firstErr
}

// Close closes both channels and blanks every LED
func (lp *LaunchpadController) Close() error {
	first := lp.input.shutdown(func() {
		close(lp.pads)
		close(lp.notes)
	})
	if !first || lp.send == nil {
		return nil
	}

	blank := make([]LEDUpdate, 0, 80)
	for row := 0; row <= 8; row++ {
		for col := 0; col <= 8; col++ {
			if row == 8 && col == 8 {
				continue // no LED in the corner
			}
			blank = append(blank, LEDUpdate{Row: row, Col: col})
		}
	}
	return lp.light(blank)
}

func nearestLaunchpadColor(rgb [3]uint8) uint8 {
	best, bestDist := uint8(0), -1
	for _, c := range lpPalette {
		dist := 0
		for i := range rgb {
			d := int(rgb[i]) - int(c.rgb[i])
			dist += d * d
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = c.velocity, dist
		}
	}
	return best
}

// isLaunchpad matches the MIDI port of a Launchpad, not its DAW port
func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

// Pad numbering in programmer mode: row r, column c is note 10(r+1)+c+1,
// so the bottom row is 11-18 and the right-hand scene column ends in 9.
// The top row (row 8) sends CC 91-98 and is lit with notes 91-98.

func padNote(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8(10*(row+1) + col + 1)
}

func padFromNote(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return 8, int(note) - 91
	}
	row, col = int(note)/10-1, int(note)%10-1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

func padFromCC(cc uint8) (row, col int) {
	if cc < 91 || cc > 98 {
		return -1, -1
	}
	return 8, int(cc) - 91
}
