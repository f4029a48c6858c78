package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerKeyboard
	ControllerLaunchpad
)

func (t ControllerType) String() string {
	switch t {
	case ControllerKeyboard:
		return "keyboard"
	case ControllerLaunchpad:
		return "launchpad"
	}
	return "unknown"
}

// Controller is the interface for note input devices
type Controller interface {
	ID() string
	Type() ControllerType

	// NoteEvents delivers stamped note-on events. Closed on Close.
	NoteEvents() <-chan NoteEvent

	Close() error
}

// PadEvent is a pad press. Row 0 is the bottom row; row 8 is the top
// control row and column 8 the scene buttons on the right.
type PadEvent struct {
	Row      int
	Col      int
	Velocity uint8
}

// LEDUpdate sets one pad's color
type LEDUpdate struct {
	Row   int
	Col   int
	Color [3]uint8
}

// PadSurface is a controller with a lit pad grid
type PadSurface interface {
	Controller

	// PadEvents delivers pad presses. Closed on Close.
	PadEvents() <-chan PadEvent

	SetLEDBatch(updates []LEDUpdate) error
}
