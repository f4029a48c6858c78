package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-looper/debug"
)

// KeyboardController turns a keyboard's note-ons into stamped NoteEvents
type KeyboardController struct {
	name  string
	ids   *NoteIDs
	input inputGuard
	notes chan NoteEvent
}

// NewKeyboardController listens on in and stamps every note-on with an
// identity from ids. A nil port yields a controller that never emits.
func NewKeyboardController(name string, in drivers.In, ids *NoteIDs) (*KeyboardController, error) {
	if ids == nil {
		ids = &NoteIDs{}
	}
	kb := &KeyboardController{
		name:  name,
		ids:   ids,
		notes: make(chan NoteEvent, 32),
	}
	if err := kb.input.open(in, kb.onMessage); err != nil {
		return nil, err
	}
	return kb, nil
}

// onMessage runs on the driver goroutine and must not block
func (kb *KeyboardController) onMessage(msg gomidi.Message, timestampms int32) {
	var channel, key, velocity uint8
	if !msg.GetNoteOn(&channel, &key, &velocity) || velocity == 0 {
		return
	}
	kb.input.do(func() {
		ev := kb.ids.Stamp(NoteEvent{Note: key, Velocity: velocity, Channel: channel})
		select {
		case kb.notes <- ev:
		default:
			debug.Log("midi", "%s: queue full, dropped note %d", kb.name, key)
		}
	})
}

func (kb *KeyboardController) ID() string           { return kb.name }
func (kb *KeyboardController) Type() ControllerType { return ControllerKeyboard }

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.notes
}

// Close stops listening and closes NoteEvents. Safe to call twice.
func (kb *KeyboardController) Close() error {
	kb.input.shutdown(func() { close(kb.notes) })
	return nil
}
