package midi

import "sync/atomic"

// NoteEvent is a single key press from any keyboard source.
// ID is unique per press; 0 means the source gave it no identity.
type NoteEvent struct {
	ID       uint64
	Note     uint8
	Velocity uint8
	Channel  uint8
}

// NoteIDs hands out monotonically increasing note identities.
// All keyboard sources in a process share one so that consumers can
// dedupe by comparing against the last identity they saw.
type NoteIDs struct {
	last atomic.Uint64
}

// Next returns a fresh identity, never 0.
func (n *NoteIDs) Next() uint64 {
	return n.last.Add(1)
}

// LastID returns the most recently issued identity (0 if none yet).
func (n *NoteIDs) LastID() uint64 {
	return n.last.Load()
}

// Stamp returns ev with a fresh identity.
func (n *NoteIDs) Stamp(ev NoteEvent) NoteEvent {
	ev.ID = n.Next()
	return ev
}
