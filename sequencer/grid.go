package sequencer

import (
	"fmt"
	"sync"

	"go-looper/debug"
)

// MaxSlots bounds how far a channel may grow
const MaxSlots = 64

// Grid is the channel/slot arrangement. It also owns the selection
// cursor; views subscribe instead of keeping their own copy.
//
// Every mutation replaces the target channel's slot slice with a new
// one, so snapshots returned by Channels are never written to.
type Grid struct {
	mu       sync.RWMutex
	channels []Channel
	selCh    int
	selSlot  int
	subs     map[int]func()
	nextSub  int
}

// NewGrid creates n empty channels
func NewGrid(n int) *Grid {
	g := &Grid{subs: make(map[int]func())}
	for i := 0; i < n; i++ {
		g.channels = append(g.channels, Channel{ID: fmt.Sprintf("ch-%d", i+1)})
	}
	return g
}

// Subscribe registers fn to run after every change. The returned
// function removes it.
func (g *Grid) Subscribe(fn func()) (cancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// notify runs subscribers outside the lock
func (g *Grid) notify() {
	g.mu.RLock()
	fns := make([]func(), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// NumChannels returns the channel count
func (g *Grid) NumChannels() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.channels)
}

// Channels returns a snapshot of the arrangement
func (g *Grid) Channels() []Channel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Channel, len(g.channels))
	copy(out, g.channels)
	return out
}

// Channel returns one channel's snapshot
func (g *Grid) Channel(i int) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i < 0 || i >= len(g.channels) {
		return Channel{}, false
	}
	return g.channels[i], true
}

// PlaceLoopAtSlot puts loopID at slot, padding the channel with silent
// slots if it is shorter. Reports whether anything changed.
func (g *Grid) PlaceLoopAtSlot(ch, slot int, loopID string) bool {
	if loopID == "" {
		return false
	}
	return g.place(ch, slot, &LoopRef{LoopID: loopID})
}

// PlaceInline puts a loop value directly into a slot. The slot plays
// l even though the store has never seen it.
func (g *Grid) PlaceInline(ch, slot int, l *Loop) bool {
	if l == nil {
		return false
	}
	return g.place(ch, slot, &LoopRef{LoopID: l.ID, Inline: l})
}

func (g *Grid) place(ch, slot int, ref *LoopRef) bool {
	g.mu.Lock()
	ok := g.placeLocked(ch, slot, ref)
	g.mu.Unlock()
	if !ok {
		return false
	}
	debug.Log("grid", "place %s at ch=%d slot=%d", ref.LoopID, ch, slot)
	g.notify()
	return true
}

func (g *Grid) placeLocked(ch, slot int, ref *LoopRef) bool {
	if ch < 0 || ch >= len(g.channels) || slot < 0 || slot >= MaxSlots {
		return false
	}
	old := g.channels[ch].Slots
	next := make([]*LoopRef, max(len(old), slot+1))
	copy(next, old)
	next[slot] = ref
	g.channels[ch].Slots = next
	return true
}

// AppendLoop adds loopID after the channel's last slot
func (g *Grid) AppendLoop(ch int, loopID string) bool {
	if loopID == "" {
		return false
	}
	g.mu.Lock()
	slot := -1
	if ch >= 0 && ch < len(g.channels) {
		slot = len(g.channels[ch].Slots)
	}
	ok := g.placeLocked(ch, slot, &LoopRef{LoopID: loopID})
	g.mu.Unlock()
	if !ok {
		return false
	}
	debug.Log("grid", "append %s at ch=%d slot=%d", loopID, ch, slot)
	g.notify()
	return true
}

// DeleteAtSlot silences a slot. The channel keeps its length.
func (g *Grid) DeleteAtSlot(ch, slot int) bool {
	g.mu.Lock()
	if ch < 0 || ch >= len(g.channels) || slot < 0 || slot >= len(g.channels[ch].Slots) {
		g.mu.Unlock()
		return false
	}
	old := g.channels[ch].Slots
	if old[slot] == nil {
		g.mu.Unlock()
		return false
	}
	next := make([]*LoopRef, len(old))
	copy(next, old)
	next[slot] = nil
	g.channels[ch].Slots = next
	g.mu.Unlock()

	debug.Log("grid", "delete ch=%d slot=%d", ch, slot)
	g.notify()
	return true
}

// Selection returns the selected channel and slot
func (g *Grid) Selection() (ch, slot int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selCh, g.selSlot
}

// Select moves the cursor; out of range values are clamped
func (g *Grid) Select(ch, slot int) {
	g.mu.Lock()
	g.selCh = clampInt(ch, 0, max(len(g.channels)-1, 0))
	g.selSlot = clampInt(slot, 0, MaxSlots-1)
	g.mu.Unlock()
	g.notify()
}

// MoveSelection shifts the cursor by the given deltas
func (g *Grid) MoveSelection(dch, dslot int) {
	ch, slot := g.Selection()
	g.Select(ch+dch, slot+dslot)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
