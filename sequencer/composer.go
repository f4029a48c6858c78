package sequencer

import (
	"sync"
	"sync/atomic"
)

// Arranger plays a composition. *Engine implements it.
type Arranger interface {
	PlayComposition(channels []Channel, bpm float64, onStep func(int)) bool
	StopComposition()
	Mode() Mode
}

// Composer drives composition playback from the grid and keeps the loop
// picked for placement.
type Composer struct {
	grid   *Grid
	store  *Store
	tempo  *Tempo
	player Arranger

	mu       sync.Mutex
	selected string
	onStep   func(int)

	playStep atomic.Int64
}

// NewComposer creates a stopped composer
func NewComposer(grid *Grid, store *Store, tempo *Tempo, player Arranger) *Composer {
	c := &Composer{grid: grid, store: store, tempo: tempo, player: player}
	c.playStep.Store(-1)
	return c
}

// OnStep registers fn to receive every global step while playing
func (c *Composer) OnStep(fn func(int)) {
	c.mu.Lock()
	c.onStep = fn
	c.mu.Unlock()
}

// Playing reports whether the composition is running
func (c *Composer) Playing() bool {
	return c.player.Mode() == ModeComposition
}

// PlayingStep is the last global step played, -1 when stopped
func (c *Composer) PlayingStep() int {
	if !c.Playing() {
		return -1
	}
	return int(c.playStep.Load())
}

// Play starts the current arrangement at the shared tempo
func (c *Composer) Play() bool {
	c.playStep.Store(-1)
	c.mu.Lock()
	fn := c.onStep
	c.mu.Unlock()
	return c.player.PlayComposition(c.grid.Channels(), c.tempo.BPM(), func(step int) {
		c.playStep.Store(int64(step))
		if fn != nil {
			fn(step)
		}
	})
}

// Stop halts composition playback
func (c *Composer) Stop() {
	c.player.StopComposition()
}

// Toggle plays or stops
func (c *Composer) Toggle() bool {
	if c.Playing() {
		c.Stop()
		return false
	}
	return c.Play()
}

// SelectedLoop is the loop id picked for placement ("" = none)
func (c *Composer) SelectedLoop() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SelectLoop picks a loop for placement; unknown ids are ignored
func (c *Composer) SelectLoop(id string) bool {
	if _, ok := c.store.Loop(id); !ok {
		return false
	}
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()
	return true
}

// CycleLoop moves the selection through the stored loops by delta
func (c *Composer) CycleLoop(delta int) string {
	loops := c.store.Loops()
	if len(loops) == 0 {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := -1
	for i, l := range loops {
		if l.ID == c.selected {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(loops) - 1
		if delta > 0 {
			idx = 0
		}
	} else {
		idx = ((idx+delta)%len(loops) + len(loops)) % len(loops)
	}
	c.selected = loops[idx].ID
	return c.selected
}

// PlaceSelected puts the selected loop at the grid cursor
func (c *Composer) PlaceSelected() bool {
	id := c.SelectedLoop()
	if id == "" {
		return false
	}
	ch, slot := c.grid.Selection()
	return c.grid.PlaceLoopAtSlot(ch, slot, id)
}

// AppendSelected adds the selected loop to the end of the cursor's channel
func (c *Composer) AppendSelected() bool {
	id := c.SelectedLoop()
	if id == "" {
		return false
	}
	ch, _ := c.grid.Selection()
	return c.grid.AppendLoop(ch, id)
}

// DeleteSelected silences the slot under the cursor
func (c *Composer) DeleteSelected() bool {
	ch, slot := c.grid.Selection()
	return c.grid.DeleteAtSlot(ch, slot)
}
