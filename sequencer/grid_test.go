package sequencer

import (
	"fmt"
	"sync"
	"testing"
)

func TestPlaceLoopPadsWithSilence(t *testing.T) {
	tests := []struct {
		name     string
		existing int // filled slots before the place
		slot     int
		wantLen  int
	}{
		{"empty channel", 0, 2, 3},
		{"two slots, place at 5", 2, 5, 6},
		{"inside existing", 3, 1, 3},
	}
	for _, tt := range tests {
		g := NewGrid(3)
		for i := 0; i < tt.existing; i++ {
			g.PlaceLoopAtSlot(1, i, "old")
		}
		if !g.PlaceLoopAtSlot(1, tt.slot, "loop-1") {
			t.Fatalf("%s: place refused", tt.name)
		}

		ch, _ := g.Channel(1)
		if len(ch.Slots) != tt.wantLen {
			t.Fatalf("%s: len = %d, want %d", tt.name, len(ch.Slots), tt.wantLen)
		}
		if ch.Steps() != tt.wantLen*StepsPerLoop {
			t.Fatalf("%s: steps = %d", tt.name, ch.Steps())
		}
		for i, ref := range ch.Slots {
			switch {
			case i == tt.slot:
				if ref == nil || ref.LoopID != "loop-1" {
					t.Fatalf("%s: slot %d = %+v", tt.name, i, ref)
				}
			case i < tt.existing:
				if ref == nil || ref.LoopID != "old" {
					t.Fatalf("%s: existing slot %d lost", tt.name, i)
				}
			default:
				if ref != nil {
					t.Fatalf("%s: padding slot %d = %+v, want nil", tt.name, i, ref)
				}
			}
		}
	}
}

func TestPlaceInline(t *testing.T) {
	g := NewGrid(1)
	l := &Loop{ID: "draft", Notes: Pattern{NewStep(60, nil)}}
	if g.PlaceInline(0, 0, nil) {
		t.Fatal("nil loop placed")
	}
	if !g.PlaceInline(0, 1, l) {
		t.Fatal("place refused")
	}
	ch, _ := g.Channel(0)
	if len(ch.Slots) != 2 || ch.Slots[1].Inline != l {
		t.Fatalf("slots = %+v", ch.Slots)
	}
	if got := NewStore(nil).Resolve(ch.Slots[1]); got != l {
		t.Fatal("inline loop did not resolve")
	}
}

func TestDeleteKeepsLength(t *testing.T) {
	g := NewGrid(1)
	g.PlaceLoopAtSlot(0, 0, "a")
	g.PlaceLoopAtSlot(0, 1, "b")

	if !g.DeleteAtSlot(0, 1) {
		t.Fatal("delete refused")
	}
	ch, _ := g.Channel(0)
	if len(ch.Slots) != 2 || ch.Slots[1] != nil {
		t.Fatalf("slots = %+v", ch.Slots)
	}
	if g.DeleteAtSlot(0, 1) {
		t.Fatal("deleting an empty slot reported a change")
	}
}

func TestGridIgnoresOutOfRange(t *testing.T) {
	g := NewGrid(2)
	calls := 0
	g.Subscribe(func() { calls++ })

	tests := []struct {
		name string
		do   func() bool
	}{
		{"negative channel", func() bool { return g.PlaceLoopAtSlot(-1, 0, "a") }},
		{"channel past end", func() bool { return g.PlaceLoopAtSlot(2, 0, "a") }},
		{"negative slot", func() bool { return g.PlaceLoopAtSlot(0, -1, "a") }},
		{"slot past limit", func() bool { return g.PlaceLoopAtSlot(0, MaxSlots, "a") }},
		{"empty id", func() bool { return g.PlaceLoopAtSlot(0, 0, "") }},
		{"delete past end", func() bool { return g.DeleteAtSlot(0, 5) }},
		{"delete bad channel", func() bool { return g.DeleteAtSlot(9, 0) }},
		{"append bad channel", func() bool { return g.AppendLoop(-1, "a") }},
	}
	for _, tt := range tests {
		if tt.do() {
			t.Errorf("%s: reported a change", tt.name)
		}
	}
	for _, ch := range g.Channels() {
		if len(ch.Slots) != 0 {
			t.Fatalf("channel %s changed: %+v", ch.ID, ch.Slots)
		}
	}
	if calls != 0 {
		t.Fatalf("subscribers notified %d times for ignored edits", calls)
	}
}

func TestGridCopyOnWrite(t *testing.T) {
	g := NewGrid(2)
	g.PlaceLoopAtSlot(0, 0, "a")
	g.PlaceLoopAtSlot(1, 0, "b")

	before := g.Channels()
	g.PlaceLoopAtSlot(0, 0, "c")
	g.DeleteAtSlot(1, 0)

	if before[0].Slots[0].LoopID != "a" || before[1].Slots[0] == nil {
		t.Fatal("snapshot was mutated")
	}

	after := g.Channels()
	g.PlaceLoopAtSlot(0, 1, "d")
	now := g.Channels()
	if &now[1].Slots[0] != &after[1].Slots[0] {
		t.Fatal("untouched channel got a new slot slice")
	}
}

func TestAppendLoop(t *testing.T) {
	g := NewGrid(1)
	g.AppendLoop(0, "a")
	g.AppendLoop(0, "b")
	ch, _ := g.Channel(0)
	if len(ch.Slots) != 2 || ch.Slots[1].LoopID != "b" {
		t.Fatalf("slots = %+v", ch.Slots)
	}
}

func TestConcurrentAppendsTakeDistinctSlots(t *testing.T) {
	const n = 32
	g := NewGrid(1)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.AppendLoop(0, fmt.Sprintf("loop-%d", i))
		}(i)
	}
	wg.Wait()

	ch, _ := g.Channel(0)
	if len(ch.Slots) != n {
		t.Fatalf("len = %d, want %d", len(ch.Slots), n)
	}
	seen := make(map[string]bool)
	for i, ref := range ch.Slots {
		if ref == nil {
			t.Fatalf("slot %d empty", i)
		}
		seen[ref.LoopID] = true
	}
	if len(seen) != n {
		t.Fatalf("%d distinct loops, want %d", len(seen), n)
	}
}

func TestSelection(t *testing.T) {
	g := NewGrid(3)
	calls := 0
	cancel := g.Subscribe(func() { calls++ })

	g.Select(1, 4)
	g.MoveSelection(5, -10)
	ch, slot := g.Selection()
	if ch != 2 || slot != 0 {
		t.Fatalf("selection = %d,%d want 2,0", ch, slot)
	}
	if calls != 2 {
		t.Fatalf("notified %d times, want 2", calls)
	}

	cancel()
	g.Select(0, 0)
	if calls != 2 {
		t.Fatal("cancelled subscriber still notified")
	}
}

func TestLongestSteps(t *testing.T) {
	channels := []Channel{
		{Slots: make([]*LoopRef, 2)},
		{Slots: make([]*LoopRef, 5)},
		{},
	}
	if got := LongestSteps(channels); got != 40 {
		t.Fatalf("longest = %d, want 40", got)
	}
}
