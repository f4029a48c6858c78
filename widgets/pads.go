package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note as pitch class and octave (60 = C4)
func NoteName(note uint8) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note)/12-1)
}

// RenderPad is a ■ in the given color
func RenderPad(color [3]uint8) string {
	return fg(color).Render("■")
}

// Tile is one recorder step: a colored block with an optional label
type Tile struct {
	Color [3]uint8
	Label string
}

const tileWidth = 5

// RenderTile renders a tile as a filled block, label centered
func RenderTile(t Tile) string {
	style := lipgloss.NewStyle().
		Background(lipgloss.Color(rgbToHex(t.Color))).
		Foreground(lipgloss.Color("#111111")).
		Width(tileWidth).
		Align(lipgloss.Center)
	return style.Render(t.Label)
}

// RenderTileRow renders tiles side by side with spacing
func RenderTileRow(tiles []Tile) string {
	parts := make([]string, 0, len(tiles)*2)
	for i, t := range tiles {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, RenderTile(t))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// Slot is one cell of an arrangement row
type Slot struct {
	Symbol rune
	Color  [3]uint8
	Cursor bool
}

// RenderSlotRow renders a channel: a fixed-width name then one cell per
// slot. The cursor cell is drawn reversed.
func RenderSlotRow(name string, slots []Slot) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%-6s", name)
	for _, s := range slots {
		style := fg(s.Color)
		if s.Cursor {
			style = style.Reverse(true)
		}
		out.WriteString(" ")
		out.WriteString(style.Render(string(s.Symbol)))
	}
	return out.String()
}

// RenderLegendItem is one legend entry, e.g. "  ■ rec - step holds a note"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return "  " + RenderPad(color) + " " + name + " - " + desc
}

// RenderKeyHelp lists each section title followed by its bindings
// in an aligned column.
func RenderKeyHelp(sections []KeySection) string {
	var b strings.Builder
	for i, sec := range sections {
		if i > 0 {
			b.WriteByte('\n')
		}
		if sec.Title != "" {
			b.WriteString(sec.Title + "\n")
		}
		for j, k := range sec.Keys {
			if j > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "  %-12s %s", k.Key, k.Desc)
		}
	}
	return b.String()
}

// RenderKeyLine formats bindings on one line: "key:desc  key:desc"
func RenderKeyLine(keys []KeyBinding) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Key + ":" + k.Desc
	}
	return strings.Join(parts, "  ")
}

// KeySection is a titled group of bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

func fg(c [3]uint8) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(c)))
}
