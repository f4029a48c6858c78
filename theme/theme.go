package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme bundles the palette with the glyphs and fixed colors the UI draws
type Theme struct {
	Palette *Palette
	Symbols Symbols
	Tiles   Tiles
}

type Symbols struct {
	Solid rune // ■ filled tile
	Empty rune // □ empty tile

	// Arrangement grid
	SlotEmpty    rune // · silent slot
	SlotFilled   rune // ● slot with a loop
	SlotPlayhead rune // ▶ slot under the playhead
	SlotCursor   rune // ○ cursor on an empty slot
}

// Tiles are the fixed colors of the recorder tiles
type Tiles struct {
	Playhead RGB // currently playing step
	Recorded RGB // step holds a note
	Armed    RGB // next slot while recording
	Base     RGB
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Solid: '■',
			Empty: '□',

			SlotEmpty:    '·',
			SlotFilled:   '●',
			SlotPlayhead: '▶',
			SlotCursor:   '○',
		},
		Tiles: Tiles{
			Playhead: RGB{0xf9, 0x73, 0x16},
			Recorded: RGB{0x22, 0xc5, 0x5e},
			Armed:    RGB{0xfa, 0xcc, 0x15},
			Base:     RGB{0xb4, 0xca, 0xfe},
		},
	}
}

// Role is a position on the palette ramp, 0 to 1
type Role float64

const (
	RoleMuted   Role = 0.2
	RoleFG      Role = 0.4
	RoleAccent  Role = 0.5
	RoleWarning Role = 0.8
	RoleSuccess Role = 1.0
)

// RGB looks the role up on the palette
func (t *Theme) RGB(r Role) RGB {
	return t.Palette.Lookup(float64(r))
}

// Color is RGB as a lipgloss color
func (t *Theme) Color(r Role) lipgloss.Color {
	return lipgloss.Color(t.RGB(r).Hex())
}

// Fg is a style with the role as foreground
func (t *Theme) Fg(r Role) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Color(r))
}

// ChannelColor spreads channels over the readable upper part of the ramp
func (t *Theme) ChannelColor(i, n int) RGB {
	if n <= 1 {
		return t.RGB(RoleAccent)
	}
	return t.Palette.Lookup(float64(RoleFG) + 0.6*float64(i)/float64(n-1))
}
