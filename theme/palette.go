package theme

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed palettes/plasma.gpl
var plasmaGPL []byte

type RGB [3]uint8

// Hex returns the color as #rrggbb
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// Palette is an ordered color ramp used for data-driven coloring
type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette returns the built-in plasma ramp
func DefaultPalette() *Palette {
	p, err := ParseGPL(bytes.NewReader(plasmaGPL), "plasma")
	if err != nil {
		panic(fmt.Sprintf("built-in palette: %v", err))
	}
	return p
}

func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGPL(f, path)
}

// ParseGPL reads a GIMP .gpl palette. source names the input in errors.
// Lines that are not "R G B [name]" are ignored.
func ParseGPL(r io.Reader, source string) (*Palette, error) {
	var p Palette
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if name, ok := strings.CutPrefix(line, "Name:"); ok {
			p.Name = strings.TrimSpace(name)
			continue
		}
		if c, ok := parseColorLine(line); ok {
			p.Colors = append(p.Colors, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read palette %s: %w", source, err)
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("palette %s has no colors", source)
	}
	return &p, nil
}

func parseColorLine(line string) (RGB, bool) {
	if line == "" || strings.HasPrefix(line, "#") {
		return RGB{}, false
	}
	f := strings.Fields(line)
	if len(f) < 3 {
		return RGB{}, false
	}
	var c RGB
	for i := range c {
		v, err := strconv.ParseUint(f[i], 10, 8)
		if err != nil {
			return RGB{}, false
		}
		c[i] = uint8(v)
	}
	return c, true
}

// LoadOrDefault loads path, falling back to the built-in palette when
// path is empty or unreadable. The error reports why it fell back.
func LoadOrDefault(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return DefaultPalette(), err
	}
	return p, nil
}

// Lookup maps norm in [0,1] onto the ramp, blending neighbouring colors
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case norm <= 0 || last == 0:
		return p.Colors[0]
	case norm >= 1:
		return p.Colors[last]
	}

	pos := norm * float64(last)
	i := int(pos)
	t := pos - float64(i)
	a, b := p.Colors[i], p.Colors[i+1]

	var out RGB
	for k := range out {
		out[k] = uint8(float64(a[k]) + (float64(b[k])-float64(a[k]))*t)
	}
	return out
}
