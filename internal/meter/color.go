// SPDX-License-Identifier: MIT
package meter

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a 24-bit RGB value for one LED.
type Color struct {
	R, G, B uint8
}

// Named colors used by the default level table (web color values).
var (
	Black       = Color{0x00, 0x00, 0x00}
	Green       = Color{0x00, 0x80, 0x00}
	GreenYellow = Color{0xAD, 0xFF, 0x2F}
	Yellow      = Color{0xFF, 0xFF, 0x00}
	Gold        = Color{0xFF, 0xD7, 0x00}
	Orange      = Color{0xFF, 0xA5, 0x00}
	OrangeRed   = Color{0xFF, 0x45, 0x00}
	Red         = Color{0xFF, 0x00, 0x00}
	DarkRed     = Color{0x8B, 0x00, 0x00}
	Blue        = Color{0x00, 0x00, 0xFF}
	White       = Color{0xFF, 0xFF, 0xFF}
)

var namedColors = map[string]Color{
	"black":       Black,
	"green":       Green,
	"greenyellow": GreenYellow,
	"yellow":      Yellow,
	"gold":        Gold,
	"orange":      Orange,
	"orangered":   OrangeRed,
	"red":         Red,
	"darkred":     DarkRed,
	"blue":        Blue,
	"white":       White,
}

// ParseColor accepts a color name ("GreenYellow", "dark_red") or a hex
// string ("#ffd700").
func ParseColor(s string) (Color, error) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	if c, ok := namedColors[key]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("unknown color %q", s)
	}
	hex, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := hex.RGB255()
	return Color{R: r, G: g, B: b}, nil
}

// Scale dims c to percent of full brightness, clamped to [0, 100].
func (c Color) Scale(percent uint8) Color {
	if percent >= 100 {
		return c
	}
	p := uint16(percent)
	return Color{
		R: uint8(uint16(c.R) * p / 100),
		G: uint8(uint16(c.G) * p / 100),
		B: uint8(uint16(c.B) * p / 100),
	}
}

// Hex formats c as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) IsBlack() bool {
	return c == Black
}
