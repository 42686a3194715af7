// SPDX-License-Identifier: MIT
package display

import (
	"fmt"
	"io"
	"strings"

	"ledmeter/internal/meter"

	"github.com/charmbracelet/lipgloss"
)

const (
	ledGlyph = "●"
	offGlyph = "○"
	offColor = "#3A3A3A"
)

// Terminal previews the strip on a single, continuously rewritten line.
type Terminal struct {
	w          io.Writer
	renderer   *lipgloss.Renderer
	offStyle   lipgloss.Style
	brightness uint8
	shown      int
}

func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:          w,
		renderer:   r,
		offStyle:   r.NewStyle().Foreground(lipgloss.Color(offColor)),
		brightness: 100,
	}
}

func (t *Terminal) SetBrightness(percent uint8) error {
	t.brightness = percent
	return nil
}

// Show redraws the line. Colors are shown at full brightness so the
// preview stays readable; the percentage is printed alongside.
func (t *Terminal) Show(frame meter.Frame) error {
	_, err := fmt.Fprintf(t.w, "\r%s  %d/%d @%d%%", t.Render(frame), frame.ActiveCount(), len(frame), t.brightness)
	t.shown++
	return err
}

// Render returns the frame as styled glyphs without writing it.
func (t *Terminal) Render(frame meter.Frame) string {
	var b strings.Builder
	for i, c := range frame {
		if i > 0 {
			b.WriteByte(' ')
		}
		if c.IsBlack() {
			b.WriteString(t.offStyle.Render(offGlyph))
			continue
		}
		b.WriteString(t.renderer.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render(ledGlyph))
	}
	return b.String()
}

// Close ends the preview line.
func (t *Terminal) Close() error {
	if t.shown == 0 {
		return nil
	}
	_, err := fmt.Fprintln(t.w)
	return err
}
