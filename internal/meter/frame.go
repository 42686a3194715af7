// SPDX-License-Identifier: MIT
package meter

// Frame holds one color per LED, lowest LED first.
type Frame []Color

func NewFrame(n int) Frame {
	return make(Frame, n)
}

// FillLevels lights the first active LEDs with their level colors and
// turns the rest off.
func (f Frame) FillLevels(active int, table *LevelTable) {
	for i := range f {
		if i < active && i < table.Len() {
			f[i] = table.Level(i).Color
		} else {
			f[i] = Black
		}
	}
}

// FillGradient paints the startup pattern: red fixed at 150 while green
// fades out and blue fades in along the strip.
func (f Frame) FillGradient() {
	last := len(f) - 1
	for i := range f {
		f[i] = Color{
			R: 150,
			G: uint8(rescale(i, 0, last, 255, 0)),
			B: uint8(rescale(i, 0, last, 0, 255)),
		}
	}
}

// Clear turns every LED off.
func (f Frame) Clear() {
	for i := range f {
		f[i] = Black
	}
}

// ActiveCount counts the leading non-black LEDs.
func (f Frame) ActiveCount() int {
	n := 0
	for _, c := range f {
		if c.IsBlack() {
			break
		}
		n++
	}
	return n
}

// rescale linearly maps x from [inMin, inMax] to [outMin, outMax] with
// integer truncation.
func rescale(x, inMin, inMax, outMin, outMax int) int {
	if inMax == inMin {
		return outMin
	}
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}
