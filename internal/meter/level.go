// SPDX-License-Identifier: MIT
package meter

import (
	"errors"
	"fmt"
)

var (
	ErrNoLevels           = errors.New("level table is empty")
	ErrUnsortedThresholds = errors.New("level thresholds must be ascending")
)

// Level pairs the amplitude an LED must exceed with the color it shows.
type Level struct {
	Threshold float64
	Color     Color
}

// LevelTable is an ascending, non-empty sequence of levels, one per LED.
type LevelTable struct {
	levels []Level
}

// NewLevelTable validates and copies levels. Thresholds may repeat but
// must never decrease, since ActiveCount stops at the first threshold
// that is not exceeded.
func NewLevelTable(levels []Level) (*LevelTable, error) {
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Threshold < levels[i-1].Threshold {
			return nil, fmt.Errorf("%w: level %d (%g) < level %d (%g)",
				ErrUnsortedThresholds, i, levels[i].Threshold, i-1, levels[i-1].Threshold)
		}
	}
	t := &LevelTable{levels: make([]Level, len(levels))}
	copy(t.levels, levels)
	return t, nil
}

// DefaultLevels is the eight-LED green-to-red table tuned for a 10-bit
// ADC microphone module.
func DefaultLevels() []Level {
	return []Level{
		{350, Green},
		{360, GreenYellow},
		{365, Yellow},
		{370, Gold},
		{380, Orange},
		{390, OrangeRed},
		{400, Red},
		{410, DarkRed},
	}
}

// ActiveCount maps an amplitude to the number of lit LEDs. LED i is lit
// only if rms is strictly greater than its threshold and every LED below
// it is lit.
func (t *LevelTable) ActiveCount(rms float64) int {
	active := 0
	for i, l := range t.levels {
		if rms > l.Threshold {
			active = i + 1
		} else {
			break
		}
	}
	return active
}

func (t *LevelTable) Len() int {
	return len(t.levels)
}

func (t *LevelTable) Level(i int) Level {
	return t.levels[i]
}

// Thresholds returns a copy of the thresholds in LED order.
func (t *LevelTable) Thresholds() []float64 {
	out := make([]float64, len(t.levels))
	for i, l := range t.levels {
		out[i] = l.Threshold
	}
	return out
}
