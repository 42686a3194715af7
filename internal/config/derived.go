// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"time"

	"ledmeter/internal/meter"
)

// BufferSize returns the sample ring capacity implied by the meter window.
func (c *Config) BufferSize() int {
	return meter.BufferSize(c.Meter.SampleWindowMs, c.Meter.SampleRateHz)
}

func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Meter.UpdateIntervalMs) * time.Millisecond
}

// LevelTable parses the configured colors and builds the validated table.
func (c *Config) LevelTable() (*meter.LevelTable, error) {
	levels := make([]meter.Level, len(c.Meter.Levels))
	for i, l := range c.Meter.Levels {
		color, err := meter.ParseColor(l.Color)
		if err != nil {
			return nil, fmt.Errorf("meter.levels[%d]: %w", i, err)
		}
		levels[i] = meter.Level{Threshold: l.Threshold, Color: color}
	}
	table, err := meter.NewLevelTable(levels)
	if err != nil {
		return nil, fmt.Errorf("meter.levels: %w", err)
	}
	return table, nil
}

// MeterOptions translates the meter section for meter.New. Clock and
// telemetry are left for the caller.
func (c *Config) MeterOptions() (meter.Options, error) {
	table, err := c.LevelTable()
	if err != nil {
		return meter.Options{}, err
	}
	return meter.Options{
		SampleWindowMs: c.Meter.SampleWindowMs,
		SampleRateHz:   c.Meter.SampleRateHz,
		UpdateInterval: c.UpdateInterval(),
		Brightness:     uint8(c.Meter.Brightness),
		Levels:         table,
	}, nil
}

// NumLEDs is the strip length, one LED per level.
func (c *Config) NumLEDs() int {
	return len(c.Meter.Levels)
}

// NameRecording fills Recording.Output with recording-DD-MM-YYYY-HHMMSS.wav
// (UTC) when recording is enabled without a file name.
func (c *Config) NameRecording(now time.Time) {
	if c.Recording.Enabled && c.Recording.Output == "" {
		c.Recording.Output = "recording-" + now.UTC().Format("02-01-2006-150405") + ".wav"
	}
}
