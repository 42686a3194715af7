// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
	"time"

	"ledmeter/internal/meter"
)

// MockDisplay implements meter.Display by recording every call.
type MockDisplay struct {
	mu         sync.Mutex
	Brightness uint8
	Frames     []meter.Frame
	Err        error // returned from Show when set
	Closed     bool
}

func (m *MockDisplay) SetBrightness(percent uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Brightness = percent
	return nil
}

// Show stores a copy of frame so later mutations by the caller are not seen.
func (m *MockDisplay) Show(frame meter.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	f := make(meter.Frame, len(frame))
	copy(f, frame)
	m.Frames = append(m.Frames, f)
	return nil
}

func (m *MockDisplay) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// ShowCount returns the number of successful Show calls.
func (m *MockDisplay) ShowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Frames)
}

// LastFrame returns the most recently shown frame, or nil.
func (m *MockDisplay) LastFrame() meter.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Frames) == 0 {
		return nil
	}
	return m.Frames[len(m.Frames)-1]
}

// ConstantSource always reads Value.
type ConstantSource struct {
	Value meter.Sample
	Reads int
}

func (s *ConstantSource) ReadSample() meter.Sample {
	s.Reads++
	return s.Value
}

// SequenceSource replays Samples in order, wrapping at the end.
type SequenceSource struct {
	Samples []meter.Sample
	pos     int
}

func (s *SequenceSource) ReadSample() meter.Sample {
	if len(s.Samples) == 0 {
		return 0
	}
	v := s.Samples[s.pos]
	s.pos = (s.pos + 1) % len(s.Samples)
	return v
}

// FakeClock is a manually advanced meter.Clock.
type FakeClock struct {
	now time.Time
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

// GenerateSineWave returns size samples of a sine at frequency Hz riding
// on bias, like a biased ADC reading a microphone module.
func GenerateSineWave(size int, sampleRate, frequency float64, bias, amplitude int) []meter.Sample {
	buffer := make([]meter.Sample, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = meter.Sample(float64(bias) + math.Sin(2*math.Pi*frequency*t)*float64(amplitude))
	}
	return buffer
}
