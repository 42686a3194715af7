// SPDX-License-Identifier: MIT
/*
Package meter implements the sound-level pipeline that turns analog
microphone readings into an LED bar graph:

	Source -> RateGate -> Ring -> RMS -> LevelTable -> Frame -> Display

Sampling and display refresh run on two independent cadences inside a
single cooperative loop. Nothing in this package starts goroutines or
takes locks; a Meter must be driven from one goroutine.
*/
package meter

import (
	"context"
	"fmt"
	"time"

	applog "ledmeter/internal/log"
)

// Source yields one instantaneous reading per call and must not block.
type Source interface {
	ReadSample() Sample
}

// Display renders frames on the LED hardware.
type Display interface {
	SetBrightness(percent uint8) error
	Show(frame Frame) error
}

// Telemetry receives named debug values once per refresh tick.
type Telemetry interface {
	Metric(name string, value float64)
}

// Clock abstracts the monotonic time source so tests can drive the loop.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type nopTelemetry struct{}

func (nopTelemetry) Metric(string, float64) {}

// NopTelemetry discards every metric.
var NopTelemetry Telemetry = nopTelemetry{}

const (
	DefaultSampleWindowMs             = 50
	DefaultSampleRateHz               = 1000
	DefaultUpdateInterval             = 200 * time.Millisecond
	DefaultBrightness                 = 30
	DefaultMaxConsecutiveShowFailures = 5
)

// Options configures a Meter. Zero values fall back to the defaults above,
// except Levels which is required.
type Options struct {
	SampleWindowMs  int
	SampleRateHz    int
	UpdateInterval  time.Duration
	Brightness      uint8
	Levels          *LevelTable
	Clock           Clock
	Telemetry       Telemetry
	MaxShowFailures int
}

// Stats is a point-in-time summary of the loop's work.
type Stats struct {
	Samples   uint64
	Refreshes uint64
	Pushes    uint64
	LastRMS   float64
	Active    int
}

// Meter owns all pipeline state: the sample ring, both cadence
// timestamps, the frame and the last displayed LED count.
type Meter struct {
	source    Source
	display   Display
	clock     Clock
	telemetry Telemetry

	ring   *Ring
	gate   *RateGate
	levels *LevelTable
	frame  Frame

	interval    time.Duration
	brightness  uint8
	lastRefresh time.Time
	lastActive  int

	maxShowFailures int
	showFailures    int

	stats Stats
}

// New builds a Meter anchored at the clock's current time. The first
// sample is admitted one sample period later and the first refresh one
// update interval later.
func New(source Source, display Display, opts Options) (*Meter, error) {
	if source == nil {
		return nil, fmt.Errorf("meter: source cannot be nil")
	}
	if display == nil {
		return nil, fmt.Errorf("meter: display cannot be nil")
	}
	if opts.Levels == nil {
		return nil, fmt.Errorf("meter: level table cannot be nil")
	}
	if opts.SampleWindowMs == 0 {
		opts.SampleWindowMs = DefaultSampleWindowMs
	}
	if opts.SampleRateHz == 0 {
		opts.SampleRateHz = DefaultSampleRateHz
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = DefaultUpdateInterval
	}
	if opts.Brightness == 0 {
		opts.Brightness = DefaultBrightness
	}
	if opts.MaxShowFailures == 0 {
		opts.MaxShowFailures = DefaultMaxConsecutiveShowFailures
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Telemetry == nil {
		opts.Telemetry = NopTelemetry
	}

	if opts.SampleRateHz < 0 || opts.SampleRateHz > 1_000_000 {
		return nil, fmt.Errorf("meter: sample rate %d Hz out of range", opts.SampleRateHz)
	}
	if opts.SampleWindowMs < 0 {
		return nil, fmt.Errorf("meter: sample window %d ms out of range", opts.SampleWindowMs)
	}
	if opts.UpdateInterval < 0 {
		return nil, fmt.Errorf("meter: update interval %s out of range", opts.UpdateInterval)
	}
	size := BufferSize(opts.SampleWindowMs, opts.SampleRateHz)
	if size <= 0 {
		return nil, fmt.Errorf("meter: %d ms at %d Hz holds no samples", opts.SampleWindowMs, opts.SampleRateHz)
	}

	start := opts.Clock.Now()
	return &Meter{
		source:          source,
		display:         display,
		clock:           opts.Clock,
		telemetry:       opts.Telemetry,
		ring:            NewRing(size),
		gate:            NewRateGate(opts.SampleRateHz, start),
		levels:          opts.Levels,
		frame:           NewFrame(opts.Levels.Len()),
		interval:        opts.UpdateInterval,
		brightness:      opts.Brightness,
		lastRefresh:     start,
		maxShowFailures: opts.MaxShowFailures,
	}, nil
}

// Start sets the strip brightness and shows the startup gradient. The
// gradient stays up until the first non-zero level is displayed.
func (m *Meter) Start() error {
	if err := m.display.SetBrightness(m.brightness); err != nil {
		return fmt.Errorf("meter: set brightness: %w", err)
	}
	m.frame.FillGradient()
	if err := m.display.Show(m.frame); err != nil {
		return fmt.Errorf("meter: show startup frame: %w", err)
	}
	return nil
}

// Poll runs one loop iteration at time now: a rate-gated sample, then a
// refresh if the update interval has elapsed. The only error it returns
// is a failed frame push.
func (m *Meter) Poll(now time.Time) error {
	if m.gate.Admit(now) {
		m.ring.Write(m.source.ReadSample())
		m.stats.Samples++
	}

	if now.Sub(m.lastRefresh) >= m.interval {
		return m.refresh(now)
	}
	return nil
}

func (m *Meter) refresh(now time.Time) error {
	rms := RMS(m.ring.Samples())
	active := m.levels.ActiveCount(rms)

	m.lastRefresh = now
	m.stats.Refreshes++
	m.stats.LastRMS = rms

	m.telemetry.Metric("rms", rms)

	if active == m.lastActive {
		return nil
	}

	m.frame.FillLevels(active, m.levels)
	if err := m.display.Show(m.frame); err != nil {
		// lastActive is left alone so the next tick pushes again.
		m.showFailures++
		return fmt.Errorf("meter: show frame: %w", err)
	}
	m.showFailures = 0
	m.lastActive = active
	m.stats.Active = active
	m.stats.Pushes++
	m.telemetry.Metric("leds", float64(active))
	return nil
}

// Run polls until ctx is cancelled, sleeping between the sample and
// refresh deadlines. It returns nil on cancellation and an error once
// the display has failed MaxShowFailures times in a row.
func (m *Meter) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	applog.Infof("Meter: running (buffer %d samples, sample period %s, refresh %s, %d LEDs)",
		m.ring.Cap(), m.gate.Period(), m.interval, m.levels.Len())

	for {
		if err := m.Poll(m.clock.Now()); err != nil {
			applog.Warnf("Meter: %v (%d/%d)", err, m.showFailures, m.maxShowFailures)
			if m.showFailures >= m.maxShowFailures {
				return fmt.Errorf("meter: display failed %d consecutive times: %w", m.showFailures, err)
			}
		}

		next := m.gate.Next()
		if due := m.lastRefresh.Add(m.interval); due.Before(next) {
			next = due
		}

		wait := next.Sub(m.clock.Now())
		if wait <= 0 {
			select {
			case <-ctx.Done():
				return nil
			default:
				continue
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Blank turns every LED off and pushes the frame.
func (m *Meter) Blank() error {
	m.frame.Clear()
	m.lastActive = 0
	return m.display.Show(m.frame)
}

func (m *Meter) Stats() Stats {
	return m.stats
}

// Ring exposes the sample buffer for inspection.
func (m *Meter) Ring() *Ring {
	return m.ring
}

// Frame returns a copy of the current frame.
func (m *Meter) Frame() Frame {
	out := make(Frame, len(m.frame))
	copy(out, m.frame)
	return out
}
