// SPDX-License-Identifier: MIT
package meter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledmeter/internal/meter"
	"ledmeter/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMetric struct {
	name  string
	value float64
}

type recordingTelemetry struct {
	metrics []recordedMetric
}

func (r *recordingTelemetry) Metric(name string, value float64) {
	r.metrics = append(r.metrics, recordedMetric{name, value})
}

func (r *recordingTelemetry) values(name string) []float64 {
	var out []float64
	for _, m := range r.metrics {
		if m.name == name {
			out = append(out, m.value)
		}
	}
	return out
}

type harness struct {
	clock     *utils.FakeClock
	display   *utils.MockDisplay
	telemetry *recordingTelemetry
	meter     *meter.Meter
}

func newHarness(t *testing.T, source meter.Source) *harness {
	t.Helper()
	table, err := meter.NewLevelTable(meter.DefaultLevels())
	require.NoError(t, err)

	h := &harness{
		clock:     utils.NewFakeClock(),
		display:   &utils.MockDisplay{},
		telemetry: &recordingTelemetry{},
	}
	h.meter, err = meter.New(source, h.display, meter.Options{
		Levels:    table,
		Clock:     h.clock,
		Telemetry: h.telemetry,
	})
	require.NoError(t, err)
	return h
}

// step advances the clock by d in 1ms ticks, polling after each.
func (h *harness) step(t *testing.T, d time.Duration) {
	t.Helper()
	for elapsed := time.Duration(0); elapsed < d; elapsed += time.Millisecond {
		require.NoError(t, h.meter.Poll(h.clock.Advance(time.Millisecond)))
	}
}

func TestMeterDefaults(t *testing.T) {
	h := newHarness(t, &utils.ConstantSource{})
	assert.Equal(t, 50, h.meter.Ring().Cap())
	assert.Len(t, h.meter.Frame(), 8)
}

func TestMeterStartShowsGradient(t *testing.T) {
	h := newHarness(t, &utils.ConstantSource{})
	require.NoError(t, h.meter.Start())

	assert.Equal(t, uint8(30), h.display.Brightness)
	require.Equal(t, 1, h.display.ShowCount())
	first := h.display.LastFrame()
	assert.Equal(t, meter.Color{R: 150, G: 255, B: 0}, first[0])
	assert.Equal(t, meter.Color{R: 150, G: 0, B: 255}, first[7])
}

func TestMeterSilenceKeepsStartupFrame(t *testing.T) {
	h := newHarness(t, &utils.ConstantSource{Value: 0})
	require.NoError(t, h.meter.Start())

	h.step(t, time.Second)

	assert.Equal(t, 1, h.display.ShowCount(), "count stays 0, so no push after the gradient")
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, h.telemetry.values("rms"))
}

func TestMeterEndToEndFourLEDs(t *testing.T) {
	src := &utils.ConstantSource{Value: 375}
	h := newHarness(t, src)

	// 200ms of polling fills the 50-sample window several times over.
	h.step(t, 200*time.Millisecond)

	require.Equal(t, 1, h.display.ShowCount())
	assert.Equal(t, meter.Frame{
		meter.Green, meter.GreenYellow, meter.Yellow, meter.Gold,
		meter.Black, meter.Black, meter.Black, meter.Black,
	}, h.display.LastFrame())

	stats := h.meter.Stats()
	assert.Equal(t, uint64(200), stats.Samples)
	assert.Equal(t, uint64(1), stats.Refreshes)
	assert.Equal(t, 4, stats.Active)
	assert.InDelta(t, 375.0, stats.LastRMS, 1e-9)
	assert.Equal(t, []float64{4}, h.telemetry.values("leds"))
}

func TestMeterSuppressesUnchangedFrames(t *testing.T) {
	h := newHarness(t, &utils.ConstantSource{Value: 395})
	h.step(t, 2*time.Second)

	assert.Equal(t, uint64(10), h.meter.Stats().Refreshes)
	assert.Equal(t, 1, h.display.ShowCount(), "only the transition from 0 to 6 is pushed")
	assert.Equal(t, 6, h.display.LastFrame().ActiveCount())
}

func TestMeterPushesOnEveryChange(t *testing.T) {
	src := &utils.ConstantSource{Value: 375}
	h := newHarness(t, src)

	h.step(t, 200*time.Millisecond)
	src.Value = 411
	h.step(t, 200*time.Millisecond)
	src.Value = 411
	h.step(t, 200*time.Millisecond)
	src.Value = 0
	h.step(t, 200*time.Millisecond)

	require.Equal(t, 3, h.display.ShowCount())
	assert.Equal(t, 4, h.display.Frames[0].ActiveCount())
	assert.Equal(t, 8, h.display.Frames[1].ActiveCount())
	assert.Equal(t, 0, h.display.Frames[2].ActiveCount())
}

// The first window after start mixes zero seed with real samples.
func TestMeterColdStartTransient(t *testing.T) {
	src := &utils.ConstantSource{Value: 400}
	table, err := meter.NewLevelTable(meter.DefaultLevels())
	require.NoError(t, err)
	clock := utils.NewFakeClock()
	display := &utils.MockDisplay{}
	m, err := meter.New(src, display, meter.Options{
		Levels:         table,
		Clock:          clock,
		UpdateInterval: 25 * time.Millisecond,
	})
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		require.NoError(t, m.Poll(clock.Advance(time.Millisecond)))
	}

	// 25 of 50 slots hold 400: sqrt(25*400^2/50) = 282.8, below every threshold.
	assert.InDelta(t, 282.84, m.Stats().LastRMS, 0.01)
	assert.Equal(t, 0, display.ShowCount())

	for i := 0; i < 25; i++ {
		require.NoError(t, m.Poll(clock.Advance(time.Millisecond)))
	}
	assert.InDelta(t, 400.0, m.Stats().LastRMS, 1e-9)
	assert.Equal(t, 7, display.LastFrame().ActiveCount())
}

func TestMeterCadencesAreIndependent(t *testing.T) {
	src := &utils.ConstantSource{Value: 1}
	h := newHarness(t, src)

	// A single poll 5s late admits one sample and one refresh, no catch-up.
	require.NoError(t, h.meter.Poll(h.clock.Advance(5*time.Second)))
	assert.Equal(t, 1, src.Reads)
	assert.Equal(t, uint64(1), h.meter.Stats().Refreshes)

	// 100us later neither cadence is due.
	require.NoError(t, h.meter.Poll(h.clock.Advance(100*time.Microsecond)))
	assert.Equal(t, 1, src.Reads)
	assert.Equal(t, uint64(1), h.meter.Stats().Refreshes)

	// Sampling resumes after one period, refresh only after 200ms.
	require.NoError(t, h.meter.Poll(h.clock.Advance(900*time.Microsecond)))
	assert.Equal(t, 2, src.Reads)
	assert.Equal(t, uint64(1), h.meter.Stats().Refreshes)
}

func TestMeterRetriesFailedShow(t *testing.T) {
	h := newHarness(t, &utils.ConstantSource{Value: 375})
	h.display.Err = errors.New("spi: write timeout")

	var failures int
	for i := 0; i < 200; i++ {
		if err := h.meter.Poll(h.clock.Advance(time.Millisecond)); err != nil {
			failures++
			assert.ErrorIs(t, err, h.display.Err)
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 0, h.meter.Stats().Active)

	h.display.Err = nil
	h.step(t, 200*time.Millisecond)
	require.Equal(t, 1, h.display.ShowCount(), "same level is pushed again after a failure")
	assert.Equal(t, 4, h.display.LastFrame().ActiveCount())
}

func TestMeterBlank(t *testing.T) {
	h := newHarness(t, &utils.ConstantSource{Value: 411})
	h.step(t, 200*time.Millisecond)
	require.NoError(t, h.meter.Blank())

	assert.Equal(t, 0, h.display.LastFrame().ActiveCount())
	assert.Len(t, h.display.LastFrame(), 8)
}

func TestNewValidatesOptions(t *testing.T) {
	table, err := meter.NewLevelTable(meter.DefaultLevels())
	require.NoError(t, err)
	src := &utils.ConstantSource{}
	disp := &utils.MockDisplay{}

	tests := []struct {
		desc    string
		source  meter.Source
		display meter.Display
		opts    meter.Options
	}{
		{"Nil source", nil, disp, meter.Options{Levels: table}},
		{"Nil display", src, nil, meter.Options{Levels: table}},
		{"Nil levels", src, disp, meter.Options{}},
		{"Window too short", src, disp, meter.Options{Levels: table, SampleWindowMs: 1, SampleRateHz: 500}},
		{"Negative rate", src, disp, meter.Options{Levels: table, SampleRateHz: -1}},
		{"Negative interval", src, disp, meter.Options{Levels: table, UpdateInterval: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			m, err := meter.New(tt.source, tt.display, tt.opts)
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestMeterRunStopsOnCancel(t *testing.T) {
	table, err := meter.NewLevelTable(meter.DefaultLevels())
	require.NoError(t, err)
	src := &utils.ConstantSource{Value: 420}
	display := &utils.MockDisplay{}

	m, err := meter.New(src, display, meter.Options{
		Levels:         table,
		UpdateInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	require.NoError(t, m.Run(ctx))
	assert.Greater(t, src.Reads, 50)
	assert.GreaterOrEqual(t, m.Stats().Refreshes, uint64(3))
	assert.Equal(t, 8, display.LastFrame().ActiveCount())
}

func TestMeterRunGivesUpAfterRepeatedFailures(t *testing.T) {
	table, err := meter.NewLevelTable(meter.DefaultLevels())
	require.NoError(t, err)
	display := &utils.MockDisplay{Err: errors.New("strip unplugged")}

	m, err := meter.New(&utils.ConstantSource{Value: 420}, display, meter.Options{
		Levels:          table,
		UpdateInterval:  5 * time.Millisecond,
		MaxShowFailures: 3,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = m.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, display.Err)
	assert.Contains(t, err.Error(), "3 consecutive times")
}
