// SPDX-License-Identifier: MIT
/*
Package calibrate measures the RMS distribution a source produces in a
given room and proposes level thresholds from it. The measurement runs the
same gate, ring and RMS path as the meter, with the display discarded.
*/
package calibrate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"ledmeter/internal/config"
	applog "ledmeter/internal/log"
	"ledmeter/internal/meter"
	"ledmeter/pkg/bitint"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDuration = 10 * time.Second
	maxSpectrumSize = 4096
)

// Options configures a calibration run. Zero values take the meter
// defaults; Levels defaults to the length of the default level table.
type Options struct {
	SampleWindowMs int
	SampleRateHz   int
	UpdateInterval time.Duration
	Duration       time.Duration
	Levels         int
}

// Result summarizes a run.
type Result struct {
	Duration   time.Duration
	Samples    uint64
	RMS        []float64 // Sorted ascending.
	Min        float64
	Max        float64
	Mean       float64
	StdDev     float64
	PeakHz     float64 // Dominant frequency of the last samples, 0 if unknown.
	Thresholds []float64
}

type rmsCollector struct {
	values []float64
}

func (c *rmsCollector) Metric(name string, value float64) {
	if name == "rms" {
		c.values = append(c.values, value)
	}
}

// tap keeps the most recent samples read through it for the spectrum.
type tap struct {
	src  meter.Source
	ring *meter.Ring
	n    int
}

func (t *tap) ReadSample() meter.Sample {
	s := t.src.ReadSample()
	t.ring.Write(s)
	t.n++
	return s
}

type discard struct{}

func (discard) SetBrightness(uint8) error { return nil }
func (discard) Show(meter.Frame) error    { return nil }

// Run samples src for opts.Duration or until ctx is done, whichever comes
// first, and derives thresholds from the observed RMS values.
func Run(ctx context.Context, src meter.Source, opts Options) (*Result, error) {
	if opts.SampleRateHz == 0 {
		opts.SampleRateHz = meter.DefaultSampleRateHz
	}
	if opts.Duration == 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Levels == 0 {
		opts.Levels = len(meter.DefaultLevels())
	}
	if opts.Duration < 0 || opts.Levels < 0 {
		return nil, fmt.Errorf("calibrate: invalid options %+v", opts)
	}

	table, err := meter.NewLevelTable(meter.DefaultLevels())
	if err != nil {
		return nil, err
	}

	size := min(bitint.PrevPowerOfTwo(opts.SampleRateHz), maxSpectrumSize)
	tapped := &tap{src: src, ring: meter.NewRing(max(size, 1))}
	collector := &rmsCollector{}

	m, err := meter.New(tapped, discard{}, meter.Options{
		SampleWindowMs: opts.SampleWindowMs,
		SampleRateHz:   opts.SampleRateHz,
		UpdateInterval: opts.UpdateInterval,
		Levels:         table,
		Telemetry:      collector,
	})
	if err != nil {
		return nil, err
	}

	applog.Infof("Calibrate: measuring for %s", opts.Duration)
	runCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	start := time.Now()
	if err := m.Run(runCtx); err != nil {
		return nil, err
	}

	if len(collector.values) == 0 {
		return nil, fmt.Errorf("calibrate: no RMS values collected, run longer than one update interval")
	}

	res := Summarize(collector.values, opts.Levels)
	res.Duration = time.Since(start)
	res.Samples = m.Stats().Samples

	if tapped.n >= size && size >= 4 {
		sp, err := NewSpectrum(size, float64(opts.SampleRateHz))
		if err == nil {
			res.PeakHz, _ = sp.Peak(tapped.ring.Snapshot())
		}
	}
	return res, nil
}

// Summarize computes statistics and n thresholds from raw RMS values.
// Threshold i is the (i+1)/(n+1) quantile, so the thresholds split the
// observed distribution into n+1 equally populated bands.
func Summarize(values []float64, n int) *Result {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	res := &Result{RMS: sorted}
	if len(sorted) == 0 {
		return res
	}
	res.Min = sorted[0]
	res.Max = sorted[len(sorted)-1]
	res.Mean, res.StdDev = stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		res.StdDev = 0
	}

	res.Thresholds = make([]float64, n)
	for i := range res.Thresholds {
		p := float64(i+1) / float64(n+1)
		res.Thresholds[i] = round1(stat.Quantile(p, stat.Empirical, sorted, nil))
	}
	return res
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Levels pairs the thresholds with colors. When there are fewer colors
// than thresholds the last color repeats.
func (r *Result) Levels(colors []string) []config.LevelConfig {
	levels := make([]config.LevelConfig, len(r.Thresholds))
	for i, th := range r.Thresholds {
		color := "red"
		if len(colors) > 0 {
			color = colors[min(i, len(colors)-1)]
		}
		levels[i] = config.LevelConfig{Threshold: th, Color: color}
	}
	return levels
}

// YAML renders the thresholds as a meter.levels block for the config file.
func (r *Result) YAML(colors []string) ([]byte, error) {
	doc := struct {
		Meter struct {
			Levels []config.LevelConfig `yaml:"levels"`
		} `yaml:"meter"`
	}{}
	doc.Meter.Levels = r.Levels(colors)
	return yaml.Marshal(doc)
}
