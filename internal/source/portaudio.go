// SPDX-License-Identifier: MIT
/*
Package source provides the sample sources the meter polls:

  - PortAudio captures a host microphone and emulates a biased ADC.
  - Serial reads decimal ADC readings streamed by a microcontroller.
  - WAV replays a recording.

Hardware sources publish their newest reading from their own goroutine or
audio thread. ReadSample never blocks: it returns that reading, which
repeats until a newer one arrives.
*/
package source

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"ledmeter/internal/config"
	applog "ledmeter/internal/log"
	"ledmeter/internal/meter"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
)

// PortAudio captures mono 16-bit audio and decimates it to the meter's
// sample rate. Each kept sample is converted as an ADC would report it:
// bias + sample*span/32768.
type PortAudio struct {
	device  *portaudio.DeviceInfo
	stream  *portaudio.Stream
	latency time.Duration

	captureRate float64
	frames      int
	bias        int
	span        int

	// Only touched from the audio callback.
	stride int
	phase  int

	latest   atomic.Int32
	captured atomic.Uint64
}

// NewPortAudio resolves the configured input device. PortAudio must be
// initialized. meterRateHz is the rate the meter will poll at.
func NewPortAudio(cfg config.SourceConfig, meterRateHz int) (*PortAudio, error) {
	device, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	p := newPortAudio(cfg, meterRateHz)
	p.device = device
	if cfg.LowLatency {
		p.latency = device.DefaultLowInputLatency
	} else {
		p.latency = device.DefaultHighInputLatency
	}
	return p, nil
}

func newPortAudio(cfg config.SourceConfig, meterRateHz int) *PortAudio {
	stride := 1
	if meterRateHz > 0 {
		stride = int(math.Round(cfg.CaptureRate / float64(meterRateHz)))
	}
	if stride < 1 {
		stride = 1
	}
	return &PortAudio{
		captureRate: cfg.CaptureRate,
		frames:      cfg.FramesPerBuffer,
		bias:        cfg.Bias,
		span:        cfg.Span,
		stride:      stride,
	}
}

// Start opens and starts the input stream.
func (p *PortAudio) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   p.device,
			Channels: 1,
			Latency:  p.latency,
		},
		FramesPerBuffer: p.frames,
		SampleRate:      p.captureRate,
	}

	stream, err := portaudio.OpenStream(params, p.process)
	if err != nil {
		return errors.Wrapf(err, "failed to open input stream on %q", p.device.Name)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return errors.Wrap(err, "failed to start input stream")
	}
	p.stream = stream

	applog.Infof("Source: capturing from %q at %.0f Hz, keeping every %d. sample",
		p.device.Name, p.captureRate, p.stride)
	return nil
}

// process is the stream callback. It runs on the PortAudio thread and
// must not allocate or block.
func (p *PortAudio) process(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for _, s := range in {
		p.phase++
		if p.phase < p.stride {
			continue
		}
		p.phase = 0

		p.latest.Store(int32(adcReading(s, p.bias, p.span)))
		p.captured.Add(1)
	}
}

// ReadSample returns the newest decimated reading. Readings the meter did
// not poll in time are overwritten, never queued.
func (p *PortAudio) ReadSample() meter.Sample {
	return meter.Sample(p.latest.Load())
}

// Captured counts decimated readings published by the callback.
func (p *PortAudio) Captured() uint64 {
	return p.captured.Load()
}

// Close stops the stream. It is safe to call more than once.
func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop input stream")
	}
	if err := p.stream.Close(); err != nil {
		return errors.Wrap(err, "failed to close input stream")
	}
	p.stream = nil
	applog.Debugf("Source: %d readings captured", p.captured.Load())
	return nil
}

func adcReading(s int16, bias, span int) meter.Sample {
	return clampSample(int64(bias) + int64(s)*int64(span)/32768)
}

func clampSample(v int64) meter.Sample {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return meter.Sample(v)
}
