// SPDX-License-Identifier: MIT
package source

import (
	"os"

	applog "ledmeter/internal/log"
	"ledmeter/internal/meter"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// WAV replays the first channel of a PCM file one sample per read. After
// the last sample it loops or reads silence.
type WAV struct {
	samples    []meter.Sample
	sampleRate int
	loop       bool
	pos        int
}

// OpenWAV decodes the whole file into memory.
func OpenWAV(path string, loop bool) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open recording")
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	w := NewWAV(buf, int(dec.BitDepth), loop)
	applog.Infof("Source: replaying %s (%d samples at %d Hz, loop=%v)",
		path, len(w.samples), w.sampleRate, loop)
	return w, nil
}

// NewWAV takes the first channel of buf, rescaled to 16 bits.
func NewWAV(buf *audio.IntBuffer, bitDepth int, loop bool) *WAV {
	channels := 1
	rate := 0
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		rate = buf.Format.SampleRate
	}

	samples := make([]meter.Sample, 0, len(buf.Data)/channels)
	for i := 0; i < len(buf.Data); i += channels {
		samples = append(samples, to16Bit(buf.Data[i], bitDepth))
	}
	return &WAV{samples: samples, sampleRate: rate, loop: loop}
}

func to16Bit(v, bitDepth int) meter.Sample {
	switch {
	case bitDepth == 8:
		// 8-bit PCM is unsigned.
		return clampSample(int64(v-128) << 8)
	case bitDepth > 16:
		return clampSample(int64(v) >> (bitDepth - 16))
	}
	return clampSample(int64(v))
}

func (w *WAV) ReadSample() meter.Sample {
	if w.pos >= len(w.samples) {
		if !w.loop || len(w.samples) == 0 {
			return 0
		}
		w.pos = 0
	}
	v := w.samples[w.pos]
	w.pos++
	return v
}

// Done reports whether a non-looping replay has run out of samples.
func (w *WAV) Done() bool {
	return !w.loop && w.pos >= len(w.samples)
}

func (w *WAV) Len() int {
	return len(w.samples)
}

// SampleRate is the rate stored in the file header.
func (w *WAV) SampleRate() int {
	return w.sampleRate
}

func (w *WAV) Close() error {
	return nil
}
