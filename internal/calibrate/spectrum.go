// SPDX-License-Identifier: MIT
package calibrate

import (
	"fmt"
	"math/cmplx"

	"ledmeter/internal/meter"
	"ledmeter/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Spectrum finds the dominant frequency in a block of meter samples.
// Buffers are allocated once; Peak does not allocate.
type Spectrum struct {
	size       int
	sampleRate float64
	fft        *fourier.FFT
	input      []float64
	coeffs     []complex128
	window     []float64
}

// NewSpectrum prepares a transform of size samples (a power of two) taken
// at sampleRate Hz.
func NewSpectrum(size int, sampleRate float64) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(size) || size < 4 {
		return nil, fmt.Errorf("spectrum size %d must be a power of two >= 4", size)
	}

	w := make([]float64, size)
	for i := range w {
		w[i] = 1
	}
	window.Hann(w)

	return &Spectrum{
		size:       size,
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(size),
		input:      make([]float64, size),
		coeffs:     make([]complex128, size/2+1),
		window:     w,
	}, nil
}

func (s *Spectrum) Size() int {
	return s.size
}

// Peak returns the frequency and magnitude of the strongest non-DC bin.
// The mean is removed first so the ADC bias does not leak into low bins.
// Fewer than Size samples are zero padded; extra samples are ignored.
func (s *Spectrum) Peak(samples []meter.Sample) (hz, magnitude float64) {
	n := min(len(samples), s.size)
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range samples[:n] {
		sum += float64(v)
	}
	mean := sum / float64(n)

	for i := range s.input {
		if i < n {
			s.input[i] = (float64(samples[i]) - mean) * s.window[i]
		} else {
			s.input[i] = 0
		}
	}

	s.fft.Coefficients(s.coeffs, s.input)

	peak := 0
	for i := 1; i < len(s.coeffs); i++ {
		if m := cmplx.Abs(s.coeffs[i]); m > magnitude {
			magnitude = m
			peak = i
		}
	}
	if peak == 0 {
		return 0, 0
	}
	return s.FrequencyForBin(peak), magnitude
}

// FrequencyForBin converts a bin index to Hz.
func (s *Spectrum) FrequencyForBin(i int) float64 {
	if i < 0 || i >= len(s.coeffs) {
		return 0
	}
	return s.fft.Freq(i) * s.sampleRate
}
