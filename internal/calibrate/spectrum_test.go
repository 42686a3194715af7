// SPDX-License-Identifier: MIT
package calibrate

import (
	"testing"

	"ledmeter/internal/meter"
	"ledmeter/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFFTSize    = 512
	testSampleRate = 1000
)

func TestSpectrumFindsTone(t *testing.T) {
	sp, err := NewSpectrum(testFFTSize, testSampleRate)
	require.NoError(t, err)

	// 125 Hz lands exactly on bin 64; the 380 bias must not win.
	wave := utils.GenerateSineWave(testFFTSize, testSampleRate, 125, 380, 100)
	hz, mag := sp.Peak(wave)
	assert.InDelta(t, 125.0, hz, 1e-9)
	assert.Greater(t, mag, 0.0)
}

func TestSpectrumSilence(t *testing.T) {
	sp, err := NewSpectrum(testFFTSize, testSampleRate)
	require.NoError(t, err)

	hz, mag := sp.Peak(make([]meter.Sample, testFFTSize))
	assert.Zero(t, hz)
	assert.Zero(t, mag)

	hz, _ = sp.Peak(nil)
	assert.Zero(t, hz)
}

func TestSpectrumSizeMustBePowerOfTwo(t *testing.T) {
	for _, size := range []int{0, 2, 100, 1000} {
		_, err := NewSpectrum(size, testSampleRate)
		assert.Error(t, err, "size %d", size)
	}
}

func TestFrequencyForBin(t *testing.T) {
	sp, err := NewSpectrum(testFFTSize, testSampleRate)
	require.NoError(t, err)

	assert.Zero(t, sp.FrequencyForBin(0))
	assert.InDelta(t, 500.0, sp.FrequencyForBin(testFFTSize/2), 1e-9)
	assert.Zero(t, sp.FrequencyForBin(-1))
	assert.Zero(t, sp.FrequencyForBin(testFFTSize))
}

func TestSpectrumPeakZeroAllocs(t *testing.T) {
	sp, err := NewSpectrum(testFFTSize, testSampleRate)
	require.NoError(t, err)
	wave := utils.GenerateSineWave(testFFTSize, testSampleRate, 50, 0, 300)

	sp.Peak(wave)
	allocs := testing.AllocsPerRun(100, func() {
		sp.Peak(wave)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Peak, got %.1f", allocs)
	}
}

func BenchmarkSpectrumPeak(b *testing.B) {
	sp, _ := NewSpectrum(testFFTSize, testSampleRate)
	wave := utils.GenerateSineWave(testFFTSize, testSampleRate, 50, 380, 100)

	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		sp.Peak(wave)
	}
}
