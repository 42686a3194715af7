// SPDX-License-Identifier: MIT
package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"ledmeter/internal/meter"
	"ledmeter/internal/record"
	"ledmeter/internal/source"
	"ledmeter/pkg/utils"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVReplaysRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.wav")
	want := utils.GenerateSineWave(600, 1000, 50, 380, 30)

	rec := record.NewRecorder(1000)
	require.NoError(t, rec.Start(path))
	for _, s := range want {
		rec.Write(s)
	}
	require.NoError(t, rec.Stop())

	w, err := source.OpenWAV(path, false)
	require.NoError(t, err)
	assert.Equal(t, 1000, w.SampleRate())
	require.Equal(t, len(want), w.Len())

	for i, s := range want {
		if got := w.ReadSample(); got != s {
			t.Fatalf("sample %d = %d, want %d", i, got, s)
		}
	}
	assert.True(t, w.Done())
	assert.Equal(t, meter.Sample(0), w.ReadSample(), "silence after the end")
}

func TestWAVLoops(t *testing.T) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: 1000},
		Data:   []int{10, 20, 30},
	}
	w := source.NewWAV(buf, 16, true)

	var got []meter.Sample
	for i := 0; i < 7; i++ {
		got = append(got, w.ReadSample())
	}
	assert.Equal(t, []meter.Sample{10, 20, 30, 10, 20, 30, 10}, got)
	assert.False(t, w.Done())
}

func TestWAVTakesFirstChannelAndRescales(t *testing.T) {
	tests := []struct {
		desc     string
		bitDepth int
		data     []int
		want     []meter.Sample
	}{
		{"Stereo 16-bit", 16, []int{1, -1, 2, -2}, []meter.Sample{1, 2}},
		{"Stereo 24-bit", 24, []int{256, 0, -512, 0}, []meter.Sample{1, -2}},
		{"Stereo 8-bit unsigned", 8, []int{128, 0, 129, 0}, []meter.Sample{0, 256}},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			buf := &audio.IntBuffer{
				Format: &audio.Format{NumChannels: 2, SampleRate: 8000},
				Data:   tt.data,
			}
			w := source.NewWAV(buf, tt.bitDepth, false)
			require.Equal(t, len(tt.want), w.Len())
			for _, s := range tt.want {
				assert.Equal(t, s, w.ReadSample())
			}
		})
	}
}

func TestOpenWAVErrors(t *testing.T) {
	_, err := source.OpenWAV(filepath.Join(t.TempDir(), "missing.wav"), false)
	assert.Error(t, err)

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("not a riff file at all"), 0644))
	_, err = source.OpenWAV(bogus, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid WAV file")
}

func TestEmptyLoopingWAVReadsSilence(t *testing.T) {
	w := source.NewWAV(&audio.IntBuffer{}, 16, true)
	assert.Equal(t, meter.Sample(0), w.ReadSample())
}
