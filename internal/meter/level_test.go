// SPDX-License-Identifier: MIT
package meter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevelTableValidation(t *testing.T) {
	tests := []struct {
		desc    string
		levels  []Level
		wantErr error
	}{
		{"Empty", nil, ErrNoLevels},
		{"Single", []Level{{100, Green}}, nil},
		{"Ascending", DefaultLevels(), nil},
		{"Repeated threshold", []Level{{10, Green}, {10, Yellow}, {20, Red}}, nil},
		{"Descending pair", []Level{{10, Green}, {30, Yellow}, {20, Red}}, ErrUnsortedThresholds},
		{"Reversed", []Level{{30, Green}, {20, Yellow}, {10, Red}}, ErrUnsortedThresholds},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			table, err := NewLevelTable(tt.levels)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				assert.Nil(t, table)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.levels), table.Len())
		})
	}
}

func TestNewLevelTableCopiesInput(t *testing.T) {
	levels := DefaultLevels()
	table, err := NewLevelTable(levels)
	require.NoError(t, err)

	levels[0].Threshold = 9999
	assert.Equal(t, 350.0, table.Level(0).Threshold)
	assert.Equal(t, referenceThresholds, table.Thresholds())
}

func TestActiveCountReferenceTable(t *testing.T) {
	table := mustDefaultTable()

	tests := []struct {
		rms  float64
		want int
	}{
		{0, 0},
		{349.99, 0},
		{350, 0}, // strict: equal does not light
		{350.0001, 1},
		{360, 1},
		{361, 2},
		{365, 2},
		{369, 3},
		{375, 4},
		{380, 4},
		{380.5, 5},
		{395, 6},
		{405, 7},
		{410, 7},
		{411, 8},
		{1e9, 8},
		{-5, 0},
	}

	for _, tt := range tests {
		t.Run(formatFloat(tt.rms), func(t *testing.T) {
			assert.Equal(t, tt.want, table.ActiveCount(tt.rms))
		})
	}
}

// For every threshold t_i: rms == t_i lights at most i LEDs, rms just
// above lights at least i+1.
func TestActiveCountBoundaries(t *testing.T) {
	table := mustDefaultTable()
	const eps = 1e-6
	for i, th := range referenceThresholds {
		if got := table.ActiveCount(th); got > i {
			t.Errorf("rms=%g: active %d, want <= %d", th, got, i)
		}
		if got := table.ActiveCount(th + eps); got < i+1 {
			t.Errorf("rms=%g+eps: active %d, want >= %d", th, got, i+1)
		}
	}
}

func TestActiveCountRepeatedThresholds(t *testing.T) {
	table, err := NewLevelTable([]Level{{10, Green}, {10, Yellow}, {20, Red}})
	require.NoError(t, err)

	assert.Equal(t, 0, table.ActiveCount(10))
	assert.Equal(t, 2, table.ActiveCount(15))
	assert.Equal(t, 3, table.ActiveCount(21))
}

func BenchmarkActiveCount(b *testing.B) {
	table := mustDefaultTable()
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_ = table.ActiveCount(395)
	}
}
