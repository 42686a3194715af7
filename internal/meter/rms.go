// SPDX-License-Identifier: MIT
package meter

import "math"

// RMS returns the root-mean-square of every sample in the buffer. The sum
// of squares is accumulated in int64, which holds len(samples)*32768^2
// for any buffer that fits in memory.
func RMS(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	var sumSquare int64
	for _, s := range samples {
		v := int64(s)
		sumSquare += v * v
	}

	return math.Sqrt(float64(sumSquare) / float64(len(samples)))
}
