// SPDX-License-Identifier: MIT
// Package bitint holds the power-of-two checks shared by the PortAudio
// buffer validation and the calibration spectrum.
package bitint

import "math/bits"

// PrevPowerOfTwo returns the largest power of two <= size, or 0 for
// size <= 0. Calibration uses it to fit a transform into one second of
// samples.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
