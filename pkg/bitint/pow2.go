/*
Package bitint provides the integer checks used to size STFT frames and
ring buffers before streaming starts.

All functions are pure, allocation-free and O(1), so they are safe to call
from the prepare path as well as from tests that run alongside the audio
callback.

Usage:

	// Reject a window size the FFT plan cannot use.
	if !bitint.IsPowerOfTwo(windowSize) {
		hint := bitint.NextPowerOfTwo(windowSize)
		...
	}

	// A ring must hold a whole number of windows.
	ok := bitint.IsMultipleOf(ringCapacity, windowSize)

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that an
exact power of two maps to itself:

	size = 1024, size-1 = 1023 (0b1111111111), bits.Len = 10, 1<<10 = 1024
	size = 1000, size-1 =  999 (0b1111100111), bits.Len = 10, 1<<10 = 1024
	size = 1025, size-1 = 1024 (0b10000000000), bits.Len = 11, 1<<11 = 2048
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
//	Input  Output
//	1024   1024
//	1000   1024
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of two have a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// IsMultipleOf reports whether n is a positive whole multiple of unit.
func IsMultipleOf(n, unit int) bool {
	return n > 0 && unit > 0 && n%unit == 0
}
