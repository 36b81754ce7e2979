// SPDX-License-Identifier: MIT

// Package bitint provides power-of-two helpers used for FFT and ring
// buffer sizing. All functions are allocation-free and constant time.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
// The size-1 before the bit length computation is what keeps exact
// powers of 2 (8 stays 8, not 16). Non-positive inputs return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// A power of 2 has exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
