package domain

import "math/bits"

// addAmount returns a+b, reporting false when the sum does not fit in 64 bits.
func addAmount(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
