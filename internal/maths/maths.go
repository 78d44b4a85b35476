package maths

import (
	"math"
	"math/bits"
)

func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// CeilLog2 returns the smallest k such that 2^k >= x. CeilLog2(1) == 0.
func CeilLog2(x int) int {
	if x <= 1 {
		return 0
	}
	return bits.Len(uint(x - 1))
}

// BitsFor returns the field width needed to hold values in [0, max],
// never less than 1 bit.
func BitsFor(max uint64) int {
	w := bits.Len64(max)
	if w < 1 {
		w = 1
	}
	return w
}

// LoadBalanceBucketSpan returns max(2, ceil((1/delta^2) * log2(1/delta))),
// the bucket width that keeps a load-balancing table's expected overflow
// rate near delta.
func LoadBalanceBucketSpan(delta float64) int {
	if delta <= 0 {
		return 2
	}
	span := (1 / (delta * delta)) * math.Log2(1/delta)
	b := int(math.Ceil(span))
	if b < 2 {
		b = 2
	}
	return b
}

// TwoChoiceBucketSpan returns max(2, ceil(log2(log2(numSlots)))), the
// bucket width for the power-of-two-choices table.
func TwoChoiceBucketSpan(numSlots int) int {
	logN := 1.0
	if numSlots > 1 {
		logN = math.Log2(float64(numSlots))
	}
	b := int(math.Ceil(math.Log2(logN)))
	if b < 2 {
		b = 2
	}
	return b
}
