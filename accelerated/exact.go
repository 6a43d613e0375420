package accelerated

import (
	"errors"
	"fmt"
	"math/bits"
)

// Mantissa widths of the floating point types backends accumulate in.
const (
	Float32Exact = 24
	Float64Exact = 53
)

var ErrInexact = errors.New("accumulation exceeds exact range")

// ProductBound returns k * maxA * maxB, the largest value a dot product of
// length k can reach. ok is false when that does not fit in 64 bits.
func ProductBound(k int, maxA, maxB uint64) (bound uint64, ok bool) {
	if k <= 0 {
		return 0, true
	}

	hi, lo := bits.Mul64(maxA, maxB)
	if hi != 0 {
		return 0, false
	}

	hi, bound = bits.Mul64(lo, uint64(k))

	return bound, hi == 0
}

// CheckExact fails with ErrInexact when a dot product of length k over the
// values in a and b may not be representable in a float with mantissaBits.
func CheckExact(a, b []uint64, k int, mantissaBits uint) error {
	bound, ok := ProductBound(k, maxOf(a), maxOf(b))
	if !ok || bound >= 1<<mantissaBits {
		return fmt.Errorf("accelerated: %w: k=%d needs more than %d bits", ErrInexact, k, mantissaBits)
	}

	return nil
}

// CheckShape validates slice lengths against the m, k, n dimensions.
func CheckShape(out, a, b []uint64, m, k, n int) error {
	if len(a) != m*k {
		return fmt.Errorf("accelerated: a length must be %d, got %d", m*k, len(a))
	}

	if len(b) != k*n {
		return fmt.Errorf("accelerated: b length must be %d, got %d", k*n, len(b))
	}

	if len(out) != m*n {
		return fmt.Errorf("accelerated: out length must be %d, got %d", m*n, len(out))
	}

	return nil
}

func maxOf(vals []uint64) uint64 {
	var m uint64

	for _, v := range vals {
		if v > m {
			m = v
		}
	}

	return m
}
