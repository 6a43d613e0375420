package cpu

import "github.com/haormj/tvgen/accelerated"

// CPU is the exact reference backend. It accumulates in uint64 and never
// rounds; callers bound the accumulation with accelerated.ProductBound.
type CPU struct {
}

// MatMul implements accelerated.Backend.
func (*CPU) MatMul(out []uint64, a []uint64, b []uint64, m int, k int, n int) error {
	if err := accelerated.CheckShape(out, a, b, m, k, n); err != nil {
		return err
	}

	var acc uint64

	for r := 0; r < m; r++ {
		row := a[r*k : (r+1)*k]

		for c := 0; c < n; c++ {
			acc = 0

			for i, v := range row {
				acc += v * b[i*n+c]
			}

			out[r*n+c] = acc
		}
	}

	return nil
}

// Release implements accelerated.Backend.
func (*CPU) Release() error {
	return nil
}

// SetupContext implements accelerated.Backend.
func (*CPU) SetupContext() error {
	return nil
}

var _ accelerated.Backend = &CPU{}
