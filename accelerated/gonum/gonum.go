package gonum

import (
	"fmt"

	"github.com/haormj/tvgen/accelerated"
	"gonum.org/v1/gonum/mat"
)

// Gonum multiplies through gonum's float64 BLAS path. It shares no code with
// the cpu backend, which makes it a useful cross-check for verification.
type Gonum struct {
}

// MatMul implements accelerated.Backend.
func (*Gonum) MatMul(out []uint64, a []uint64, b []uint64, m int, k int, n int) error {
	if err := accelerated.CheckShape(out, a, b, m, k, n); err != nil {
		return err
	}

	if err := accelerated.CheckExact(a, b, k, accelerated.Float64Exact); err != nil {
		return fmt.Errorf("accelerated/gonum: %w", err)
	}

	var prod mat.Dense
	prod.Mul(mat.NewDense(m, k, toFloat64(a)), mat.NewDense(k, n, toFloat64(b)))

	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			out[r*n+c] = uint64(prod.At(r, c))
		}
	}

	return nil
}

// Release implements accelerated.Backend.
func (*Gonum) Release() error {
	return nil
}

// SetupContext implements accelerated.Backend.
func (*Gonum) SetupContext() error {
	return nil
}

func toFloat64(vals []uint64) []float64 {
	f := make([]float64, len(vals))
	for i, v := range vals {
		f[i] = float64(v)
	}

	return f
}

var _ accelerated.Backend = &Gonum{}
