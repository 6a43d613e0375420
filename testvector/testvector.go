// Package testvector produces operand and answer matrices for PE-grid
// matrix multiply testbenches and writes them in the device line layout.
package testvector

import (
	"fmt"

	"github.com/haormj/tvgen/accelerated"
	"github.com/haormj/tvgen/matrix"
)

// Vectors is one generated test case. AT is A transposed, the form the
// device consumes the left operand in.
type Vectors struct {
	A  *matrix.Matrix
	AT *matrix.Matrix
	B  *matrix.Matrix
	C  *matrix.Matrix
}

// Generate fills A then B from src and multiplies them with backend.
func Generate(cfg Config, src matrix.Source, backend accelerated.Backend) (*Vectors, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a, err := matrix.Random(cfg.M, cfg.K, cfg.BitWidth, src)
	if err != nil {
		return nil, fmt.Errorf("testvector: failed to generate a: %w", err)
	}

	b, err := matrix.Random(cfg.K, cfg.N, cfg.BitWidth, src)
	if err != nil {
		return nil, fmt.Errorf("testvector: failed to generate b: %w", err)
	}

	c, err := matrix.Multiply(backend, a, b)
	if err != nil {
		return nil, fmt.Errorf("testvector: %w", err)
	}

	return &Vectors{
		A:  a,
		AT: a.Transpose(),
		B:  b,
		C:  c,
	}, nil
}
