package testvector

import (
	"fmt"
	"math/bits"

	"github.com/haormj/tvgen/accelerated"
	"github.com/haormj/tvgen/format"
	"github.com/haormj/tvgen/matrix"
)

// Defaults target a 32x32 PE array with 8 bit operands.
const (
	DefaultM        = 256
	DefaultK        = 256
	DefaultN        = 256
	DefaultPERows   = 32
	DefaultPECols   = 32
	DefaultBitWidth = 8
)

// resultWidthFactor is how much wider answer elements are printed than
// operand elements.
const resultWidthFactor = 4

// Config describes the matrix shapes and the device the vectors target.
// A is M x K, B is K x N.
type Config struct {
	M, K, N int

	PERows   int
	PECols   int
	BitWidth int

	Wrap    format.WrapRule
	Decimal bool
	Seed    uint64
}

func DefaultConfig() Config {
	return Config{
		M:        DefaultM,
		K:        DefaultK,
		N:        DefaultN,
		PERows:   DefaultPERows,
		PECols:   DefaultPECols,
		BitWidth: DefaultBitWidth,
		Wrap:     format.WrapModulo,
	}
}

// OperandDigits is the hex width of A and B elements.
func (c Config) OperandDigits() int {
	return format.HexDigits(c.BitWidth)
}

// ResultDigits is the hex width of answer elements.
func (c Config) ResultDigits() int {
	return resultWidthFactor * c.OperandDigits()
}

// Validate checks shapes and that K * (2^w - 1)^2 fits both the 64 bit
// accumulator and the answer's hex width.
func (c Config) Validate() error {
	for _, dim := range []struct {
		name string
		v    int
	}{
		{"m", c.M}, {"k", c.K}, {"n", c.N}, {"pe rows", c.PERows}, {"pe cols", c.PECols},
	} {
		if dim.v <= 0 {
			return fmt.Errorf("testvector: %s must be positive, got %d", dim.name, dim.v)
		}
	}

	maxVal, err := matrix.MaxValue(c.BitWidth)
	if err != nil {
		return fmt.Errorf("testvector: %w", err)
	}

	bound, ok := accelerated.ProductBound(c.K, maxVal, maxVal)
	if !ok {
		return fmt.Errorf("testvector: k=%d with %d bit elements overflows the 64 bit accumulator", c.K, c.BitWidth)
	}

	if width := 4 * c.ResultDigits(); width < 64 && bits.Len64(bound) > width {
		return fmt.Errorf("testvector: k=%d with %d bit elements needs %d bits, answer holds %d", c.K, c.BitWidth, bits.Len64(bound), width)
	}

	return nil
}
