package testvector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/haormj/tvgen/accelerated"
	"github.com/haormj/tvgen/format"
	"github.com/haormj/tvgen/matrix"
)

// MismatchError reports the first element of File that differs from the
// value recomputed from the operands.
type MismatchError struct {
	File string
	Row  int
	Col  int
	Got  uint64
	Want uint64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("testvector: %s mismatch at (%d, %d): got %d, want %d", e.File, e.Row, e.Col, e.Got, e.Want)
}

// Verify reads the artifacts in dir back and checks that answer.hex is the
// product of matrix1.hex transposed and matrix2.hex, computed by backend.
// Decimal companions are compared against the hex files when cfg.Decimal.
func Verify(dir string, cfg Config, backend accelerated.Backend) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	maxVal, err := matrix.MaxValue(cfg.BitWidth)
	if err != nil {
		return err
	}

	at, err := readHex(dir, Matrix1Hex, cfg.K, cfg.M, cfg.OperandDigits())
	if err != nil {
		return err
	}

	b, err := readHex(dir, Matrix2Hex, cfg.K, cfg.N, cfg.OperandDigits())
	if err != nil {
		return err
	}

	for _, op := range []struct {
		name string
		m    *matrix.Matrix
	}{{Matrix1Hex, at}, {Matrix2Hex, b}} {
		if err := checkRange(op.name, op.m, maxVal); err != nil {
			return err
		}
	}

	answer, err := readHex(dir, AnswerHex, cfg.M, cfg.N, cfg.ResultDigits())
	if err != nil {
		return err
	}

	want, err := matrix.Multiply(backend, at.Transpose(), b)
	if err != nil {
		return fmt.Errorf("testvector: %w", err)
	}

	if err := compare(AnswerHex, answer, want); err != nil {
		return err
	}

	if !cfg.Decimal {
		return nil
	}

	for _, dec := range []struct {
		name string
		want *matrix.Matrix
	}{{Matrix1Txt, at}, {Matrix2Txt, b}, {AnswerTxt, answer}} {
		got, err := readFile(dir, dec.name, func(r io.Reader) (*matrix.Matrix, error) {
			return format.ParseDecimal(r, dec.want.Rows, dec.want.Cols)
		})
		if err != nil {
			return err
		}

		if err := compare(dec.name, got, dec.want); err != nil {
			return err
		}
	}

	return nil
}

func readHex(dir, name string, rows, cols, digits int) (*matrix.Matrix, error) {
	return readFile(dir, name, func(r io.Reader) (*matrix.Matrix, error) {
		return format.ParseHex(r, rows, cols, digits)
	})
}

func readFile(dir, name string, parse func(io.Reader) (*matrix.Matrix, error)) (*matrix.Matrix, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("testvector: failed to open %s: %w", name, err)
	}
	defer f.Close()

	m, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("testvector: %s: %w", name, err)
	}

	return m, nil
}

func checkRange(name string, m *matrix.Matrix, maxVal uint64) error {
	for i, v := range m.Data {
		if v > maxVal {
			return fmt.Errorf("testvector: %s element (%d, %d) = %d exceeds %d", name, i/m.Cols, i%m.Cols, v, maxVal)
		}
	}

	return nil
}

func compare(name string, got, want *matrix.Matrix) error {
	for i, v := range want.Data {
		if got.Data[i] != v {
			return &MismatchError{
				File: name,
				Row:  i / want.Cols,
				Col:  i % want.Cols,
				Got:  got.Data[i],
				Want: v,
			}
		}
	}

	return nil
}
