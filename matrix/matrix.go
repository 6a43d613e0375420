// Package matrix holds dense row-major integer matrices used as test
// vectors, with random fill, transpose and exact multiplication.
package matrix

import (
	"errors"
	"fmt"
	"math"

	"github.com/haormj/tvgen/accelerated"
)

// MaxBitWidth bounds element width so that a single product of two elements
// always fits the 64 bit accumulator.
const MaxBitWidth = 32

var ErrShape = errors.New("invalid matrix shape")

// Source is the random generator matrices are filled from. It is satisfied
// by *rand.Rand from golang.org/x/exp/rand.
type Source interface {
	Uint64() uint64
}

// Matrix is a Rows x Cols matrix stored in one contiguous buffer with row
// stride Cols.
type Matrix struct {
	Rows int
	Cols int
	Data []uint64
}

// New allocates a zeroed rows x cols matrix.
func New(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("matrix: %w: %dx%d", ErrShape, rows, cols)
	}

	if rows > math.MaxInt/cols {
		return nil, fmt.Errorf("matrix: %w: %dx%d overflows", ErrShape, rows, cols)
	}

	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]uint64, rows*cols),
	}, nil
}

// FromRows builds a matrix from a slice of equally long rows.
func FromRows(rows [][]uint64) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("matrix: %w: no rows", ErrShape)
	}

	m, err := New(len(rows), len(rows[0]))
	if err != nil {
		return nil, err
	}

	for r, row := range rows {
		if len(row) != m.Cols {
			return nil, fmt.Errorf("matrix: %w: row %d has %d columns, want %d", ErrShape, r, len(row), m.Cols)
		}

		copy(m.Row(r), row)
	}

	return m, nil
}

func (m *Matrix) At(r, c int) uint64 {
	return m.Data[r*m.Cols+c]
}

func (m *Matrix) Set(r, c int, v uint64) {
	m.Data[r*m.Cols+c] = v
}

// Row returns row r as a slice aliasing the matrix buffer.
func (m *Matrix) Row(r int) []uint64 {
	return m.Data[r*m.Cols : (r+1)*m.Cols]
}

// Transpose returns a new Cols x Rows matrix with T[c][r] == m[r][c].
func (m *Matrix) Transpose() *Matrix {
	t := &Matrix{
		Rows: m.Cols,
		Cols: m.Rows,
		Data: make([]uint64, len(m.Data)),
	}

	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			t.Data[c*t.Cols+r] = m.Data[r*m.Cols+c]
		}
	}

	return t
}

func (m *Matrix) Equal(o *Matrix) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return false
	}

	for i, v := range m.Data {
		if o.Data[i] != v {
			return false
		}
	}

	return true
}

// MaxValue returns 2^bitWidth - 1.
func MaxValue(bitWidth int) (uint64, error) {
	if bitWidth < 1 || bitWidth > MaxBitWidth {
		return 0, fmt.Errorf("matrix: bit width must be in [1, %d], got %d", MaxBitWidth, bitWidth)
	}

	return 1<<uint(bitWidth) - 1, nil
}

// Random fills a rows x cols matrix with values in [0, 2^bitWidth - 1].
// Each cell takes the next value of src modulo 2^bitWidth.
func Random(rows, cols, bitWidth int, src Source) (*Matrix, error) {
	maxVal, err := MaxValue(bitWidth)
	if err != nil {
		return nil, err
	}

	m, err := New(rows, cols)
	if err != nil {
		return nil, err
	}

	for i := range m.Data {
		m.Data[i] = src.Uint64() % (maxVal + 1)
	}

	return m, nil
}

// Multiply returns a * b computed by backend.
func Multiply(backend accelerated.Backend, a, b *Matrix) (*Matrix, error) {
	if a.Cols != b.Rows {
		return nil, fmt.Errorf("matrix: %w: cannot multiply %dx%d by %dx%d", ErrShape, a.Rows, a.Cols, b.Rows, b.Cols)
	}

	out, err := New(a.Rows, b.Cols)
	if err != nil {
		return nil, err
	}

	if err := backend.MatMul(out.Data, a.Data, b.Data, a.Rows, a.Cols, b.Cols); err != nil {
		return nil, fmt.Errorf("matrix: failed to multiply: %w", err)
	}

	return out, nil
}
