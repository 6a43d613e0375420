// Package format renders matrices in the line layouts consumed by PE-grid
// testbenches and reads them back.
package format

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/haormj/tvgen/matrix"
)

var ErrOverflow = errors.New("value does not fit digit width")

// HexDigits returns the number of hex digits needed for bitWidth bits.
func HexDigits(bitWidth int) int {
	return (bitWidth + 3) / 4
}

// WriteHex writes m row-major as lower-case hex zero padded to digits, with
// line breaks placed by rule every wrapEvery columns and one trailing newline.
func WriteHex(w io.Writer, m *matrix.Matrix, digits, wrapEvery int, rule WrapRule) error {
	if digits <= 0 {
		return fmt.Errorf("format: digits must be positive, got %d", digits)
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 16)

	for r := 0; r < m.Rows; r++ {
		for c, v := range m.Row(r) {
			buf = strconv.AppendUint(buf[:0], v, 16)
			if len(buf) > digits {
				return fmt.Errorf("format: %w: %#x at (%d, %d) needs %d digits, have %d", ErrOverflow, v, r, c, len(buf), digits)
			}

			for i := len(buf); i < digits; i++ {
				bw.WriteByte('0')
			}

			bw.Write(buf)

			if rule.BreakAfter(c, wrapEvery) {
				bw.WriteByte('\n')
			}
		}
	}

	bw.WriteByte('\n')

	return bw.Flush()
}

// WriteDecimal writes m row-major as base 10 values separated by single
// spaces followed by one trailing newline.
func WriteDecimal(w io.Writer, m *matrix.Matrix) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 20)

	for i, v := range m.Data {
		if i > 0 {
			bw.WriteByte(' ')
		}

		buf = strconv.AppendUint(buf[:0], v, 10)
		bw.Write(buf)
	}

	bw.WriteByte('\n')

	return bw.Flush()
}

// ParseHex reads a rows x cols matrix written by WriteHex. Line breaks are
// ignored, so output of either wrap rule parses the same way.
func ParseHex(r io.Reader, rows, cols, digits int) (*matrix.Matrix, error) {
	if digits <= 0 {
		return nil, fmt.Errorf("format: digits must be positive, got %d", digits)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("format: failed to read hex: %w", err)
	}

	stream := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(raw))

	m, err := matrix.New(rows, cols)
	if err != nil {
		return nil, err
	}

	if len(stream) != len(m.Data)*digits {
		return nil, fmt.Errorf("format: hex stream has %d digits, want %d", len(stream), len(m.Data)*digits)
	}

	for i := range m.Data {
		tok := stream[i*digits : (i+1)*digits]

		v, err := strconv.ParseUint(tok, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("format: failed to parse element %d: %w", i, err)
		}

		m.Data[i] = v
	}

	return m, nil
}

// ParseDecimal reads a rows x cols matrix of whitespace separated base 10
// values.
func ParseDecimal(r io.Reader, rows, cols int) (*matrix.Matrix, error) {
	m, err := matrix.New(rows, cols)
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	i := 0
	for sc.Scan() {
		if i == len(m.Data) {
			return nil, fmt.Errorf("format: more than %d decimal values", len(m.Data))
		}

		v, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("format: failed to parse element %d: %w", i, err)
		}

		m.Data[i] = v
		i++
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("format: failed to read decimal: %w", err)
	}

	if i != len(m.Data) {
		return nil, fmt.Errorf("format: got %d decimal values, want %d", i, len(m.Data))
	}

	return m, nil
}
