package testvector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haormj/tvgen/accelerated/cpu"
	"github.com/haormj/tvgen/accelerated/gonum"
	"github.com/haormj/tvgen/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.M, cfg.K, cfg.N = 6, 10, 4
	cfg.PERows, cfg.PECols = 4, 2
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.OperandDigits())
	assert.Equal(t, 8, cfg.ResultDigits())
	assert.Equal(t, format.WrapModulo, cfg.Wrap)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero m", func(c *Config) { c.M = 0 }},
		{"negative k", func(c *Config) { c.K = -1 }},
		{"zero n", func(c *Config) { c.N = 0 }},
		{"zero pe rows", func(c *Config) { c.PERows = 0 }},
		{"zero pe cols", func(c *Config) { c.PECols = 0 }},
		{"zero bit width", func(c *Config) { c.BitWidth = 0 }},
		{"wide bit width", func(c *Config) { c.BitWidth = 33 }},
		// 4 bit operands print answers in 4 digits: 16 bits.
		{"answer width", func(c *Config) { c.BitWidth, c.K = 4, 300 }},
		{"accumulator", func(c *Config) { c.BitWidth, c.K = 32, 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.BitWidth, cfg.K = 4, 291
	assert.NoError(t, cfg.Validate(), "291 * 15 * 15 fits 16 bits")
}

func TestGenerate(t *testing.T) {
	cfg := smallConfig()
	v, err := Generate(cfg, rand.New(rand.NewSource(5)), &cpu.CPU{})
	require.NoError(t, err)

	assert.Equal(t, [2]int{6, 10}, [2]int{v.A.Rows, v.A.Cols})
	assert.Equal(t, [2]int{10, 6}, [2]int{v.AT.Rows, v.AT.Cols})
	assert.Equal(t, [2]int{10, 4}, [2]int{v.B.Rows, v.B.Cols})
	assert.Equal(t, [2]int{6, 4}, [2]int{v.C.Rows, v.C.Cols})
	assert.True(t, v.AT.Transpose().Equal(v.A))

	for r := 0; r < cfg.M; r++ {
		for c := 0; c < cfg.N; c++ {
			var want uint64
			for k := 0; k < cfg.K; k++ {
				want += v.A.At(r, k) * v.B.At(k, c)
			}
			require.Equal(t, want, v.C.At(r, c))
		}
	}
}

func TestGenerateReproducible(t *testing.T) {
	cfg := smallConfig()
	a, err := Generate(cfg, rand.New(rand.NewSource(99)), &cpu.CPU{})
	require.NoError(t, err)
	b, err := Generate(cfg, rand.New(rand.NewSource(99)), &gonum.Gonum{})
	require.NoError(t, err)

	assert.True(t, a.A.Equal(b.A))
	assert.True(t, a.B.Equal(b.B))
	assert.True(t, a.C.Equal(b.C))
}

func TestGenerateInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.BitWidth = 0
	_, err := Generate(cfg, rand.New(rand.NewSource(1)), &cpu.CPU{})
	assert.Error(t, err)
}

func TestWriteFilesAndVerify(t *testing.T) {
	for _, rule := range []format.WrapRule{format.WrapModulo, format.WrapLegacy} {
		for _, decimal := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/decimal=%v", rule, decimal), func(t *testing.T) {
				cfg := smallConfig()
				cfg.Wrap = rule
				cfg.Decimal = decimal

				v, err := Generate(cfg, rand.New(rand.NewSource(17)), &cpu.CPU{})
				require.NoError(t, err)

				dir := t.TempDir()
				require.NoError(t, v.WriteFiles(dir, cfg))

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				var names []string
				for _, e := range entries {
					names = append(names, e.Name())
				}
				assert.ElementsMatch(t, Files(cfg), names)

				require.NoError(t, Verify(dir, cfg, &cpu.CPU{}))
				require.NoError(t, Verify(dir, cfg, &gonum.Gonum{}))
			})
		}
	}
}

func TestWriteFilesLayout(t *testing.T) {
	cfg := smallConfig()
	v, err := Generate(cfg, rand.New(rand.NewSource(2)), &cpu.CPU{})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, v.WriteFiles(dir, cfg))

	m1, err := os.ReadFile(filepath.Join(dir, Matrix1Hex))
	require.NoError(t, err)
	// A transposed is 10 x 6: every row wraps once after 4 elements.
	lines := strings.Split(string(m1), "\n")
	assert.Len(t, lines[0], 4*2)

	ans, err := os.ReadFile(filepath.Join(dir, AnswerHex))
	require.NoError(t, err)
	// 6 x 4 answer wrapped every 2: two lines of 2 elements of 8 digits per row.
	ansLines := strings.Split(strings.TrimSuffix(string(ans), "\n"), "\n")
	assert.Len(t, ansLines, 2*cfg.M+1)
	assert.Len(t, ansLines[0], 2*8)
	assert.Equal(t, "", ansLines[len(ansLines)-1])

	info, err := os.Stat(filepath.Join(dir, AnswerHex))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestVerifyDetectsCorruption(t *testing.T) {
	cfg := smallConfig()
	v, err := Generate(cfg, rand.New(rand.NewSource(8)), &cpu.CPU{})
	require.NoError(t, err)

	v.C.Set(3, 1, v.C.At(3, 1)+1)

	dir := t.TempDir()
	require.NoError(t, v.WriteFiles(dir, cfg))

	err = Verify(dir, cfg, &cpu.CPU{})
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, AnswerHex, mismatch.File)
	assert.Equal(t, 3, mismatch.Row)
	assert.Equal(t, 1, mismatch.Col)
	assert.Equal(t, mismatch.Want+1, mismatch.Got)
}

func TestVerifyDetectsDecimalDrift(t *testing.T) {
	cfg := smallConfig()
	cfg.Decimal = true
	v, err := Generate(cfg, rand.New(rand.NewSource(8)), &cpu.CPU{})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, v.WriteFiles(dir, cfg))

	drifted := v.B.Transpose().Transpose()
	drifted.Set(2, 3, drifted.At(2, 3)+1)

	f, err := os.Create(filepath.Join(dir, Matrix2Txt))
	require.NoError(t, err)
	require.NoError(t, format.WriteDecimal(f, drifted))
	require.NoError(t, f.Close())

	err = Verify(dir, cfg, &cpu.CPU{})
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, Matrix2Txt, mismatch.File)
	assert.Equal(t, 2, mismatch.Row)
	assert.Equal(t, 3, mismatch.Col)
}

func TestVerifyOperandRange(t *testing.T) {
	cfg := smallConfig()
	v, err := Generate(cfg, rand.New(rand.NewSource(8)), &cpu.CPU{})
	require.NoError(t, err)

	v.AT.Set(0, 0, 0xff)

	dir := t.TempDir()
	require.NoError(t, v.WriteFiles(dir, cfg))

	// Read back as 6 bit operands: same digit widths, 0xff is out of range.
	cfg.BitWidth = 6
	err = Verify(dir, cfg, &cpu.CPU{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), Matrix1Hex)
}

func TestVerifyMissingFile(t *testing.T) {
	err := Verify(t.TempDir(), smallConfig(), &cpu.CPU{})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteFilesAllOrNothing(t *testing.T) {
	cfg := smallConfig()
	v, err := Generate(cfg, rand.New(rand.NewSource(4)), &cpu.CPU{})
	require.NoError(t, err)

	// An answer too wide for its digit width fails the last hex file.
	v.C.Set(0, 0, 1<<40)

	dir := t.TempDir()
	err = v.WriteFiles(dir, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, format.ErrOverflow))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFilesMissingDir(t *testing.T) {
	cfg := smallConfig()
	v, err := Generate(cfg, rand.New(rand.NewSource(4)), &cpu.CPU{})
	require.NoError(t, err)

	assert.Error(t, v.WriteFiles(filepath.Join(t.TempDir(), "missing"), cfg))
}

func readArtifacts(t *testing.T, dir string, cfg Config) map[string]string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	got := make(map[string]string)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		got[e.Name()] = string(data)
	}

	assert.Len(t, got, len(Files(cfg)))
	return got
}

func TestWriteFilesOverwrite(t *testing.T) {
	cfg := smallConfig()
	dir := t.TempDir()

	for _, seed := range []uint64{1, 2} {
		v, err := Generate(cfg, rand.New(rand.NewSource(seed)), &cpu.CPU{})
		require.NoError(t, err)
		require.NoError(t, v.WriteFiles(dir, cfg))
	}

	got := readArtifacts(t, dir, cfg)
	for _, name := range Files(cfg) {
		assert.Contains(t, got, name)
	}
	require.NoError(t, Verify(dir, cfg, &cpu.CPU{}))
}

func TestWriteFilesRestoresOnFailedMove(t *testing.T) {
	cfg := smallConfig()
	dir := t.TempDir()

	first, err := Generate(cfg, rand.New(rand.NewSource(1)), &cpu.CPU{})
	require.NoError(t, err)
	require.NoError(t, first.WriteFiles(dir, cfg))
	before := readArtifacts(t, dir, cfg)

	errMove := errors.New("device busy")
	rename = func(from, to string) error {
		if filepath.Base(to) == AnswerHex {
			return errMove
		}
		return os.Rename(from, to)
	}
	t.Cleanup(func() { rename = os.Rename })

	second, err := Generate(cfg, rand.New(rand.NewSource(2)), &cpu.CPU{})
	require.NoError(t, err)
	require.False(t, second.C.Equal(first.C))

	err = second.WriteFiles(dir, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMove))

	assert.Equal(t, before, readArtifacts(t, dir, cfg))
	require.NoError(t, Verify(dir, cfg, &cpu.CPU{}))
}

func TestWriteFilesFailedFirstMoveLeavesNothing(t *testing.T) {
	cfg := smallConfig()
	dir := t.TempDir()

	rename = func(from, to string) error {
		if filepath.Base(to) == Matrix2Hex {
			return errors.New("device busy")
		}
		return os.Rename(from, to)
	}
	t.Cleanup(func() { rename = os.Rename })

	v, err := Generate(cfg, rand.New(rand.NewSource(3)), &cpu.CPU{})
	require.NoError(t, err)
	require.Error(t, v.WriteFiles(dir, cfg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
