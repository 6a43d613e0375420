package testvector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/haormj/tvgen/format"
	"github.com/haormj/tvgen/matrix"
)

// Artifact names, relative to the output directory.
const (
	Matrix1Hex = "matrix1.hex"
	Matrix2Hex = "matrix2.hex"
	AnswerHex  = "answer.hex"
	Matrix1Txt = "matrix1.txt"
	Matrix2Txt = "matrix2.txt"
	AnswerTxt  = "answer.txt"
)

type artifact struct {
	name  string
	write func(io.Writer) error
}

func hexArtifact(name string, m *matrix.Matrix, digits, wrapEvery int, rule format.WrapRule) artifact {
	return artifact{
		name: name,
		write: func(w io.Writer) error {
			return format.WriteHex(w, m, digits, wrapEvery, rule)
		},
	}
}

func decimalArtifact(name string, m *matrix.Matrix) artifact {
	return artifact{
		name: name,
		write: func(w io.Writer) error {
			return format.WriteDecimal(w, m)
		},
	}
}

func (v *Vectors) artifacts(cfg Config) []artifact {
	arts := []artifact{
		hexArtifact(Matrix1Hex, v.AT, cfg.OperandDigits(), cfg.PERows, cfg.Wrap),
		hexArtifact(Matrix2Hex, v.B, cfg.OperandDigits(), cfg.PECols, cfg.Wrap),
		hexArtifact(AnswerHex, v.C, cfg.ResultDigits(), cfg.PECols, cfg.Wrap),
	}

	if cfg.Decimal {
		arts = append(arts,
			decimalArtifact(Matrix1Txt, v.AT),
			decimalArtifact(Matrix2Txt, v.B),
			decimalArtifact(AnswerTxt, v.C),
		)
	}

	return arts
}

// Files lists the artifact names WriteFiles produces for cfg.
func Files(cfg Config) []string {
	names := []string{Matrix1Hex, Matrix2Hex, AnswerHex}
	if cfg.Decimal {
		names = append(names, Matrix1Txt, Matrix2Txt, AnswerTxt)
	}

	return names
}

// rename moves staged files into place. Tests replace it to fail a move.
var rename = os.Rename

// WriteFiles writes every artifact into dir. Files are staged as temporaries
// and only moved into place once all of them were written and closed. If a
// move fails, artifacts already moved are removed and the previous ones are
// restored, so a failed run leaves dir as it was.
func (v *Vectors) WriteFiles(dir string, cfg Config) (err error) {
	arts := v.artifacts(cfg)
	staged := make([]string, 0, len(arts))

	defer func() {
		if err != nil {
			for _, path := range staged {
				os.Remove(path)
			}
		}
	}()

	for _, art := range arts {
		path, werr := writeTemp(dir, art)
		if werr != nil {
			return werr
		}

		staged = append(staged, path)
	}

	names := make([]string, len(arts))
	for i, art := range arts {
		names[i] = art.name
	}

	return install(dir, names, staged)
}

type backup struct {
	target string
	saved  string
}

// install moves staged[i] to dir/names[i]. Existing targets are first moved
// aside and are put back if any later move fails.
func install(dir string, names, staged []string) (err error) {
	var (
		backups []backup
		placed  []string
	)

	defer func() {
		if err == nil {
			for _, b := range backups {
				os.Remove(b.saved)
			}

			return
		}

		for _, target := range placed {
			os.Remove(target)
		}

		for _, b := range backups {
			if rerr := os.Rename(b.saved, b.target); rerr != nil {
				err = errors.Join(err, fmt.Errorf("testvector: failed to restore %s: %w", b.target, rerr))
			}
		}
	}()

	for i, name := range names {
		target := filepath.Join(dir, name)

		if _, serr := os.Lstat(target); serr == nil {
			saved := filepath.Join(dir, "."+name+".prev")
			if err = rename(target, saved); err != nil {
				return fmt.Errorf("testvector: failed to move previous %s aside: %w", name, err)
			}

			backups = append(backups, backup{target: target, saved: saved})
		}

		if err = rename(staged[i], target); err != nil {
			return fmt.Errorf("testvector: failed to move %s into place: %w", name, err)
		}

		placed = append(placed, target)
	}

	return nil
}

func writeTemp(dir string, art artifact) (path string, err error) {
	f, err := os.CreateTemp(dir, "."+art.name+".*")
	if err != nil {
		return "", fmt.Errorf("testvector: failed to create %s: %w", art.name, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("testvector: failed to close %s: %w", art.name, cerr)
		}

		if err != nil {
			os.Remove(f.Name())
			path = ""
		}
	}()

	if err = f.Chmod(0o644); err != nil {
		return "", fmt.Errorf("testvector: failed to chmod %s: %w", art.name, err)
	}

	if err = art.write(f); err != nil {
		return "", fmt.Errorf("testvector: failed to write %s: %w", art.name, err)
	}

	return f.Name(), nil
}
