package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/haormj/tvgen/accelerated"
	"github.com/haormj/tvgen/testvector"
	"github.com/haormj/version"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

type options struct {
	cfg     testvector.Config
	out     string
	backend string
}

func newRootCmd() *cobra.Command {
	opts := &options{
		cfg: testvector.DefaultConfig(),
		out: ".",
	}

	cmd := &cobra.Command{
		Use:          "tvgen",
		Short:        "Generate matrix multiply test vectors for a PE grid accelerator",
		Version:      version.FullVersion(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("seed") {
				opts.cfg.Seed = uint64(time.Now().UnixNano())
			}

			return runGenerate(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.IntVar(&opts.cfg.M, "m", opts.cfg.M, "rows of A and of the answer")
	flags.IntVar(&opts.cfg.K, "k", opts.cfg.K, "columns of A, rows of B")
	flags.IntVar(&opts.cfg.N, "n", opts.cfg.N, "columns of B and of the answer")
	flags.IntVar(&opts.cfg.PERows, "pe-rows", opts.cfg.PERows, "PE grid rows, line width of matrix1.hex")
	flags.IntVar(&opts.cfg.PECols, "pe-cols", opts.cfg.PECols, "PE grid columns, line width of matrix2.hex and answer.hex")
	flags.IntVar(&opts.cfg.BitWidth, "bit-width", opts.cfg.BitWidth, "operand element width in bits")
	flags.Var(&opts.cfg.Wrap, "wrap", "line wrap rule: modulo or legacy")
	flags.BoolVar(&opts.cfg.Decimal, "decimal", opts.cfg.Decimal, "also write decimal .txt companions")
	flags.StringVarP(&opts.out, "out", "o", opts.out, "output directory")

	cmd.Flags().Uint64Var(&opts.cfg.Seed, "seed", 0, "random seed (default: current time)")
	cmd.Flags().StringVar(&opts.backend, "backend", "cpu", "multiply backend: "+strings.Join(backendNames(), ", "))

	cmd.AddCommand(newVerifyCmd(opts))

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *options) error {
	logger := log.New(cmd.ErrOrStderr(), "tvgen: ", 0)

	if err := opts.cfg.Validate(); err != nil {
		return err
	}

	backend, err := setupBackend(opts.backend, logger)
	if err != nil {
		return err
	}
	defer releaseBackend(backend, logger)

	logger.Printf("generating %dx%d * %dx%d, %d bit, seed %d", opts.cfg.M, opts.cfg.K, opts.cfg.K, opts.cfg.N, opts.cfg.BitWidth, opts.cfg.Seed)

	v, err := testvector.Generate(opts.cfg, rand.New(rand.NewSource(opts.cfg.Seed)), backend)
	if err != nil {
		return err
	}

	if err := v.WriteFiles(opts.out, opts.cfg); err != nil {
		return err
	}

	logger.Printf("wrote %s to %s", strings.Join(testvector.Files(opts.cfg), ", "), opts.out)

	return nil
}

func setupBackend(name string, logger *log.Logger) (accelerated.Backend, error) {
	backend, err := newBackend(name)
	if err != nil {
		return nil, err
	}

	if err := backend.SetupContext(); err != nil {
		releaseBackend(backend, logger)
		return nil, fmt.Errorf("failed to set up %s backend: %w", name, err)
	}

	return backend, nil
}

func releaseBackend(backend accelerated.Backend, logger *log.Logger) {
	if err := backend.Release(); err != nil {
		logger.Printf("release: %v", err)
	}
}
