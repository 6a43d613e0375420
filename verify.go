package main

import (
	"log"

	"github.com/haormj/tvgen/testvector"
	"github.com/spf13/cobra"
)

func newVerifyCmd(opts *options) *cobra.Command {
	var backendName string

	cmd := &cobra.Command{
		Use:          "verify",
		Short:        "Check that written vectors are a consistent product",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(cmd.ErrOrStderr(), "tvgen: ", 0)

			if err := opts.cfg.Validate(); err != nil {
				return err
			}

			backend, err := setupBackend(backendName, logger)
			if err != nil {
				return err
			}
			defer releaseBackend(backend, logger)

			if err := testvector.Verify(opts.out, opts.cfg, backend); err != nil {
				return err
			}

			logger.Printf("%s: ok", opts.out)

			return nil
		},
	}

	cmd.Flags().StringVar(&backendName, "backend", "gonum", "multiply backend used to recompute the answer")

	return cmd
}
