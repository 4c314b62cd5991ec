package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/authority"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory remote authority for development",
		Long: `Serve POST /prices, POST /sync, and GET /health backed by memory.

Sales are de-duplicated by ref, so replays from the pending queue are safe.
Everything is lost on exit.

Example:
  posync serve --listen :3000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger, err := newLogger(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	defer func() { _ = logger.Sync() }()

	addr := opts.Config.Listen
	if cmd.Flags().Changed("listen") {
		addr = opts.Listen
	}

	ctx, stop := withSignals(cmd.Context(), logger)
	defer stop()

	router := authority.NewRouter(authority.NewMemoryLedger(), logger)
	fmt.Fprintf(cmd.OutOrStdout(), "Authority listening on %s. Press Ctrl-C to stop.\n", addr)

	if err := authority.Serve(ctx, addr, router, logger); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	return nil
}
