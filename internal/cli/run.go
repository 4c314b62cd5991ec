package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/posync/internal/connectivity"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep syncing in the background until interrupted",
		Long: `Probe the remote authority every probe_interval and replay the
pending-sync queue whenever connectivity returns, with backoff between
failed passes.

Example:
  posync run --remote http://pos.example.com
  POSYNC_PROBE_INTERVAL=5s posync run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, cmd)
		},
	}
	return cmd
}

func runDaemon(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := withSignals(cmd.Context(), a.logger)
	defer stop()

	cfg := opts.Config
	a.logger.Info("sync loop starting",
		zap.String("db", cfg.DBPath),
		zap.String("remote", cfg.RemoteURL),
		zap.Duration("probe_interval", cfg.ProbeInterval),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Syncing to %s. Press Ctrl-C to stop.\n", cfg.RemoteURL)

	var wg sync.WaitGroup
	var pollErr, runErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		pollErr = connectivity.Poll(ctx, a.oracle, a.prober, cfg.ProbeInterval)
	}()
	go func() {
		defer wg.Done()
		runErr = a.engine.Run(ctx)
	}()
	wg.Wait()

	for _, err := range []error{runErr, pollErr} {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return WrapExitError(ExitFailure, "sync loop error", err)
		}
	}

	a.logger.Info("sync loop stopped gracefully")
	return nil
}

// withSignals returns a context cancelled on SIGINT, SIGTERM, or when parent
// is done.
func withSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
