package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/engine"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Deliver pending writes to the remote authority now",
		Long: `Probe the remote authority and, if it is reachable, replay the
pending-sync queue once in the order the writes were made.

Exits 1 if any entry is still pending afterwards.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
	return cmd
}

// syncResult is the JSON form of a sync run.
type syncResult struct {
	Online    bool `json:"online"`
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Remaining int  `json:"remaining"`
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	result := syncResult{Online: a.probe(ctx)}

	var report engine.DrainReport
	if result.Online {
		report, err = a.engine.Drain(ctx)
		if err != nil {
			return a.out.Fail("failed to drain pending syncs", err)
		}
	}

	remaining := report.Remaining
	if !result.Online || report.Skipped {
		if remaining, err = a.engine.Pending(ctx); err != nil {
			return a.out.Fail("failed to count pending syncs", err)
		}
	}
	result.Attempted = report.Attempted
	result.Delivered = report.Delivered
	result.Failed = report.Failed
	result.Remaining = remaining

	if err := a.out.Render(result, func(w io.Writer) {
		writeSyncResult(w, result, opts.Config.RemoteURL)
	}); err != nil {
		return err
	}

	if result.Remaining > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d entries still pending", result.Remaining))
	}
	return nil
}

func writeSyncResult(w io.Writer, r syncResult, remote string) {
	if !r.Online {
		fmt.Fprintf(w, "Remote %s is offline; %d pending\n", remote, r.Remaining)
		return
	}
	fmt.Fprintf(w, "Delivered %d of %d", r.Delivered, r.Attempted)
	if r.Failed > 0 {
		fmt.Fprintf(w, ", %d failed", r.Failed)
	}
	fmt.Fprintf(w, "; %d pending\n", r.Remaining)
}
