package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/pos"
)

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List writes awaiting delivery to the remote authority",
		Long: `List the pending-sync queue in delivery order.

Entries leave the queue only when the remote acknowledges them.
Run "posync sync" to deliver them now.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(rootOpts, cmd)
		},
	}
	return cmd
}

func runPending(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.ListPendingSyncs(cmd.Context())
	if err != nil {
		return a.out.Fail("failed to list pending syncs", err)
	}

	views := make([]pendingView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toPendingView(e))
	}

	return a.out.Render(views, func(w io.Writer) {
		writePending(w, views)
	})
}

// pendingView is the listing form of a queue entry; the payload is
// summarized by its idempotency key.
type pendingView struct {
	ID         int64           `json:"id"`
	Kind       pos.PayloadKind `json:"kind"`
	Key        string          `json:"key"`
	EnqueuedAt string          `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

func toPendingView(e pos.PendingSyncEntry) pendingView {
	return pendingView{
		ID:         e.ID,
		Kind:       e.Kind,
		Key:        e.IdempotencyKey(),
		EnqueuedAt: e.EnqueuedAt.UTC().Format("2006-01-02 15:04:05"),
		Attempts:   e.Attempts,
		LastError:  e.LastError,
	}
}

func writePending(w io.Writer, views []pendingView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "Nothing pending. Everything is synced.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKind\tKey\tEnqueued\tAttempts\tLast error")
	for _, v := range views {
		lastErr := v.LastError
		if lastErr == "" {
			lastErr = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			v.ID, v.Kind, v.Key, v.EnqueuedAt, v.Attempts, lastErr)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d pending\n", len(views))
}
