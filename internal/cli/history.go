package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/pos"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Date string
	Type string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transactions, newest first",
		Long: `List recorded transactions sorted by timestamp, newest first.

Filter by --date, by --type (bought or sold), or both.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "only transactions on this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only bought or sold transactions")
	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	var typ pos.TransactionType
	if opts.Type != "" {
		typ = pos.TransactionType(opts.Type)
		if !typ.Valid() {
			return a.out.Fail("invalid type",
				pos.NewValidationError("type", fmt.Sprintf("must be %q or %q", pos.Bought, pos.Sold)))
		}
	}

	var sales []pos.SaleRecord
	switch {
	case opts.Date != "":
		date, err := pos.ParseDate(opts.Date)
		if err != nil {
			return a.out.Fail("invalid date", err)
		}
		sales, err = a.store.ListSalesByDate(ctx, date)
		if err != nil {
			return a.out.Fail("failed to list sales", err)
		}
		if typ != "" {
			sales = filterType(sales, typ)
		}
	case typ != "":
		sales, err = a.store.ListSalesByType(ctx, typ)
	default:
		sales, err = a.store.ListSales(ctx)
	}
	if err != nil {
		return a.out.Fail("failed to list sales", err)
	}

	sortNewestFirst(sales)

	return a.out.Render(sales, func(w io.Writer) {
		writeHistory(w, sales)
	})
}

func filterType(sales []pos.SaleRecord, typ pos.TransactionType) []pos.SaleRecord {
	out := sales[:0]
	for _, s := range sales {
		if s.TransactionType == typ {
			out = append(out, s)
		}
	}
	return out
}

// sortNewestFirst orders sales by timestamp descending, then id descending.
func sortNewestFirst(sales []pos.SaleRecord) {
	sort.SliceStable(sales, func(i, j int) bool {
		if !sales[i].Timestamp.Equal(sales[j].Timestamp) {
			return sales[i].Timestamp.After(sales[j].Timestamp)
		}
		return sales[i].ID > sales[j].ID
	})
}

// writeHistory writes sales as an aligned table with bought and sold totals.
func writeHistory(w io.Writer, sales []pos.SaleRecord) {
	if len(sales) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTime\tType\tCustomer\tItem\tKilos\tRate\tTotal")

	totals := map[pos.TransactionType]decimal.Decimal{}
	for _, s := range sales {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Timestamp.UTC().Format("2006-01-02 15:04"),
			s.TransactionType,
			s.CustomerName,
			titleCaser.String(string(s.Item)),
			s.Kilos.String(),
			money(s.Rate),
			money(s.Total),
		)
		totals[s.TransactionType] = totals[s.TransactionType].Add(s.Total)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nBought: %s  Sold: %s\n", money(totals[pos.Bought]), money(totals[pos.Sold]))
}
