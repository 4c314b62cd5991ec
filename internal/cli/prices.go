package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/posync/internal/pos"
)

// titleCaser renders item names for text output.
var titleCaser = cases.Title(language.English)

// PricesOptions holds flags for the prices commands.
type PricesOptions struct {
	*RootOptions
	Date  string
	Items map[pos.ItemKind]*string // Raw --corns/--maize/--flour values
}

// NewPricesCommand creates the prices command group.
func NewPricesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Show or set the day's item prices",
	}
	cmd.AddCommand(newPricesGetCommand(rootOpts))
	cmd.AddCommand(newPricesSetCommand(rootOpts))
	return cmd
}

func newPricesGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PricesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the price sheet for a date",
		Long: `Show the per-kilo price of every item for a date (default today).
Items without a stored price show 0.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPricesGet(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "date as YYYY-MM-DD (default today)")
	return cmd
}

func runPricesGet(opts *PricesOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := a.dateOrToday(opts.Date)
	if err != nil {
		return a.out.Fail("invalid date", err)
	}

	sheet, err := a.store.GetPriceSheet(cmd.Context(), date)
	if err != nil {
		return a.out.Fail("failed to read prices", err)
	}

	return a.out.Render(sheet, func(w io.Writer) {
		writeSheet(w, sheet)
	})
}

func newPricesSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PricesOptions{RootOptions: rootOpts, Items: map[pos.ItemKind]*string{}}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set item prices for a date",
		Long: `Store the per-kilo prices for a date (default today) and sync them.

Only the items given are changed; the others keep their stored price.
A date with no stored prices needs all of --corns, --maize and --flour.
Prices of 0 are saved locally but not synced.

Example:
  posync prices set --corns 42.50 --maize 30 --flour 55`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPricesSet(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "date as YYYY-MM-DD (default today)")
	for _, item := range pos.Items {
		opts.Items[item] = cmd.Flags().String(string(item), "", fmt.Sprintf("price per kilo of %s", item))
	}
	return cmd
}

func runPricesSet(opts *PricesOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	date, err := a.dateOrToday(opts.Date)
	if err != nil {
		return a.out.Fail("invalid date", err)
	}

	sheet, err := a.store.GetPriceSheet(ctx, date)
	if err != nil {
		return a.out.Fail("failed to read prices", err)
	}
	stored, err := a.store.HasPriceSheet(ctx, date)
	if err != nil {
		return a.out.Fail("failed to read prices", err)
	}

	changed := 0
	for _, item := range pos.Items {
		if !cmd.Flags().Changed(string(item)) {
			continue
		}
		price, err := pos.ParseAmount("prices."+string(item), *opts.Items[item])
		if err != nil {
			return a.out.Fail("invalid price", err)
		}
		sheet.Prices[item] = price
		changed++
	}
	if changed == 0 {
		return a.out.Fail("nothing to set", pos.NewValidationError("prices", "give at least one of --corns, --maize, --flour"))
	}
	if !stored && changed < len(pos.Items) {
		return a.out.Fail("incomplete prices",
			pos.NewValidationError("prices", fmt.Sprintf("no prices stored for %s yet; give --corns, --maize and --flour", date)))
	}

	a.probe(ctx)
	outcome, err := a.engine.SetPriceSheet(ctx, sheet)
	if err != nil {
		return a.out.Fail("failed to save prices", err)
	}

	result := struct {
		Sheet   pos.PriceSheet `json:"sheet"`
		Outcome outcomeJSON    `json:"outcome"`
	}{sheet, toOutcomeJSON(outcome)}

	return a.out.Render(result, func(w io.Writer) {
		writeSheet(w, sheet)
		fmt.Fprintf(w, "Saved: %s\n", describeOutcome(outcome))
	})
}

// writeSheet writes a price sheet as an aligned table.
func writeSheet(w io.Writer, sheet pos.PriceSheet) {
	fmt.Fprintf(w, "Prices for %s\n", sheet.Date)
	for _, item := range pos.Items {
		fmt.Fprintf(w, "  %-6s %10s\n", titleCaser.String(string(item)), money(sheet.Price(item)))
	}
}

// money formats an amount with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
