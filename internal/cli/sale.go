package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/pos"
)

// SaleOptions holds flags for the sale add command.
type SaleOptions struct {
	*RootOptions
	Name  string
	Item  string
	Type  string
	Rate  string
	Kilos string
	Mun   string
	Date  string
}

// NewSaleCommand creates the sale command group.
func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Record bought and sold transactions",
	}
	cmd.AddCommand(newSaleAddCommand(rootOpts))
	return cmd
}

func newSaleAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Long: `Record a bought or sold transaction and sync it.

Weight is given in kilos, mun (50 kg each), or both; they are added up.
For a sale, the rate defaults to the day's price of the item.

Example:
  posync sale add --name Ravi --item corns --type sold --mun 2 --kilos 5
  posync sale add --name Asha --item maize --type bought --rate 28 --kilos 400`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaleAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "customer name (required)")
	cmd.Flags().StringVar(&opts.Item, "item", "", "item: corns, maize, or flour (required)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "transaction type: bought or sold (required)")
	cmd.Flags().StringVar(&opts.Rate, "rate", "", "price per kilo (default: the day's price, sold only)")
	cmd.Flags().StringVar(&opts.Kilos, "kilos", "0", "weight in kilos")
	cmd.Flags().StringVar(&opts.Mun, "mun", "0", "weight in mun")
	cmd.Flags().StringVar(&opts.Date, "date", "", "date as YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runSaleAdd(opts *SaleOptions, cmd *cobra.Command) error {
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

	sale := pos.SaleRecord{
		Date:            date,
		Timestamp:       a.now(),
		CustomerName:    opts.Name,
		Item:            pos.ItemKind(opts.Item),
		TransactionType: pos.TransactionType(opts.Type),
	}

	kilos, err := pos.ParseAmount("kilos", opts.Kilos)
	if err != nil {
		return a.out.Fail("invalid weight", err)
	}
	mun, err := pos.ParseAmount("mun", opts.Mun)
	if err != nil {
		return a.out.Fail("invalid weight", err)
	}
	sale.Kilos = pos.KilosFromMun(mun, kilos)

	sale.Rate, err = resolveRate(a, cmd, opts, sale)
	if err != nil {
		return a.out.Fail("invalid rate", err)
	}

	a.probe(ctx)
	stored, outcome, err := a.engine.InsertSale(ctx, sale)
	if err != nil {
		return a.out.Fail("failed to record sale", err)
	}

	result := struct {
		Sale    pos.SaleRecord `json:"sale"`
		Outcome outcomeJSON    `json:"outcome"`
	}{stored, toOutcomeJSON(outcome)}

	return a.out.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "Recorded %s #%d: %s, %s kg %s @ %s = %s\n",
			stored.TransactionType, stored.ID, stored.CustomerName,
			stored.Kilos.String(), stored.Item, money(stored.Rate), money(stored.Total))
		fmt.Fprintf(w, "Saved: %s\n", describeOutcome(outcome))
	})
}

// resolveRate returns the --rate value, or for a sale without one, the
// day's price of the item.
func resolveRate(a *app, cmd *cobra.Command, opts *SaleOptions, sale pos.SaleRecord) (decimal.Decimal, error) {
	if cmd.Flags().Changed("rate") {
		return pos.ParseAmount("rate", opts.Rate)
	}
	if sale.TransactionType != pos.Sold || !sale.Item.Valid() {
		return decimal.Zero, pos.NewValidationError("rate", "--rate is required")
	}

	rate, ok, err := a.engine.DefaultRate(cmd.Context(), sale.Date, sale.Item)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, pos.NewValidationError("rate",
			fmt.Sprintf("no %s price set for %s; pass --rate or run prices set", sale.Item, sale.Date))
	}
	a.out.VerboseLog("Using the day's %s price %s", sale.Item, money(rate))
	return rate, nil
}
