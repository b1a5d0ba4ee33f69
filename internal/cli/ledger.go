package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	ledgerhandlers "github.com/aristath/bazaar-tracker/internal/modules/ledger/handlers"
)

func newHoldingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holdings",
		Short: "List, open, close and delete holdings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List open holdings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				holdings, err := a.container.LedgerStore.ListHoldings(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(holdings)
			},
		},
		&cobra.Command{
			Use:   "open ITEM QUANTITY BUY_PRICE",
			Short: "Record a purchase",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				quantity, err := parseNumber("quantity", args[1])
				if err != nil {
					return err
				}
				price, err := parseNumber("buy price", args[2])
				if err != nil {
					return err
				}
				holding, err := a.container.LedgerStore.OpenHolding(cmd.Context(), args[0], quantity, price)
				if err != nil {
					return err
				}
				return a.print(holding)
			},
		},
		newCloseCmd(a),
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a holding without recording a trade",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.container.LedgerStore.DeleteHolding(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(a.out, "Deleted holding %s\n", args[0])
				return err
			},
		},
	)
	return cmd
}

func newCloseCmd(a *app) *cobra.Command {
	var useQuote bool

	cmd := &cobra.Command{
		Use:   "close ID [SALE_PRICE]",
		Short: "Sell a holding at a price or at the current quote",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var price float64
			switch {
			case len(args) == 2:
				p, err := parseNumber("sale price", args[1])
				if err != nil {
					return err
				}
				price = p
			case useQuote:
				holding, err := a.container.LedgerStore.GetHolding(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				quote, err := a.container.QuoteService.Quote(cmd.Context(), holding.Item)
				if err != nil {
					return err
				}
				price = quote.Buy
			default:
				return fmt.Errorf("give a sale price or --quote")
			}

			trade, err := a.container.LedgerStore.CloseHolding(cmd.Context(), args[0], price)
			if err != nil {
				return err
			}
			return a.print(trade)
		},
	}

	cmd.Flags().BoolVar(&useQuote, "quote", false, "Sell at the market price used for holding valuation")
	return cmd
}

func newTradesCmd(a *app) *cobra.Command {
	var date string

	list := &cobra.Command{
		Use:   "list",
		Short: "List realized trades for a day (UTC)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			trades, err := a.container.LedgerStore.ListTradesForDate(cmd.Context(), day)
			if err != nil {
				return err
			}
			return a.print(trades)
		},
	}
	list.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (default today)")

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List and delete realized trades",
	}
	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a realized trade",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.container.LedgerStore.DeleteTrade(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(a.out, "Deleted trade %s\n", args[0])
				return err
			},
		},
	)
	return cmd
}

func parseNumber(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, raw, err)
	}
	return v, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.ParseInLocation(ledgerhandlers.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad --date %q: want YYYY-MM-DD", raw)
	}
	return day, nil
}
