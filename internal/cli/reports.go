package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/modules/market"
	"github.com/aristath/bazaar-tracker/internal/modules/optimization"
	"github.com/aristath/bazaar-tracker/internal/modules/pnl"
)

func newPnLCmd(a *app) *cobra.Command {
	var (
		skipMissing bool
		date        string
	)

	holdings := &cobra.Command{
		Use:   "holdings",
		Short: "Unrealized profit of open holdings at current quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := pnl.FailOnMissingQuote
			if skipMissing {
				policy = pnl.SkipMissingQuote
			}
			summary, err := a.container.PnLService.HoldingsReport(cmd.Context(), policy)
			if err != nil {
				return err
			}
			return a.print(summary)
		},
	}
	holdings.Flags().BoolVar(&skipMissing, "skip-missing", false, "Leave out holdings without a quote instead of failing")

	trades := &cobra.Command{
		Use:   "trades",
		Short: "Realized profit for a day (UTC)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			summary, err := a.container.PnLService.TradesReport(cmd.Context(), day)
			if err != nil {
				return err
			}
			return a.print(summary)
		},
	}
	trades.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (default today)")

	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Profit and loss reports",
	}
	cmd.AddCommand(holdings, trades)
	return cmd
}

func newOptimizeCmd(a *app) *cobra.Command {
	var (
		period       string
		riskAversion float64
		useHoldings  bool
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "optimize [ITEM...]",
		Short: "Mean-variance allocation across items or current holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("risk-aversion") {
				riskAversion = a.cfg.Optimizer.RiskAversion
			}
			if period == "" {
				period = a.cfg.Optimizer.Period
			}

			var (
				result *optimization.AllocationResult
				err    error
			)
			if useHoldings {
				if len(args) > 0 {
					return fmt.Errorf("items cannot be combined with --holdings")
				}
				result, err = a.container.OptimizationService.AllocateHoldings(cmd.Context(), domain.Period(period), riskAversion)
			} else {
				result, err = a.container.OptimizationService.Allocate(cmd.Context(), optimization.AllocationRequest{
					Items:        args,
					Period:       domain.Period(period),
					RiskAversion: riskAversion,
					Timeout:      timeout,
				})
			}
			if err != nil {
				return err
			}
			return a.print(result)
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "History period: day|week (default from config)")
	cmd.Flags().Float64Var(&riskAversion, "risk-aversion", 0.5, "Risk aversion in [0,1]; 1 minimizes variance only")
	cmd.Flags().BoolVar(&useHoldings, "holdings", false, "Allocate across the items currently held")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Optimizer time limit (default from config)")
	return cmd
}

func newMarketCmd(a *app) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "market ITEM",
		Short: "Margin card, trend recommendation and short forecast for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}
			card, err := a.container.MarketService.Card(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			rec, err := a.container.MarketService.Recommend(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{
				"card":           card,
				"recommendation": rec,
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", string(domain.PeriodHour), "History period: hour|day|week")
	return cmd
}

func newLeaderboardCmd(a *app) *cobra.Command {
	var (
		window time.Duration
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard PLAYER...",
		Short: "Rank players by order volume in a recent window",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := a.container.MarketService.Leaderboard(cmd.Context(), args, window, limit)
			if err != nil {
				return err
			}
			return a.print(board)
		},
	}

	cmd.Flags().DurationVar(&window, "window", market.DefaultLeaderboardWindow, "Look-back window")
	cmd.Flags().IntVar(&limit, "limit", market.DefaultLeaderboardLimit, "Entries to show")
	return cmd
}
