package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kjannette/papertrade-backend/internal/app"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func parseOptionalQty(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad --qty: %w", err)
	}
	return q, nil
}

func printResult(out io.Writer, res *strategy.Result) {
	fmt.Fprintf(out, "%s: %s at %.2f", res.Symbol, res.Signal, res.Price)
	switch {
	case res.Executed:
		fmt.Fprintf(out, " (executed, trade #%d)\n", res.TradeID)
	case res.Reason != "":
		fmt.Fprintf(out, " (not executed: %s)\n", res.Reason)
	default:
		fmt.Fprintln(out)
	}
}

func runStrategy(cmd *cobra.Command, symbol string, qty decimal.Decimal) func(context.Context, *app.App, *market.Policy) error {
	return func(ctx context.Context, a *app.App, p *market.Policy) error {
		res, err := a.Runner.Run(ctx, p, symbol, qty)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	}
}

// sweepWatchlists runs the strategy over every configured watchlist, the
// same pass the server's scheduler makes on each tick.
func sweepWatchlists(cmd *cobra.Command, qty decimal.Decimal) func(context.Context, *app.App, *market.Policy) error {
	return func(ctx context.Context, a *app.App, _ *market.Policy) error {
		if qty.IsPositive() {
			a.Config.StrategyQuantity = qty.InexactFloat64()
		}
		if len(app.Watches(a.Config, a.Markets)) == 0 {
			return errors.New("no watchlists configured (set STRATEGY_WATCHLIST_IN or STRATEGY_WATCHLIST_US)")
		}
		out := cmd.OutOrStdout()
		sum := a.SweepOnce(ctx, func(p *market.Policy, res *strategy.Result) {
			fmt.Fprintf(out, "[%s] ", p.Code)
			printResult(out, res)
		})
		fmt.Fprintf(out, "%d evaluated, %d executed, %d skipped, %d failed\n",
			sum.Evaluated, sum.Executed, sum.Skipped, sum.Failed)
		return nil
	}
}

var (
	strategyQty string
	strategyAll bool
)

func strategyArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
		return err
	}
	if strategyAll && len(args) == 1 {
		return errors.New("give a symbol or --all, not both")
	}
	if !strategyAll && len(args) == 0 {
		return errors.New("a symbol is required unless --all is set")
	}
	return nil
}

var strategyCmd = &cobra.Command{
	Use:   "strategy [symbol]",
	Short: "Run the SMA 20/50 crossover once for a symbol or every watchlist",
	Args:  strategyArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := parseOptionalQty(strategyQty)
		if err != nil {
			return err
		}
		if strategyAll {
			return withApp(cmd, sweepWatchlists(cmd, qty))
		}
		return withApp(cmd, runStrategy(cmd, args[0], qty))
	},
}

func init() {
	rootCmd.AddCommand(strategyCmd)

	strategyCmd.Flags().StringVarP(&strategyQty, "qty", "q", "1", "shares to trade on a signal")
	strategyCmd.Flags().BoolVar(&strategyAll, "all", false, "sweep every configured watchlist")
}
