package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/kjannette/papertrade-backend/internal/app"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/trading"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show balance, charges paid and available margin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *market.Policy) error {
			s, err := a.Engine.AccountSummary(ctx, p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Market:        %s (%s)\n", p.Name, s.Market)
			fmt.Fprintf(out, "Balance:       %s\n", p.Money(s.Balance))
			fmt.Fprintf(out, "Initial:       %s\n", p.Money(s.InitialBalance))
			fmt.Fprintf(out, "Charges paid:  %s\n", p.Money(s.TotalChargesPaid))
			if s.AvailableMargin != nil {
				fmt.Fprintf(out, "Margin:        %s\n", p.Money(*s.AvailableMargin))
			}
			if s.BalanceDisplay != nil {
				fmt.Fprintf(out, "Balance (%s): %s%s\n", p.DisplayCurrency, p.DisplaySymbol, s.BalanceDisplay.StringFixed(2))
			}
			return nil
		})
	},
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "List open positions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *market.Policy) error {
			positions, err := a.Engine.Portfolio(ctx, p)
			if err != nil {
				return err
			}
			if len(positions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No open positions")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tQTY\tAVG PRICE\tCOST")
			for _, pos := range positions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", pos.Symbol, pos.TotalQuantity,
					pos.AveragePrice.StringFixed(4), p.Money(pos.AveragePrice.Mul(pos.TotalQuantity)))
			}
			return w.Flush()
		})
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent trades, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *market.Policy) error {
			trades, err := a.Engine.RecentTrades(ctx, p, historyLimit)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No trades")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tSYMBOL\tSIDE\tPRODUCT\tQTY\tPRICE\tVALUE\tCHARGES\tSTRATEGY")
			for _, t := range trades {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Timestamp.In(p.Location).Format("2006-01-02 15:04:05"),
					t.Symbol, t.Side, t.ProductType, t.Quantity,
					t.Price.StringFixed(2), t.Value().StringFixed(2), t.Charges.StringFixed(4), t.StrategyName)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", trading.DefaultTradeLimit, "number of trades to show")
}
