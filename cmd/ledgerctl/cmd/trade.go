package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/kjannette/papertrade-backend/internal/app"
	"github.com/kjannette/papertrade-backend/internal/fees"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/trading"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	orderSide     string
	orderProduct  string
	orderPrice    string
	orderQty      string
	orderStrategy string
)

var tradeCmd = &cobra.Command{
	Use:   "trade <symbol>",
	Short: "Execute a paper order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, qty, err := parsePriceQty(orderPrice, orderQty)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App, p *market.Policy) error {
			exec, err := a.Engine.ExecuteTrade(ctx, p, trading.Order{
				Symbol:       args[0],
				Side:         models.Side(orderSide),
				ProductType:  models.ProductType(orderProduct),
				Price:        price,
				Quantity:     qty,
				StrategyName: orderStrategy,
			})
			if err != nil {
				return err
			}
			printExecution(cmd.OutOrStdout(), p, exec)
			return nil
		})
	},
}

var exitCmd = &cobra.Command{
	Use:   "exit <symbol>",
	Short: "Sell a held position at a price (all of it unless --qty is given)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if orderQty == "" {
			orderQty = "0"
		}
		price, qty, err := parsePriceQty(orderPrice, orderQty)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App, p *market.Policy) error {
			exec, err := a.Engine.ExitPosition(ctx, p, args[0], price, qty)
			if err != nil {
				return err
			}
			printExecution(cmd.OutOrStdout(), p, exec)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default balance and erase trades and positions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *market.Policy) error {
			res, err := a.Engine.ResetAccount(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		})
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Show the charge breakdown for an order without placing it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		price, qty, err := parsePriceQty(orderPrice, orderQty)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := app.Markets(cfg)
		if err != nil {
			return err
		}
		p, err := lookupMarket(reg)
		if err != nil {
			return err
		}

		// estimates never touch the ledger
		engine := trading.NewEngine(nil, nil, nil)
		b, err := engine.EstimateCharges(p, models.Side(orderSide), models.ProductType(orderProduct), price, qty)
		if err != nil {
			return err
		}
		printBreakdown(cmd.OutOrStdout(), b)
		return nil
	},
}

func parsePriceQty(price, qty string) (decimal.Decimal, decimal.Decimal, error) {
	if price == "" {
		return decimal.Zero, decimal.Zero, fmt.Errorf("--price is required")
	}
	if qty == "" {
		return decimal.Zero, decimal.Zero, fmt.Errorf("--qty is required")
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("bad --price: %w", err)
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("bad --qty: %w", err)
	}
	return p, q, nil
}

func printExecution(out io.Writer, p *market.Policy, exec *trading.Execution) {
	t := exec.Trade
	fmt.Fprintf(out, "Trade executed: #%d %s %s %s x %s @ %s (%s)\n",
		t.ID, t.Side, t.ProductType, t.Symbol, t.Quantity, p.Money(t.Price), t.Ref)
	printBreakdown(out, exec.Charges)
	fmt.Fprintf(out, "Balance: %s\n", p.Money(exec.Balance))
}

func printBreakdown(out io.Writer, b fees.Breakdown) {
	for _, c := range b.Components {
		fmt.Fprintf(out, "  %-20s %s\n", c.Name, c.Amount)
	}
	fmt.Fprintf(out, "  %-20s %s\n", "total", b.Total)
}

func init() {
	rootCmd.AddCommand(tradeCmd)
	rootCmd.AddCommand(exitCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(estimateCmd)

	for _, c := range []*cobra.Command{tradeCmd, exitCmd, estimateCmd} {
		c.Flags().StringVarP(&orderPrice, "price", "p", "", "limit price")
		c.Flags().StringVarP(&orderQty, "qty", "q", "", "quantity")
	}
	for _, c := range []*cobra.Command{tradeCmd, estimateCmd} {
		c.Flags().StringVarP(&orderSide, "side", "s", string(models.Buy), "BUY or SELL")
		c.Flags().StringVar(&orderProduct, "product", string(models.Delivery), "DELIVERY or INTRADAY")
	}
	tradeCmd.Flags().StringVar(&orderStrategy, "strategy", trading.DefaultStrategy, "strategy name recorded on the trade")
}
