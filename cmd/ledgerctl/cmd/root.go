package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kjannette/papertrade-backend/internal/app"
	"github.com/kjannette/papertrade-backend/internal/config"
	"github.com/kjannette/papertrade-backend/internal/logging"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Inspect and operate the paper trading ledgers",
	Long: `ledgerctl works directly against the paper trading database.

It shares configuration (.env / environment) with the API server and
operates on one market at a time, selected with --market (IN or US).

Examples:
  ledgerctl account --market us
  ledgerctl trade TCS --side BUY --price 150.25 --qty 10
  ledgerctl estimate --side SELL --price 100 --qty 50 --market us
  ledgerctl exit TCS --price 160`,
	SilenceUsage: true,
}

var (
	marketName string
	logLevel   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&marketName, "market", "m", market.India, "market code or alias (IN, US, india, usa)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

// loadConfig reads the environment and sets up quiet logging for CLI use.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(logging.Config{Level: logLevel}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookupMarket(reg *market.Registry) (*market.Policy, error) {
	p, ok := reg.Lookup(marketName)
	if !ok {
		return nil, fmt.Errorf("unknown market %q", marketName)
	}
	return p, nil
}

// withApp runs fn against a connected App and the selected market.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, p *market.Policy) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := lookupMarket(a.Markets)
	if err != nil {
		return err
	}
	return fn(ctx, a, p)
}
