package cmd

import (
	"bytes"
	"testing"

	"github.com/kjannette/papertrade-backend/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestEstimate_India(t *testing.T) {
	t.Setenv("MARKETS_FILE", "")
	out, err := run(t, "estimate", "-m", "india", "--side", "BUY", "--product", "DELIVERY", "--price", "150.25", "--qty", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "brokerage")
	assert.Contains(t, out, "stamp_duty")
	assert.Regexp(t, `total\s+2\.32`, out)
}

func TestEstimate_USSellFees(t *testing.T) {
	t.Setenv("MARKETS_FILE", "")
	out, err := run(t, "estimate", "-m", "us", "--side", "sell", "--product", "DELIVERY", "--price", "50", "--qty", "100")
	require.NoError(t, err)
	assert.Regexp(t, `total\s+0\.0566`, out)
}

func TestEstimate_Errors(t *testing.T) {
	t.Setenv("MARKETS_FILE", "")

	_, err := run(t, "estimate", "-m", "jp", "--side", "BUY", "--price", "1", "--qty", "1")
	assert.ErrorContains(t, err, `unknown market "jp"`)

	_, err = run(t, "estimate", "-m", "in", "--side", "HOLD", "--price", "1", "--qty", "1")
	assert.ErrorContains(t, err, "side must be BUY or SELL")

	_, err = run(t, "estimate", "-m", "in", "--side", "BUY", "--price", "abc", "--qty", "1")
	assert.ErrorContains(t, err, "bad --price")
}

func TestParsePriceQty(t *testing.T) {
	_, _, err := parsePriceQty("", "1")
	assert.EqualError(t, err, "--price is required")
	_, _, err = parsePriceQty("1", "")
	assert.EqualError(t, err, "--qty is required")

	p, q, err := parsePriceQty("150.25", "10")
	require.NoError(t, err)
	assert.Equal(t, "150.25", p.String())
	assert.Equal(t, "10", q.String())
}

func TestStrategyArgs(t *testing.T) {
	t.Cleanup(func() { strategyAll = false })

	strategyAll = false
	assert.EqualError(t, strategyArgs(strategyCmd, nil), "a symbol is required unless --all is set")
	assert.NoError(t, strategyArgs(strategyCmd, []string{"AAPL"}))
	assert.Error(t, strategyArgs(strategyCmd, []string{"AAPL", "MSFT"}))

	strategyAll = true
	assert.NoError(t, strategyArgs(strategyCmd, nil))
	assert.EqualError(t, strategyArgs(strategyCmd, []string{"AAPL"}), "give a symbol or --all, not both")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &strategy.Result{Symbol: "AAPL", Signal: strategy.SignalBuy, Price: 187.5, Executed: true, TradeID: 7})
	printResult(&buf, &strategy.Result{Symbol: "MSFT", Signal: strategy.SignalSell, Price: 410, Reason: "Insufficient position in portfolio"})
	printResult(&buf, &strategy.Result{Symbol: "TCS.NS", Signal: strategy.SignalHold, Price: 3900.1})

	assert.Equal(t, "AAPL: BUY at 187.50 (executed, trade #7)\n"+
		"MSFT: SELL at 410.00 (not executed: Insufficient position in portfolio)\n"+
		"TCS.NS: HOLD at 3900.10\n", buf.String())
}
