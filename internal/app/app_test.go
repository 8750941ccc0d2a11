package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjannette/papertrade-backend/internal/config"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/scheduler"
	"github.com/kjannette/papertrade-backend/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimits(t *testing.T) {
	l := Limits(&config.Config{MaxOrderValueIN: 50000, MaxDailyTradesUS: 3})

	assert.True(t, l[market.India].MaxOrderValue.Equal(decimal.NewFromInt(50000)))
	assert.Zero(t, l[market.India].MaxDailyTrades)
	assert.True(t, l[market.US].MaxOrderValue.IsZero())
	assert.Equal(t, 3, l[market.US].MaxDailyTrades)
}

func TestWatches_SkipsEmptyLists(t *testing.T) {
	cfg := &config.Config{StrategyWatchlistUS: []string{"AAPL", "MSFT"}}
	w := Watches(cfg, market.DefaultRegistry())

	require.Len(t, w, 1)
	assert.Equal(t, market.US, w[0].Policy.Code)
	assert.Equal(t, []string{"AAPL", "MSFT"}, w[0].Symbols)
}

func TestMarkets_AppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("markets:\n  US:\n    display_rate: 85.5\n"), 0o600))

	reg, err := Markets(&config.Config{MarketsFile: path})
	require.NoError(t, err)
	us, ok := reg.Lookup("us")
	require.True(t, ok)
	assert.True(t, us.DisplayRate.Equal(decimal.RequireFromString("85.5")))
}

func TestMarkets_MissingFile(t *testing.T) {
	_, err := Markets(&config.Config{MarketsFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

type stubCandles struct {
	candles []models.Candle
	err     error
}

func (s stubCandles) DailyCandles(context.Context, string, int) ([]models.Candle, error) {
	return s.candles, s.err
}

func flatCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{Close: 100}
	}
	return out
}

func TestSweepOnce_ReportsEachSymbol(t *testing.T) {
	a := &App{
		Config: &config.Config{
			StrategyWatchlistIN: []string{"TCS.NS"},
			StrategyWatchlistUS: []string{"AAPL", "MSFT"},
			StrategyQuantity:    1,
		},
		Markets: market.DefaultRegistry(),
		Runner:  strategy.NewRunner(stubCandles{candles: flatCandles(60)}, nil),
	}

	var seen []string
	sum := a.SweepOnce(context.Background(), func(p *market.Policy, res *strategy.Result) {
		seen = append(seen, p.Code+":"+res.Symbol+":"+string(res.Signal))
	})

	assert.Equal(t, 3, sum.Evaluated)
	assert.Zero(t, sum.Executed)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, []string{"IN:TCS.NS:HOLD", "US:AAPL:HOLD", "US:MSFT:HOLD"}, seen)
}

func TestSweepOnce_CountsFailures(t *testing.T) {
	a := &App{
		Config:  &config.Config{StrategyWatchlistUS: []string{"AAPL"}},
		Markets: market.DefaultRegistry(),
		Runner:  strategy.NewRunner(stubCandles{err: errors.New("status 500")}, nil),
	}

	sum := a.SweepOnce(context.Background(), nil)
	assert.Equal(t, scheduler.Summary{Evaluated: 1, Failed: 1}, sum)
}

func TestReportSkipped(t *testing.T) {
	var msgs []string
	report := reportSkipped(func(m string) { msgs = append(msgs, m) })
	us := market.USPolicy()

	report(us, &strategy.Result{Symbol: "AAPL", Signal: strategy.SignalHold})
	report(us, &strategy.Result{Symbol: "AAPL", Signal: strategy.SignalBuy, Executed: true})
	report(us, &strategy.Result{Symbol: "AAPL", Signal: strategy.SignalSell, Reason: "Insufficient position in portfolio"})

	require.Len(t, msgs, 1)
	assert.Equal(t, "[US] SELL signal on AAPL not executed: Insufficient position in portfolio", msgs[0])
}
