package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/kjannette/papertrade-backend/internal/logging"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/trading"
	"github.com/shopspring/decimal"
)

const (
	Name = "SMA_Crossover"

	// lookbackDays of daily bars requested from the candle source.
	lookbackDays = 365
)

type CandleSource interface {
	DailyCandles(ctx context.Context, symbol string, days int) ([]models.Candle, error)
}

// Executor is the part of trading.Engine the runner drives.
type Executor interface {
	Holding(ctx context.Context, policy *market.Policy, symbol string) (decimal.Decimal, error)
	ExecuteTrade(ctx context.Context, policy *market.Policy, order trading.Order) (*trading.Execution, error)
}

type Result struct {
	Symbol   string  `json:"symbol"`
	Signal   Signal  `json:"signal"`
	Executed bool    `json:"executed"`
	Price    float64 `json:"price,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	TradeID  int64   `json:"trade_id,omitempty"`
}

type Runner struct {
	candles CandleSource
	exec    Executor
}

func NewRunner(candles CandleSource, exec Executor) *Runner {
	return &Runner{candles: candles, exec: exec}
}

// Run evaluates the SMA crossover for symbol and, on a BUY or SELL signal,
// places a delivery order for quantity shares at the last close. A SELL
// signal without enough shares held is reported, not executed.
func (r *Runner) Run(ctx context.Context, policy *market.Policy, symbol string, quantity decimal.Decimal) (*Result, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", trading.ErrInvalidInput)
	}
	if !quantity.IsPositive() {
		quantity = decimal.NewFromInt(1)
	}

	candles, err := r.candles.DailyCandles(ctx, symbol, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	cross, err := DetectCrossover(closes)
	if err != nil {
		return nil, err
	}

	res := &Result{Symbol: symbol, Signal: cross.Signal, Price: cross.Price}
	log := logging.For("strategy").WithField("market", policy.Code).WithField("symbol", symbol)

	if cross.Signal == SignalHold {
		log.Debugf("HOLD (sma20 %.2f, sma50 %.2f)", cross.Fast, cross.Slow)
		return res, nil
	}

	if cross.Signal == SignalSell {
		held, err := r.exec.Holding(ctx, policy, symbol)
		if err != nil {
			return nil, err
		}
		if held.LessThan(quantity) {
			res.Reason = "Insufficient position in portfolio"
			log.Infof("SELL signal skipped: hold %s, need %s", held, quantity)
			return res, nil
		}
	}

	exec, err := r.exec.ExecuteTrade(ctx, policy, trading.Order{
		Symbol:       symbol,
		Side:         models.Side(cross.Signal),
		ProductType:  models.Delivery,
		Price:        decimal.NewFromFloat(cross.Price),
		Quantity:     quantity,
		StrategyName: Name,
	})
	if err != nil {
		return nil, err
	}

	res.Executed = true
	res.TradeID = exec.Trade.ID
	log.Infof("%s signal executed at %.2f", cross.Signal, cross.Price)
	return res, nil
}
