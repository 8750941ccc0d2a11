package strategy

import (
	"errors"
	"fmt"
)

const (
	FastPeriod = 20
	SlowPeriod = 50
)

var ErrNotEnoughData = errors.New("not enough data to run SMA strategy")

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Crossover is the state of the fast/slow moving averages at the last two bars.
type Crossover struct {
	Signal   Signal  `json:"signal"`
	Price    float64 `json:"price"`
	Fast     float64 `json:"sma20"`
	Slow     float64 `json:"sma50"`
	PrevFast float64 `json:"prevSma20"`
	PrevSlow float64 `json:"prevSma50"`
}

// SMA returns the simple moving average of the period values ending at
// index end (inclusive). ok is false when fewer than period values exist.
func SMA(values []float64, period, end int) (avg float64, ok bool) {
	if period <= 0 || end >= len(values) || end-period+1 < 0 {
		return 0, false
	}
	var sum float64
	for i := end - period + 1; i <= end; i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// DetectCrossover compares the 20- and 50-bar averages of the last bar with
// those of the previous bar. A fast average crossing above the slow one is
// a BUY, crossing below is a SELL, anything else is HOLD.
func DetectCrossover(closes []float64) (*Crossover, error) {
	if len(closes) < SlowPeriod {
		return nil, fmt.Errorf("%w: have %d candles, need %d", ErrNotEnoughData, len(closes), SlowPeriod)
	}

	last := len(closes) - 1
	c := &Crossover{Signal: SignalHold, Price: closes[last]}
	c.Fast, _ = SMA(closes, FastPeriod, last)
	c.Slow, _ = SMA(closes, SlowPeriod, last)

	prevFast, okFast := SMA(closes, FastPeriod, last-1)
	prevSlow, okSlow := SMA(closes, SlowPeriod, last-1)
	if !okFast || !okSlow {
		// only one bar has a slow average; nothing to cross from
		return c, nil
	}
	c.PrevFast, c.PrevSlow = prevFast, prevSlow

	switch {
	case prevFast <= prevSlow && c.Fast > c.Slow:
		c.Signal = SignalBuy
	case prevFast >= prevSlow && c.Fast < c.Slow:
		c.Signal = SignalSell
	}
	return c, nil
}
