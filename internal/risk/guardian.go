package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/repository"
	"github.com/shopspring/decimal"
)

// ErrUnavailable marks a check that could not run because its data source
// failed. Callers treat it as an infrastructure fault, not a rejection.
var ErrUnavailable = errors.New("pre-trade check unavailable")

// TradeCounter abstracts the trade-counting dependency so Guardian
// can be tested without a real database.
type TradeCounter interface {
	CountSince(ctx context.Context, market string, since time.Time) (int, error)
}

// Limits holds one market's order limits.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxOrderValue  decimal.Decimal
	MaxDailyTrades int
}

type Guardian struct {
	limits  map[string]Limits
	counter TradeCounter
	now     func() time.Time
}

// NewGuardian takes limits keyed by market code. Markets without an entry
// are unrestricted.
func NewGuardian(limits map[string]Limits, counter TradeCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter, now: time.Now}
}

// Enabled reports whether any market has an active limit.
func (g *Guardian) Enabled() bool {
	for _, l := range g.limits {
		if l.MaxOrderValue.IsPositive() || l.MaxDailyTrades > 0 {
			return true
		}
	}
	return false
}

// PreTradeCheck validates per-order constraints before execution.
// Returns nil if the order is allowed, a descriptive error if blocked.
func (g *Guardian) PreTradeCheck(ctx context.Context, policy *market.Policy, side models.Side, orderValue decimal.Decimal) error {
	l, ok := g.limits[policy.Code]
	if !ok {
		return nil
	}

	if l.MaxOrderValue.IsPositive() && orderValue.GreaterThan(l.MaxOrderValue) {
		return fmt.Errorf("order blocked: %s value %s exceeds max %s",
			side, policy.Money(orderValue), policy.Money(l.MaxOrderValue))
	}

	if l.MaxDailyTrades > 0 && g.counter != nil {
		since := repository.SessionStart(g.now(), policy.Location)
		count, err := g.counter.CountSince(ctx, policy.Code, since)
		if err != nil {
			return fmt.Errorf("%w: count trades: %w", ErrUnavailable, err)
		}
		if count >= l.MaxDailyTrades {
			return fmt.Errorf("order blocked: daily limit of %d trades reached (%d executed today)",
				l.MaxDailyTrades, count)
		}
	}

	return nil
}
