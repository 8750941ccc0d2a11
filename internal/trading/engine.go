// Package trading executes paper orders against a market's ledger and
// keeps the account balance, positions and trade log consistent.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjannette/papertrade-backend/internal/fees"
	"github.com/kjannette/papertrade-backend/internal/id"
	"github.com/kjannette/papertrade-backend/internal/logging"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/repository"
	"github.com/kjannette/papertrade-backend/internal/risk"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStrategy    = "Manual"
	ExitStrategy       = "Exit Position"
	DefaultTradeLimit  = 20
	averagePricePlaces = 10

	// MaxInputPlaces matches the scale of the ledger's NUMERIC(20,6) columns.
	MaxInputPlaces = 6
)

// Ledger is the persistence the engine needs. repository.LedgerRepo
// implements it against Postgres.
type Ledger interface {
	Begin(ctx context.Context) (repository.LedgerTx, error)
	Account(ctx context.Context, market string) (*models.Account, error)
	Position(ctx context.Context, market, symbol string) (*models.Position, error)
	Positions(ctx context.Context, market string) ([]models.Position, error)
	RecentTrades(ctx context.Context, market string, limit int) ([]models.Trade, error)
}

// Guard vets an order before any state changes. A non-nil error rejects it,
// unless it wraps risk.ErrUnavailable, which is reported as a storage fault.
type Guard interface {
	PreTradeCheck(ctx context.Context, policy *market.Policy, side models.Side, orderValue decimal.Decimal) error
}

type Notifier interface {
	Send(msg string)
}

type Order struct {
	Symbol       string             `json:"symbol"`
	Side         models.Side        `json:"side"`
	ProductType  models.ProductType `json:"product_type"`
	Price        decimal.Decimal    `json:"price"`
	Quantity     decimal.Decimal    `json:"quantity"`
	StrategyName string             `json:"strategy_name"`
}

type Execution struct {
	Trade   *models.Trade   `json:"trade"`
	Charges fees.Breakdown  `json:"charges"`
	Balance decimal.Decimal `json:"balance"`
}

type ResetResult struct {
	Message string          `json:"message"`
	Balance decimal.Decimal `json:"balance"`
}

type AccountSummary struct {
	Market           string           `json:"market"`
	Currency         string           `json:"currency"`
	Balance          decimal.Decimal  `json:"balance"`
	InitialBalance   decimal.Decimal  `json:"initial_balance"`
	TotalChargesPaid decimal.Decimal  `json:"total_charges_paid"`
	AvailableMargin  *decimal.Decimal `json:"available_margin,omitempty"`
	BalanceDisplay   *decimal.Decimal `json:"balance_inr,omitempty"`
}

type Engine struct {
	ledger   Ledger
	guard    Guard
	notifier Notifier
	now      func() time.Time
	newRef   func() string
}

// NewEngine builds an engine. guard and notifier may be nil.
func NewEngine(ledger Ledger, guard Guard, notifier Notifier) *Engine {
	return &Engine{
		ledger:   ledger,
		guard:    guard,
		notifier: notifier,
		now:      time.Now,
		newRef:   id.New,
	}
}

// Normalize upper-cases the symbol and fills defaults, then validates.
func (o *Order) Normalize() error {
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	o.Side = models.Side(strings.ToUpper(string(o.Side)))
	if o.ProductType == "" {
		o.ProductType = models.Delivery
	}
	o.ProductType = models.ProductType(strings.ToUpper(string(o.ProductType)))
	if strings.TrimSpace(o.StrategyName) == "" {
		o.StrategyName = DefaultStrategy
	}

	switch {
	case o.Symbol == "":
		return invalidf("symbol is required")
	case !o.Side.Valid():
		return invalidf("side must be BUY or SELL, got %q", o.Side)
	case !o.ProductType.Valid():
		return invalidf("product_type must be DELIVERY or INTRADAY, got %q", o.ProductType)
	case !o.Price.IsPositive():
		return invalidf("price must be greater than 0")
	case !o.Quantity.IsPositive():
		return invalidf("quantity must be greater than 0")
	}
	return checkPlaces(o.Price, o.Quantity)
}

// checkPlaces rejects values the ledger would round on write.
func checkPlaces(price, quantity decimal.Decimal) error {
	if !price.Equal(price.Truncate(MaxInputPlaces)) {
		return invalidf("price must have at most %d decimal places, got %s", MaxInputPlaces, price)
	}
	if !quantity.Equal(quantity.Truncate(MaxInputPlaces)) {
		return invalidf("quantity must have at most %d decimal places, got %s", MaxInputPlaces, quantity)
	}
	return nil
}

// ExecuteTrade applies one order atomically: cash, charges, trade log and
// position all change together or not at all.
func (e *Engine) ExecuteTrade(ctx context.Context, policy *market.Policy, order Order) (*Execution, error) {
	if err := order.Normalize(); err != nil {
		return nil, err
	}

	charges := policy.Fees.Compute(order.Side, order.ProductType, order.Price, order.Quantity)
	orderValue := order.Price.Mul(order.Quantity)

	if e.guard != nil {
		if err := e.guard.PreTradeCheck(ctx, policy, order.Side, orderValue); err != nil {
			if errors.Is(err, risk.ErrUnavailable) {
				return nil, persistence("pre-trade check", err)
			}
			return nil, fmt.Errorf("%w: %w", ErrRejected, err)
		}
	}

	tx, err := e.ledger.Begin(ctx)
	if err != nil {
		return nil, persistence("begin", err)
	}
	defer tx.Rollback(ctx)

	acct, err := tx.LockAccount(ctx, policy.Code, policy.DefaultBalance)
	if err != nil {
		return nil, persistence("load account", err)
	}

	pos, err := tx.Position(ctx, policy.Code, order.Symbol)
	if err != nil {
		return nil, persistence("load position", err)
	}

	switch order.Side {
	case models.Buy:
		capital := policy.RequiredCapital(order.ProductType, orderValue)
		required := capital.Add(charges.Total)
		if acct.Balance.LessThan(required) {
			return nil, &InsufficientFundsError{
				Currency:  policy.CurrencySymbol,
				Required:  required,
				Capital:   capital,
				Charges:   charges.Total,
				Available: acct.Balance,
			}
		}
		acct.Balance = acct.Balance.Sub(orderValue).Sub(charges.Total)

	case models.Sell:
		held := decimal.Zero
		if pos != nil {
			held = pos.TotalQuantity
		}
		if held.LessThan(order.Quantity) {
			return nil, &InsufficientHoldingsError{
				Symbol:    order.Symbol,
				Requested: order.Quantity,
				Held:      held,
			}
		}
		acct.Balance = acct.Balance.Add(orderValue).Sub(charges.Total)
	}

	acct.TotalChargesPaid = acct.TotalChargesPaid.Add(charges.Total)
	if err := tx.SaveAccount(ctx, acct); err != nil {
		return nil, persistence("save account", err)
	}

	trade, err := tx.InsertTrade(ctx, &models.Trade{
		Ref:          e.newRef(),
		Market:       policy.Code,
		Symbol:       order.Symbol,
		Side:         order.Side,
		ProductType:  order.ProductType,
		Price:        order.Price,
		Quantity:     order.Quantity,
		Charges:      charges.Total,
		StrategyName: order.StrategyName,
		Timestamp:    e.now().UTC(),
	})
	if err != nil {
		return nil, persistence("insert trade", err)
	}

	if err := applyFill(ctx, tx, policy.Code, pos, order); err != nil {
		return nil, persistence("update position", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistence("commit", err)
	}

	logging.For("trade").WithFields(logrus.Fields{
		"market":   policy.Code,
		"symbol":   trade.Symbol,
		"side":     trade.Side,
		"qty":      trade.Quantity.String(),
		"price":    trade.Price.String(),
		"charges":  charges.Total.String(),
		"strategy": trade.StrategyName,
	}).Info("Trade executed")
	e.notify(fmt.Sprintf("[%s] %s %s %s @ %s (%s) charges %s, balance %s",
		policy.Code, trade.Side, trade.Quantity, trade.Symbol, policy.Money(trade.Price),
		trade.StrategyName, policy.Money(charges.Total), policy.Money(acct.Balance)))

	return &Execution{Trade: trade, Charges: charges, Balance: acct.Balance}, nil
}

// applyFill folds an executed order into the symbol's position. Buys move
// the average cost; sells only reduce quantity and drop empty positions.
func applyFill(ctx context.Context, tx repository.LedgerTx, mkt string, pos *models.Position, order Order) error {
	if order.Side == models.Buy {
		if pos == nil {
			return tx.SavePosition(ctx, &models.Position{
				Market:        mkt,
				Symbol:        order.Symbol,
				AveragePrice:  order.Price,
				TotalQuantity: order.Quantity,
			})
		}
		cost := pos.AveragePrice.Mul(pos.TotalQuantity).Add(order.Price.Mul(order.Quantity))
		qty := pos.TotalQuantity.Add(order.Quantity)
		pos.TotalQuantity = qty
		pos.AveragePrice = cost.Div(qty).Round(averagePricePlaces)
		return tx.SavePosition(ctx, pos)
	}

	pos.TotalQuantity = pos.TotalQuantity.Sub(order.Quantity)
	if !pos.TotalQuantity.IsPositive() {
		return tx.DeletePosition(ctx, mkt, order.Symbol)
	}
	return tx.SavePosition(ctx, pos)
}

// ExitPosition sells quantity shares of symbol at price as a delivery
// order. A zero or negative quantity sells the entire holding.
func (e *Engine) ExitPosition(ctx context.Context, policy *market.Policy, symbol string, price, quantity decimal.Decimal) (*Execution, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, invalidf("symbol is required")
	}

	pos, err := e.ledger.Position(ctx, policy.Code, symbol)
	if err != nil {
		return nil, persistence("load position", err)
	}
	if pos == nil || !pos.TotalQuantity.IsPositive() {
		return nil, fmt.Errorf("%w: No position found for %s", ErrNoPosition, symbol)
	}

	qty := quantity
	if !qty.IsPositive() {
		qty = pos.TotalQuantity
	}
	if qty.GreaterThan(pos.TotalQuantity) {
		return nil, &InsufficientHoldingsError{Symbol: symbol, Requested: qty, Held: pos.TotalQuantity}
	}

	return e.ExecuteTrade(ctx, policy, Order{
		Symbol:       symbol,
		Side:         models.Sell,
		ProductType:  models.Delivery,
		Price:        price,
		Quantity:     qty,
		StrategyName: ExitStrategy,
	})
}

// ResetAccount restores the market's default balance and erases its
// trades and positions. Repeated resets leave the same state.
func (e *Engine) ResetAccount(ctx context.Context, policy *market.Policy) (*ResetResult, error) {
	tx, err := e.ledger.Begin(ctx)
	if err != nil {
		return nil, persistence("begin", err)
	}
	defer tx.Rollback(ctx)

	acct, err := tx.LockAccount(ctx, policy.Code, policy.DefaultBalance)
	if err != nil {
		return nil, persistence("load account", err)
	}

	acct.Balance = policy.DefaultBalance
	acct.InitialBalance = policy.DefaultBalance
	acct.TotalChargesPaid = decimal.Zero
	if err := tx.SaveAccount(ctx, acct); err != nil {
		return nil, persistence("save account", err)
	}
	if err := tx.ResetMarket(ctx, policy.Code); err != nil {
		return nil, persistence("reset market", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistence("commit", err)
	}

	msg := policy.ResetMessage()
	logging.For("trade").WithField("market", policy.Code).Info(msg)
	e.notify(fmt.Sprintf("[%s] %s", policy.Code, msg))

	return &ResetResult{Message: msg, Balance: policy.DefaultBalance}, nil
}

func (e *Engine) Portfolio(ctx context.Context, policy *market.Policy) ([]models.Position, error) {
	positions, err := e.ledger.Positions(ctx, policy.Code)
	if err != nil {
		return nil, persistence("load positions", err)
	}
	return positions, nil
}

// Holding returns the held quantity of symbol, zero when not held.
func (e *Engine) Holding(ctx context.Context, policy *market.Policy, symbol string) (decimal.Decimal, error) {
	pos, err := e.ledger.Position(ctx, policy.Code, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return decimal.Zero, persistence("load position", err)
	}
	if pos == nil {
		return decimal.Zero, nil
	}
	return pos.TotalQuantity, nil
}

// RecentTrades returns up to limit trades, newest first.
func (e *Engine) RecentTrades(ctx context.Context, policy *market.Policy, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	trades, err := e.ledger.RecentTrades(ctx, policy.Code, limit)
	if err != nil {
		return nil, persistence("load trades", err)
	}
	return trades, nil
}

// AccountSummary reports the account, materializing it with defaults if
// it has never been used.
func (e *Engine) AccountSummary(ctx context.Context, policy *market.Policy) (*AccountSummary, error) {
	acct, err := e.ledger.Account(ctx, policy.Code)
	if err != nil {
		return nil, persistence("load account", err)
	}
	if acct == nil {
		if acct, err = e.materialize(ctx, policy); err != nil {
			return nil, err
		}
	}

	s := &AccountSummary{
		Market:           policy.Code,
		Currency:         policy.Currency,
		Balance:          acct.Balance.Round(2),
		InitialBalance:   acct.InitialBalance,
		TotalChargesPaid: acct.TotalChargesPaid.Round(2),
	}
	if policy.HasMargin() {
		m := policy.AvailableMargin(acct.Balance).Round(2)
		s.AvailableMargin = &m
	}
	if policy.HasDisplayCurrency() {
		d := policy.ToDisplay(acct.Balance).Round(2)
		s.BalanceDisplay = &d
	}
	return s, nil
}

func (e *Engine) materialize(ctx context.Context, policy *market.Policy) (*models.Account, error) {
	tx, err := e.ledger.Begin(ctx)
	if err != nil {
		return nil, persistence("begin", err)
	}
	defer tx.Rollback(ctx)

	acct, err := tx.LockAccount(ctx, policy.Code, policy.DefaultBalance)
	if err != nil {
		return nil, persistence("create account", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistence("commit", err)
	}
	return acct, nil
}

// EstimateCharges prices an order without touching any state.
func (e *Engine) EstimateCharges(policy *market.Policy, side models.Side, product models.ProductType, price, quantity decimal.Decimal) (fees.Breakdown, error) {
	side = models.Side(strings.ToUpper(string(side)))
	if product == "" {
		product = models.Delivery
	}
	product = models.ProductType(strings.ToUpper(string(product)))

	switch {
	case !side.Valid():
		return fees.Breakdown{}, invalidf("side must be BUY or SELL, got %q", side)
	case !product.Valid():
		return fees.Breakdown{}, invalidf("product_type must be DELIVERY or INTRADAY, got %q", product)
	case !price.IsPositive():
		return fees.Breakdown{}, invalidf("price must be greater than 0")
	case !quantity.IsPositive():
		return fees.Breakdown{}, invalidf("quantity must be greater than 0")
	}
	if err := checkPlaces(price, quantity); err != nil {
		return fees.Breakdown{}, err
	}
	return policy.Fees.Compute(side, product, price, quantity), nil
}

func (e *Engine) notify(msg string) {
	if e.notifier != nil {
		e.notifier.Send(msg)
	}
}
