package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

type ProductType string

const (
	Delivery ProductType = "DELIVERY"
	Intraday ProductType = "INTRADAY"
)

func (p ProductType) Valid() bool {
	return p == Delivery || p == Intraday
}

// Account is the single paper cash account of a market.
type Account struct {
	Market           string          `json:"market"`
	Balance          decimal.Decimal `json:"balance"`
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	TotalChargesPaid decimal.Decimal `json:"total_charges_paid"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Position is an open holding. Rows with zero quantity are never stored.
type Position struct {
	Market        string          `json:"-"`
	Symbol        string          `json:"symbol"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Trade struct {
	ID           int64           `json:"id"`
	Ref          string          `json:"ref"`
	Market       string          `json:"-"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	ProductType  ProductType     `json:"product_type"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Charges      decimal.Decimal `json:"charges"`
	StrategyName string          `json:"strategy_name"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Value is price x quantity.
func (t *Trade) Value() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
