package trading

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrNoPosition           = errors.New("no position")
	ErrRejected             = errors.New("order rejected")
	ErrPersistence          = errors.New("persistence failure")
)

// InsufficientFundsError reports a buy the account cannot fund.
// Required is the capital needed (after margin) plus charges.
type InsufficientFundsError struct {
	Currency  string
	Required  decimal.Decimal
	Capital   decimal.Decimal
	Charges   decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient balance. Required: %s%s (Order: %s%s + Charges: %s%s). Available: %s%s",
		e.Currency, e.Required.StringFixed(2),
		e.Currency, e.Capital.StringFixed(2),
		e.Currency, e.Charges.StringFixed(2),
		e.Currency, e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// InsufficientHoldingsError reports a sell larger than the position.
type InsufficientHoldingsError struct {
	Symbol    string
	Requested decimal.Decimal
	Held      decimal.Decimal
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("Insufficient holdings for %s. Trying to sell %s, but only hold %s",
		e.Symbol, e.Requested, e.Held)
}

func (e *InsufficientHoldingsError) Is(target error) bool {
	return target == ErrInsufficientHoldings
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// IsBusinessError reports whether err is a user-facing rejection rather
// than an infrastructure failure.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientHoldings) ||
		errors.Is(err, ErrNoPosition) ||
		errors.Is(err, ErrRejected)
}
