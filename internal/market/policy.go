// Package market holds the per-scope parameters that distinguish the Indian
// and US paper accounts. The trading engine is written once against Policy.
package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kjannette/papertrade-backend/internal/fees"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	India = "IN"
	US    = "US"
)

type Policy struct {
	Code           string
	Name           string
	Currency       string
	CurrencySymbol string
	DefaultBalance decimal.Decimal
	Location       *time.Location

	// MarginMultiplier scales buying power for INTRADAY buys. Zero means
	// the market has no margin and every buy needs the full order value.
	MarginMultiplier decimal.Decimal

	// DisplayRate converts balances into DisplayCurrency for summaries.
	// Zero disables the conversion.
	DisplayCurrency string
	DisplaySymbol   string
	DisplayRate     decimal.Decimal

	Fees fees.Calculator
}

func IndiaPolicy() *Policy {
	return &Policy{
		Code:             India,
		Name:             "India (NSE)",
		Currency:         "INR",
		CurrencySymbol:   "₹",
		DefaultBalance:   decimal.NewFromInt(100000),
		Location:         loadLocation("Asia/Kolkata", 5*60+30),
		MarginMultiplier: decimal.NewFromInt(5),
		Fees:             fees.IndiaCalculator{},
	}
}

func USPolicy() *Policy {
	return &Policy{
		Code:            US,
		Name:            "United States",
		Currency:        "USD",
		CurrencySymbol:  "$",
		DefaultBalance:  decimal.RequireFromString("1190.48"),
		Location:        loadLocation("America/New_York", -5*60),
		DisplayCurrency: "INR",
		DisplaySymbol:   "₹",
		DisplayRate:     decimal.NewFromInt(84),
		Fees:            fees.USCalculator{},
	}
}

// loadLocation falls back to a fixed offset when the zone database is missing.
func loadLocation(name string, offsetMinutes int) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone(name, offsetMinutes*60)
}

func (p *Policy) HasMargin() bool {
	return p.MarginMultiplier.GreaterThan(decimal.Zero)
}

func (p *Policy) HasDisplayCurrency() bool {
	return p.DisplayRate.GreaterThan(decimal.Zero)
}

// RequiredCapital is the cash that must be on hand to fund a buy of the
// given order value, before charges.
func (p *Policy) RequiredCapital(product models.ProductType, orderValue decimal.Decimal) decimal.Decimal {
	if product == models.Intraday && p.HasMargin() {
		return orderValue.Div(p.MarginMultiplier)
	}
	return orderValue
}

// AvailableMargin is the intraday buying power of a balance.
func (p *Policy) AvailableMargin(balance decimal.Decimal) decimal.Decimal {
	if !p.HasMargin() {
		return balance
	}
	return balance.Mul(p.MarginMultiplier)
}

func (p *Policy) ToDisplay(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.DisplayRate)
}

// Money formats an amount in the market currency, e.g. "₹1,00,000" or "$1,190.48".
func (p *Policy) Money(amount decimal.Decimal) string {
	return p.CurrencySymbol + groupDigits(p.Currency, amount, 2)
}

// ResetMessage describes the balance an account was reset to.
func (p *Policy) ResetMessage() string {
	if !p.HasDisplayCurrency() {
		return "Account reset to " + p.CurrencySymbol + groupDigits(p.Currency, p.DefaultBalance, 2)
	}
	shown := p.ToDisplay(p.DefaultBalance)
	return fmt.Sprintf("%s Account reset to %s (%s%s)",
		p.Code, p.Money(p.DefaultBalance),
		p.DisplaySymbol, groupDigits(p.DisplayCurrency, shown, 0))
}

// groupDigits renders amount with thousands separators. INR uses the
// lakh/crore grouping (1,00,000). Whole amounts drop the fraction for INR.
func groupDigits(currency string, amount decimal.Decimal, places int32) string {
	amount = amount.Round(places)
	neg := amount.IsNegative()
	amount = amount.Abs()

	intPart := amount.Truncate(0).String()
	frac := ""
	if places > 0 {
		frac = amount.StringFixed(places)[len(intPart):]
		if currency == "INR" && amount.Equal(amount.Truncate(0)) {
			frac = ""
		}
	}

	var grouped string
	if currency == "INR" {
		grouped = groupIndian(intPart)
	} else {
		grouped = groupThousands(intPart)
	}
	if neg {
		grouped = "-" + grouped
	}
	return grouped + frac
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func groupIndian(s string) string {
	if len(s) <= 3 {
		return s
	}
	last3 := s[len(s)-3:]
	rest := s[:len(s)-3]
	var parts []string
	for len(rest) > 2 {
		parts = append([]string{rest[len(rest)-2:]}, parts...)
		rest = rest[:len(rest)-2]
	}
	if rest != "" {
		parts = append([]string{rest}, parts...)
	}
	return strings.Join(parts, ",") + "," + last3
}

// Registry resolves market names to policies.
type Registry struct {
	policies map[string]*Policy
}

func NewRegistry(policies ...*Policy) *Registry {
	r := &Registry{policies: make(map[string]*Policy)}
	for _, p := range policies {
		r.policies[p.Code] = p
	}
	return r
}

// DefaultRegistry holds the Indian and US markets with built-in parameters.
func DefaultRegistry() *Registry {
	return NewRegistry(IndiaPolicy(), USPolicy())
}

var aliases = map[string]string{
	"india": India,
	"in":    India,
	"nse":   India,
	"us":    US,
	"usa":   US,
}

// Lookup accepts a market code or alias in any case.
func (r *Registry) Lookup(name string) (*Policy, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if code, ok := aliases[key]; ok {
		key = code
	} else {
		key = strings.ToUpper(key)
	}
	p, ok := r.policies[key]
	return p, ok
}

func (r *Registry) All() []*Policy {
	out := make([]*Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
