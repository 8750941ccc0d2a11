// Package fees computes regulatory and brokerage charges for a single order.
// Calculators are pure and safe for concurrent use.
package fees

import (
	"bytes"
	"encoding/json"

	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/shopspring/decimal"
)

type Calculator interface {
	Compute(side models.Side, product models.ProductType, price, quantity decimal.Decimal) Breakdown
}

type Component struct {
	Name   string
	Amount decimal.Decimal
}

// Breakdown is the itemized charge list of one order. It marshals to a flat
// JSON object whose keys are the component names followed by "total".
type Breakdown struct {
	Components []Component
	Total      decimal.Decimal
}

// Get returns the named component, or zero when absent.
func (b Breakdown) Get(name string) decimal.Decimal {
	for _, c := range b.Components {
		if c.Name == name {
			return c.Amount
		}
	}
	return decimal.Zero
}

func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, c := range b.Components {
		if err := writeField(&buf, c.Name, c.Amount); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	if err := writeField(&buf, "total", b.Total); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name string, v decimal.Decimal) error {
	k, err := json.Marshal(name)
	if err != nil {
		return err
	}
	val, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

func rate(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
