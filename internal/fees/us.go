package fees

import (
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	Commission = "commission"
	SECFee     = "sec_fee"
	FINRATAF   = "finra_taf"
)

var (
	secFeeRate  = rate("0.000008")
	finraTAFPer = rate("0.000166")
	finraTAFCap = rate("8.30")
)

// USCalculator models a zero-commission broker. Only sells pay the SEC
// section 31 fee and the FINRA trading activity fee (capped per trade).
type USCalculator struct{}

func (USCalculator) Compute(side models.Side, _ models.ProductType, price, quantity decimal.Decimal) Breakdown {
	turnover := price.Mul(quantity)

	commission := decimal.Zero
	sec := decimal.Zero
	taf := decimal.Zero
	if side == models.Sell {
		sec = turnover.Mul(secFeeRate)
		taf = decimal.Min(quantity.Mul(finraTAFPer), finraTAFCap)
	}

	total := commission.Add(sec).Add(taf)

	return Breakdown{
		Components: []Component{
			{Commission, commission.Round(2)},
			{SECFee, sec.Round(4)},
			{FINRATAF, taf.Round(4)},
		},
		Total: total.Round(4),
	}
}
