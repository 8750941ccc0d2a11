package fees

import (
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/shopspring/decimal"
)

// Component names for the Indian schedule.
const (
	Brokerage          = "brokerage"
	STT                = "stt"
	TransactionCharges = "transaction_charges"
	GST                = "gst"
	SEBIFee            = "sebi_fee"
	StampDuty          = "stamp_duty"
)

var (
	brokerageRate    = rate("0.0003")
	brokerageCap     = rate("20")
	sttDeliveryRate  = rate("0.001")
	sttIntradayRate  = rate("0.00025")
	exchangeTxnRate  = rate("0.0000345")
	gstRate          = rate("0.18")
	sebiRate         = rate("0.000001")
	stampDutyBuyRate = rate("0.00015")
)

// IndiaCalculator applies the NSE equity schedule (discount brokerage,
// STT, exchange charges, GST, SEBI turnover fee, stamp duty).
//
// Components are rounded to 2 places except the SEBI fee (4 places).
// The total is the rounded sum of the unrounded components.
type IndiaCalculator struct{}

func (IndiaCalculator) Compute(side models.Side, product models.ProductType, price, quantity decimal.Decimal) Breakdown {
	turnover := price.Mul(quantity)

	brokerage := decimal.Min(turnover.Mul(brokerageRate), brokerageCap)

	stt := decimal.Zero
	switch {
	case product == models.Delivery:
		stt = turnover.Mul(sttDeliveryRate)
	case product == models.Intraday && side == models.Sell:
		stt = turnover.Mul(sttIntradayRate)
	}

	txn := turnover.Mul(exchangeTxnRate)
	gst := brokerage.Add(txn).Mul(gstRate)
	sebi := turnover.Mul(sebiRate)

	stamp := decimal.Zero
	if side == models.Buy {
		stamp = turnover.Mul(stampDutyBuyRate)
	}

	total := brokerage.Add(stt).Add(txn).Add(gst).Add(sebi).Add(stamp)

	return Breakdown{
		Components: []Component{
			{Brokerage, brokerage.Round(2)},
			{STT, stt.Round(2)},
			{TransactionCharges, txn.Round(2)},
			{GST, gst.Round(2)},
			{SEBIFee, sebi.Round(4)},
			{StampDuty, stamp.Round(2)},
		},
		Total: total.Round(2),
	}
}
