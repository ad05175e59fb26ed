package accrual

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Token and ETH amounts are 18-decimal fixed point.
const tokenDecimals = 18

// AmountUSD values an accrued token amount: amount x unitPrice (in DONUT per
// token, 18 decimals) x donutUSD. A zero unit price values everything at 0.
func AmountUSD(amount, unitPrice *big.Int, donutUSD decimal.Decimal) decimal.Decimal {
	if amount == nil || unitPrice == nil || unitPrice.Sign() <= 0 {
		return decimal.Zero
	}
	tokens := decimal.NewFromBigInt(amount, -tokenDecimals)
	price := decimal.NewFromBigInt(unitPrice, -tokenDecimals)
	return tokens.Mul(price).Mul(donutUSD)
}

// ValueUSD returns the USD value of the displayed amount and of the
// per-second rate.
func (v Value) ValueUSD(unitPrice *big.Int, donutUSD decimal.Decimal) (amount, rate decimal.Decimal) {
	return AmountUSD(v.Displayed, unitPrice, donutUSD), AmountUSD(v.PerTick, unitPrice, donutUSD)
}
