package liquidation

import (
	"github.com/shopspring/decimal"

	"levitas/internal/domain/liquidation"
	"levitas/pkg/errors"
)

// ComputePayout calculates the liquidation split for a vault:
//
//	debtValue         = debt * price
//	bonus             = debtValue * bonusRate
//	liquidatorPayment = debtValue + bonus
//	ownerRefund       = max(0, collateralTotal - liquidatorPayment)
//
// When collateral cannot cover the full liquidator payment the refund floors
// at zero and the shortfall is reported on the payout; the liquidator payment
// is never reduced. Who bears the shortfall is an open product question — the
// amount is surfaced so callers can flag it, not silently absorbed here.
//
// Callers must exclude zero-debt vaults via the eligibility evaluator first;
// a zero debt here is an error, not a zero payout.
func ComputePayout(debt, price, collateralTotal, bonusRate decimal.Decimal) (liquidation.Payout, error) {
	if !debt.IsPositive() {
		return liquidation.Payout{}, errors.Wrap(errors.ErrNothingToLiquidate, "payout requested for zero-debt vault")
	}

	debtValue := debt.Mul(price)
	bonus := debtValue.Mul(bonusRate)
	payment := debtValue.Add(bonus)

	refund := collateralTotal.Sub(payment)
	shortfall := decimal.Zero
	if refund.IsNegative() {
		shortfall = refund.Neg()
		refund = decimal.Zero
	}

	return liquidation.Payout{
		DebtValue:         debtValue,
		Bonus:             bonus,
		LiquidatorPayment: payment,
		OwnerRefund:       refund,
		Shortfall:         shortfall,
	}, nil
}
