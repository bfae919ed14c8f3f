package liquidation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levitas/pkg/errors"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputePayout(t *testing.T) {
	bonusRate := d("0.05")

	payout, err := ComputePayout(d("10"), d("42.15"), d("1000"), bonusRate)
	require.NoError(t, err)

	assert.True(t, payout.DebtValue.Equal(d("421.5")), "debtValue = %s", payout.DebtValue)
	assert.True(t, payout.Bonus.Equal(d("21.075")), "bonus = %s", payout.Bonus)
	assert.True(t, payout.LiquidatorPayment.Equal(d("442.575")), "payment = %s", payout.LiquidatorPayment)
	assert.True(t, payout.OwnerRefund.Equal(d("557.425")), "refund = %s", payout.OwnerRefund)
	assert.True(t, payout.Shortfall.IsZero(), "shortfall = %s", payout.Shortfall)

	// Payment plus refund never exceeds the collateral that was there
	total := payout.LiquidatorPayment.Add(payout.OwnerRefund)
	assert.True(t, total.Equal(d("1000")))
}

func TestComputePayout_Shortfall(t *testing.T) {
	// Collateral cannot cover the payment: refund floors at zero, the
	// liquidator payment is never reduced, and the gap is surfaced.
	payout, err := ComputePayout(d("3"), d("42.15"), d("100"), d("0.05"))
	require.NoError(t, err)

	assert.True(t, payout.DebtValue.Equal(d("126.45")))
	assert.True(t, payout.LiquidatorPayment.Equal(d("132.7725")))
	assert.True(t, payout.OwnerRefund.IsZero())
	assert.True(t, payout.Shortfall.Equal(d("32.7725")), "shortfall = %s", payout.Shortfall)
}

func TestComputePayout_ExactCoverage(t *testing.T) {
	payout, err := ComputePayout(d("10"), d("40"), d("420"), d("0.05"))
	require.NoError(t, err)

	// 400 + 20 bonus == 420 collateral exactly
	assert.True(t, payout.OwnerRefund.IsZero())
	assert.True(t, payout.Shortfall.IsZero())
}

func TestComputePayout_ZeroDebt(t *testing.T) {
	_, err := ComputePayout(decimal.Zero, d("42.15"), d("1000"), d("0.05"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNothingToLiquidate))

	_, err = ComputePayout(d("-1"), d("42.15"), d("1000"), d("0.05"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNothingToLiquidate))
}
