package vault

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

func TestParseToken(t *testing.T) {
	for _, s := range []string{"bvix", "BVIX", " Bvix "} {
		token, err := ParseToken(s)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, TokenBVIX, token)
	}

	token, err := ParseToken("evix")
	require.NoError(t, err)
	assert.Equal(t, TokenEVIX, token)

	_, err = ParseToken("dogecoin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownToken))

	_, err = ParseToken("")
	require.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "bvix:0xabcdef", Key(TokenBVIX, "0xAbCdEf"))
	assert.Equal(t, "evix:0xabc", Key(TokenEVIX, "  0xABC  "))
}

func TestCollateralRatio(t *testing.T) {
	// 1000 / (10 * 42.15) * 100
	cr := CollateralRatio(d("1000"), d("10"), d("42.15"))
	assert.True(t, cr.Round(2).Equal(d("237.25")), "cr = %s", cr)

	// Zero debt and zero price are defined as zero, not an error
	assert.True(t, CollateralRatio(d("1000"), decimal.Zero, d("42.15")).IsZero())
	assert.True(t, CollateralRatio(d("1000"), d("10"), decimal.Zero).IsZero())
	assert.True(t, CollateralRatio(decimal.Zero, d("10"), d("42.15")).IsZero())
}

func TestCollateralRatio_Monotonic(t *testing.T) {
	price := d("42.15")
	debt := d("10")

	// More collateral at fixed debt and price strictly raises the ratio
	prev := CollateralRatio(d("100"), debt, price)
	for _, collateral := range []string{"250", "500", "1000", "5000"} {
		cr := CollateralRatio(d(collateral), debt, price)
		assert.True(t, cr.GreaterThan(prev), "collateral %s: %s not > %s", collateral, cr, prev)
		prev = cr
	}

	// More debt at fixed collateral and price strictly lowers it
	collateral := d("1000")
	prev = CollateralRatio(collateral, d("1"), price)
	for _, debt := range []string{"2", "5", "10", "50"} {
		cr := CollateralRatio(collateral, d(debt), price)
		assert.True(t, cr.LessThan(prev), "debt %s: %s not < %s", debt, cr, prev)
		prev = cr
	}
}

func TestPositionCollateralRatio(t *testing.T) {
	pos := Position{
		Token:      TokenBVIX,
		Owner:      "0xowner",
		Collateral: d("500"),
		Debt:       d("10"),
	}
	cr := pos.CollateralRatio(d("42.15"))
	assert.True(t, cr.Round(2).Equal(d("118.62")), "cr = %s", cr)
}
