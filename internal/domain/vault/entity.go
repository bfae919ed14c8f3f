package vault

import (
	"strings"

	"github.com/shopspring/decimal"

	"levitas/pkg/errors"
)

// TokenType identifies a volatility index token
type TokenType string

const (
	TokenBVIX TokenType = "bvix"
	TokenEVIX TokenType = "evix"
)

// Tokens lists all supported index tokens
var Tokens = []TokenType{TokenBVIX, TokenEVIX}

// ParseToken normalizes and validates a token type string
func ParseToken(s string) (TokenType, error) {
	switch TokenType(strings.ToLower(strings.TrimSpace(s))) {
	case TokenBVIX:
		return TokenBVIX, nil
	case TokenEVIX:
		return TokenEVIX, nil
	}
	return "", errors.Wrapf(errors.ErrUnknownToken, "token %q", s)
}

// String returns string representation
func (t TokenType) String() string {
	return string(t)
}

// Valid checks if the token type is supported
func (t TokenType) Valid() bool {
	return t == TokenBVIX || t == TokenEVIX
}

// Key builds the canonical vault key: lowercase token type and owner address.
// The same normalization is used by the liquidation ledger, so a record
// written for "BVIX"/"0xAbC" matches a lookup for "bvix"/"0xabc".
func Key(token TokenType, owner string) string {
	return strings.ToLower(string(token)) + ":" + strings.ToLower(strings.TrimSpace(owner))
}

// Position holds the cumulative collateral and debt the external ledger
// tracks for a single (token, owner) pair. The external ledger has no
// concept of vault generations; see the vault service for how
// post-liquidation activity is isolated.
type Position struct {
	Token      TokenType       `json:"tokenType"`
	Owner      string          `json:"owner"`
	Collateral decimal.Decimal `json:"collateral"` // USDC backing the position
	Debt       decimal.Decimal `json:"debt"`       // index tokens owed
}

// CollateralRatio computes collateral / (debt * price) * 100.
// Defined as zero when debt is zero: a debt-free vault has no meaningful
// ratio and is never liquidatable.
func (p Position) CollateralRatio(price decimal.Decimal) decimal.Decimal {
	return CollateralRatio(p.Collateral, p.Debt, price)
}

// CollateralRatio computes the collateral ratio percentage for the given
// collateral, debt and price. Zero when debt or price is zero.
func CollateralRatio(collateral, debt, price decimal.Decimal) decimal.Decimal {
	if debt.IsZero() || price.IsZero() {
		return decimal.Zero
	}
	debtValue := debt.Mul(price)
	if debtValue.IsZero() {
		return decimal.Zero
	}
	return collateral.Div(debtValue).Mul(decimal.NewFromInt(100))
}
