package vault

import (
	"context"

	"github.com/shopspring/decimal"
)

// PositionReader reads vault state from the external ledger
// (contract-equivalent). Collateral and debt are cumulative per
// (token, owner) pair and mutated only by external mint/redeem/liquidate
// operations.
type PositionReader interface {
	// Position returns the raw collateral/debt for a vault
	Position(ctx context.Context, token TokenType, owner string) (Position, error)

	// Owners enumerates all addresses with a vault for the token
	Owners(ctx context.Context, token TokenType) ([]string, error)

	// TokenBalance returns the owner's index token wallet balance
	TokenBalance(ctx context.Context, token TokenType, owner string) (decimal.Decimal, error)

	// WalletBalance returns the owner's base USDC wallet balance
	WalletBalance(ctx context.Context, owner string) (decimal.Decimal, error)
}

// PriceSource supplies the current oracle price for an index token
type PriceSource interface {
	Price(ctx context.Context, token TokenType) (decimal.Decimal, error)
}

// TokenEngine executes the external burn/transfer leg of a liquidation.
// The engine is treated as an external collaborator: it either completes
// and returns a transaction hash, or fails outright. Partial rollback is
// not supported.
type TokenEngine interface {
	// BurnAndSeize burns debtRepaid index tokens from the liquidator and
	// transfers payment (debt value + bonus) of the vault's collateral to
	// the liquidator, with any refund going back to the owner.
	BurnAndSeize(ctx context.Context, token TokenType, owner, liquidator string, debtRepaid, payment, refund decimal.Decimal) (txHash string, err error)
}
