package liquidation

import (
	"context"

	"github.com/shopspring/decimal"

	"levitas/internal/domain/vault"
)

// Ledger is the source of truth for "is this vault liquidated". Records are
// keyed by the canonical vault key; Record is an idempotent last-write-wins
// upsert. A vault cannot be un-liquidated except by ClearAll.
type Ledger interface {
	Record(ctx context.Context, rec *Record) error
	Get(ctx context.Context, token vault.TokenType, owner string) (*Record, error)
	IsLiquidated(ctx context.Context, token vault.TokenType, owner string) (bool, error)
	ListAll(ctx context.Context) ([]*Record, error)
	ClearAll(ctx context.Context) error
}

// HistoryStore persists per-address liquidation history. It is a derived
// display cache, never authoritative: the history service always reconciles
// it against the ledger before returning entries.
type HistoryStore interface {
	Load(ctx context.Context, address string) ([]HistoryEntry, error)
	Save(ctx context.Context, address string, entries []HistoryEntry) error
	Clear(ctx context.Context, address string) error
}

// TransferLedger records mock USDC transfers produced by simulated
// liquidations
type TransferLedger interface {
	Record(ctx context.Context, t *Transfer) error
	// NetFor returns inbound minus outbound transfer volume for an address
	NetFor(ctx context.Context, address string) (decimal.Decimal, error)
	ClearAll(ctx context.Context) error
}

// Archive is an append-only analytics sink for liquidation events.
// Writes are best-effort; a failed archive insert never fails a liquidation.
type Archive interface {
	Insert(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
}
