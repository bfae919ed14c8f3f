package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/pkg/errors"
)

// Compile-time check
var _ liquidation.Ledger = (*Ledger)(nil)

// Ledger implements liquidation.Ledger on PostgreSQL. Same contract as the
// in-memory ledger: keyed by normalized (token_type, owner), last-write-wins.
//
// Schema:
//
//	CREATE TABLE liquidations (
//	    token_type          TEXT NOT NULL,
//	    owner_address       TEXT NOT NULL,
//	    liquidator          TEXT NOT NULL,
//	    debt_repaid         NUMERIC NOT NULL,
//	    collateral_seized   NUMERIC NOT NULL,
//	    bonus               NUMERIC NOT NULL,
//	    owner_refund        NUMERIC NOT NULL,
//	    recorded_at         TIMESTAMPTZ NOT NULL,
//	    tx_hash             TEXT NOT NULL,
//	    snapshot_collateral NUMERIC,
//	    snapshot_debt       NUMERIC,
//	    PRIMARY KEY (token_type, owner_address)
//	);
type Ledger struct {
	db DBTX
}

// NewLedger creates a new postgres-backed liquidation ledger
func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

type liquidationRow struct {
	TokenType          string           `db:"token_type"`
	Owner              string           `db:"owner_address"`
	Liquidator         string           `db:"liquidator"`
	DebtRepaid         decimal.Decimal  `db:"debt_repaid"`
	CollateralSeized   decimal.Decimal  `db:"collateral_seized"`
	Bonus              decimal.Decimal  `db:"bonus"`
	OwnerRefund        decimal.Decimal  `db:"owner_refund"`
	RecordedAt         time.Time        `db:"recorded_at"`
	TxHash             string           `db:"tx_hash"`
	SnapshotCollateral *decimal.Decimal `db:"snapshot_collateral"`
	SnapshotDebt       *decimal.Decimal `db:"snapshot_debt"`
}

func (r liquidationRow) toRecord() *liquidation.Record {
	rec := &liquidation.Record{
		TokenType:        vault.TokenType(r.TokenType),
		Owner:            r.Owner,
		Liquidator:       r.Liquidator,
		DebtRepaid:       r.DebtRepaid,
		CollateralSeized: r.CollateralSeized,
		Bonus:            r.Bonus,
		OwnerRefund:      r.OwnerRefund,
		Timestamp:        r.RecordedAt,
		TxHash:           r.TxHash,
	}
	if r.SnapshotCollateral != nil && r.SnapshotDebt != nil {
		rec.ContractState = &liquidation.ContractState{
			Collateral: *r.SnapshotCollateral,
			Debt:       *r.SnapshotDebt,
		}
	}
	return rec
}

// Record upserts a liquidation record, last-write-wins on the vault key
func (l *Ledger) Record(ctx context.Context, rec *liquidation.Record) error {
	if rec == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil liquidation record")
	}

	var snapCollateral, snapDebt *decimal.Decimal
	if rec.ContractState != nil {
		snapCollateral = &rec.ContractState.Collateral
		snapDebt = &rec.ContractState.Debt
	}

	query := `
		INSERT INTO liquidations (
			token_type, owner_address, liquidator,
			debt_repaid, collateral_seized, bonus, owner_refund,
			recorded_at, tx_hash, snapshot_collateral, snapshot_debt
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (token_type, owner_address) DO UPDATE SET
			liquidator = EXCLUDED.liquidator,
			debt_repaid = EXCLUDED.debt_repaid,
			collateral_seized = EXCLUDED.collateral_seized,
			bonus = EXCLUDED.bonus,
			owner_refund = EXCLUDED.owner_refund,
			recorded_at = EXCLUDED.recorded_at,
			tx_hash = EXCLUDED.tx_hash,
			snapshot_collateral = EXCLUDED.snapshot_collateral,
			snapshot_debt = EXCLUDED.snapshot_debt`

	_, err := l.db.ExecContext(ctx, query,
		strings.ToLower(string(rec.TokenType)), strings.ToLower(rec.Owner), rec.Liquidator,
		rec.DebtRepaid, rec.CollateralSeized, rec.Bonus, rec.OwnerRefund,
		rec.Timestamp, rec.TxHash, snapCollateral, snapDebt,
	)
	return errors.Wrap(err, "failed to upsert liquidation record")
}

// Get returns the record for a vault, or ErrNotFound
func (l *Ledger) Get(ctx context.Context, token vault.TokenType, owner string) (*liquidation.Record, error) {
	var row liquidationRow

	query := `SELECT * FROM liquidations WHERE token_type = $1 AND owner_address = $2`

	err := l.db.GetContext(ctx, &row, query, strings.ToLower(string(token)), strings.ToLower(owner))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "no liquidation record for %s", vault.Key(token, owner))
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get liquidation record")
	}

	return row.toRecord(), nil
}

// IsLiquidated checks whether a vault has a liquidation record
func (l *Ledger) IsLiquidated(ctx context.Context, token vault.TokenType, owner string) (bool, error) {
	var count int

	query := `SELECT COUNT(1) FROM liquidations WHERE token_type = $1 AND owner_address = $2`

	err := l.db.GetContext(ctx, &count, query, strings.ToLower(string(token)), strings.ToLower(owner))
	if err != nil {
		return false, errors.Wrap(err, "failed to check liquidation record")
	}
	return count > 0, nil
}

// ListAll returns all records, newest first
func (l *Ledger) ListAll(ctx context.Context) ([]*liquidation.Record, error) {
	var rows []liquidationRow

	query := `SELECT * FROM liquidations ORDER BY recorded_at DESC`

	if err := l.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to list liquidation records")
	}

	out := make([]*liquidation.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// ClearAll removes all records. Administrative reset only.
func (l *Ledger) ClearAll(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM liquidations`)
	return errors.Wrap(err, "failed to clear liquidations")
}
