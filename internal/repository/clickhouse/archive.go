package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/pkg/errors"
)

// Compile-time check
var _ liquidation.Archive = (*Archive)(nil)

// Archive implements liquidation.Archive on ClickHouse. Unlike the ledger it
// is append-only: every liquidation event lands as a new row, including
// last-write-wins overwrites of the same vault key.
//
// Schema:
//
//	CREATE TABLE liquidation_events (
//	    token_type        LowCardinality(String),
//	    owner_address     String,
//	    liquidator        String,
//	    debt_repaid       Float64,
//	    collateral_seized Float64,
//	    bonus             Float64,
//	    owner_refund      Float64,
//	    recorded_at       DateTime64(3),
//	    tx_hash           String
//	) ENGINE = MergeTree ORDER BY (token_type, recorded_at);
type Archive struct {
	conn driver.Conn
}

// NewArchive creates a new ClickHouse liquidation archive
func NewArchive(conn driver.Conn) *Archive {
	return &Archive{conn: conn}
}

type eventRow struct {
	TokenType        string    `ch:"token_type"`
	Owner            string    `ch:"owner_address"`
	Liquidator       string    `ch:"liquidator"`
	DebtRepaid       float64   `ch:"debt_repaid"`
	CollateralSeized float64   `ch:"collateral_seized"`
	Bonus            float64   `ch:"bonus"`
	OwnerRefund      float64   `ch:"owner_refund"`
	RecordedAt       time.Time `ch:"recorded_at"`
	TxHash           string    `ch:"tx_hash"`
}

// Insert appends a liquidation event
func (a *Archive) Insert(ctx context.Context, rec *liquidation.Record) error {
	if rec == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil liquidation record")
	}

	query := `
		INSERT INTO liquidation_events (
			token_type, owner_address, liquidator,
			debt_repaid, collateral_seized, bonus, owner_refund,
			recorded_at, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	err := a.conn.Exec(ctx, query,
		string(rec.TokenType), rec.Owner, rec.Liquidator,
		rec.DebtRepaid.InexactFloat64(), rec.CollateralSeized.InexactFloat64(),
		rec.Bonus.InexactFloat64(), rec.OwnerRefund.InexactFloat64(),
		rec.Timestamp, rec.TxHash,
	)
	return errors.Wrap(err, "failed to archive liquidation event")
}

// Recent returns the most recent liquidation events
func (a *Archive) Recent(ctx context.Context, limit int) ([]*liquidation.Record, error) {
	var rows []eventRow

	query := `
		SELECT token_type, owner_address, liquidator,
		       debt_repaid, collateral_seized, bonus, owner_refund,
		       recorded_at, tx_hash
		FROM liquidation_events
		ORDER BY recorded_at DESC
		LIMIT $1`

	if err := a.conn.Select(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrap(err, "failed to query liquidation events")
	}

	out := make([]*liquidation.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, &liquidation.Record{
			TokenType:        vault.TokenType(row.TokenType),
			Owner:            row.Owner,
			Liquidator:       row.Liquidator,
			DebtRepaid:       decimalFromFloat(row.DebtRepaid),
			CollateralSeized: decimalFromFloat(row.CollateralSeized),
			Bonus:            decimalFromFloat(row.Bonus),
			OwnerRefund:      decimalFromFloat(row.OwnerRefund),
			Timestamp:        row.RecordedAt,
			TxHash:           row.TxHash,
		})
	}
	return out, nil
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
