package postgres

import (
	"context"
	"database/sql"
)

// DBTX abstracts sqlx.DB and sqlx.Tx so repositories work inside and outside
// transactions
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}
