package memory

import (
	"context"
	"sort"
	"sync"

	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/pkg/errors"
)

// Compile-time check
var _ liquidation.Ledger = (*Ledger)(nil)

// Ledger implements liquidation.Ledger with a mutex-guarded in-memory map.
// This replaces the ambient module-level map of the original design with an
// injected store owned by the bootstrap container, so it can be swapped for
// the postgres backend and tested in isolation.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*liquidation.Record
}

// NewLedger creates an empty in-memory liquidation ledger
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[string]*liquidation.Record),
	}
}

// Record upserts a liquidation record, last-write-wins. Overwriting an
// existing key is not an error: duplicate writes are the documented conflict
// policy, not a failure.
func (l *Ledger) Record(ctx context.Context, rec *liquidation.Record) error {
	if rec == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil liquidation record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *rec
	l.records[rec.Key()] = &cp
	return nil
}

// Get returns the record for a vault, or ErrNotFound
func (l *Ledger) Get(ctx context.Context, token vault.TokenType, owner string) (*liquidation.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[vault.Key(token, owner)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no liquidation record for %s", vault.Key(token, owner))
	}
	cp := *rec
	return &cp, nil
}

// IsLiquidated checks whether a vault has a liquidation record
func (l *Ledger) IsLiquidated(ctx context.Context, token vault.TokenType, owner string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.records[vault.Key(token, owner)]
	return ok, nil
}

// ListAll returns all records, newest first
func (l *Ledger) ListAll(ctx context.Context) ([]*liquidation.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*liquidation.Record, 0, len(l.records))
	for _, rec := range l.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// ClearAll removes all records. Administrative reset only.
func (l *Ledger) ClearAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]*liquidation.Record)
	return nil
}
