package history

import (
	"context"
	"sort"
	"strings"

	"levitas/internal/domain/liquidation"
	"levitas/pkg/errors"
	"levitas/pkg/logger"
)

// Service reconciles per-address liquidation history against the ledger.
// The history store is a display cache only; the ledger wins on conflict and
// client-originated entries are never trusted without reconciliation.
type Service struct {
	ledger liquidation.Ledger
	store  liquidation.HistoryStore
	log    *logger.Logger
}

// NewService creates a new history service
func NewService(ledger liquidation.Ledger, store liquidation.HistoryStore) *Service {
	return &Service{
		ledger: ledger,
		store:  store,
		log:    logger.Get().With("component", "history"),
	}
}

// Sync rebuilds an address's history from the ledger, merges it with any
// stored entries, deduplicates, persists the result and returns it sorted
// newest first. Safe to call repeatedly: re-syncing with no new ledger
// activity never grows the stored set.
func (s *Service) Sync(ctx context.Context, address string) ([]liquidation.HistoryEntry, error) {
	records, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ledger records")
	}

	addr := strings.ToLower(address)
	fresh := make([]liquidation.HistoryEntry, 0)
	for _, rec := range records {
		if strings.ToLower(rec.Liquidator) == addr {
			fresh = append(fresh, liquidatorView(rec))
		}
		if strings.ToLower(rec.Owner) == addr {
			fresh = append(fresh, ownerView(rec))
		}
	}

	stored, err := s.store.Load(ctx, address)
	if err != nil {
		// A broken cache must not hide ledger-derived history
		s.log.Warnw("Failed to load stored history, rebuilding from ledger", "address", address, "error", err)
		stored = nil
	}

	merged := merge(stored, fresh)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	if err := s.store.Save(ctx, address, merged); err != nil {
		return nil, errors.Wrapf(err, "failed to persist history for %s", address)
	}
	return merged, nil
}

// Reset clears an address's stored history
func (s *Service) Reset(ctx context.Context, address string) error {
	return s.store.Clear(ctx, address)
}

// merge combines stored and fresh entries, deduplicating on
// (timestamp, liquidator, isLiquidator). Ledger-derived entries win over
// stored ones with the same key.
func merge(stored, fresh []liquidation.HistoryEntry) []liquidation.HistoryEntry {
	seen := make(map[string]liquidation.HistoryEntry, len(stored)+len(fresh))
	order := make([]string, 0, len(stored)+len(fresh))

	for _, e := range stored {
		key := e.DedupKey()
		if _, ok := seen[key]; !ok {
			order = append(order, key)
		}
		seen[key] = e
	}
	for _, e := range fresh {
		key := e.DedupKey()
		if _, ok := seen[key]; !ok {
			order = append(order, key)
		}
		// Ledger wins on conflict
		seen[key] = e
	}

	out := make([]liquidation.HistoryEntry, 0, len(order))
	for _, key := range order {
		out = append(out, seen[key])
	}
	return out
}

// liquidatorView builds the liquidator's perspective of a ledger record
func liquidatorView(rec *liquidation.Record) liquidation.HistoryEntry {
	return liquidation.HistoryEntry{
		IsLiquidator:     true,
		Vault:            rec.TokenType,
		Owner:            rec.Owner,
		Liquidator:       rec.Liquidator,
		DebtRepaid:       rec.DebtRepaid,
		Bonus:            rec.Bonus,
		CollateralSeized: rec.CollateralSeized,
		TxHash:           rec.TxHash,
		Timestamp:        rec.Timestamp,
	}
}

// ownerView builds the vault owner's perspective of a ledger record
func ownerView(rec *liquidation.Record) liquidation.HistoryEntry {
	return liquidation.HistoryEntry{
		IsLiquidator:       false,
		Vault:              rec.TokenType,
		Owner:              rec.Owner,
		Liquidator:         rec.Liquidator,
		DebtRepaid:         rec.DebtRepaid,
		CollateralLost:     rec.CollateralSeized,
		CollateralReturned: rec.OwnerRefund,
		TxHash:             rec.TxHash,
		Timestamp:          rec.Timestamp,
	}
}
