package memory

import (
	"context"
	"strings"
	"sync"

	"levitas/internal/domain/liquidation"
)

// Compile-time check
var _ liquidation.HistoryStore = (*HistoryStore)(nil)

// HistoryStore keeps per-address liquidation history in memory. Used as the
// fallback when Redis is not configured, and in tests.
type HistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]liquidation.HistoryEntry
}

// NewHistoryStore creates an empty in-memory history store
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		entries: make(map[string][]liquidation.HistoryEntry),
	}
}

// Load returns the stored history for an address
func (h *HistoryStore) Load(ctx context.Context, address string) ([]liquidation.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stored := h.entries[strings.ToLower(address)]
	out := make([]liquidation.HistoryEntry, len(stored))
	copy(out, stored)
	return out, nil
}

// Save replaces the stored history for an address
func (h *HistoryStore) Save(ctx context.Context, address string, entries []liquidation.HistoryEntry) error {
	cp := make([]liquidation.HistoryEntry, len(entries))
	copy(cp, entries)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[strings.ToLower(address)] = cp
	return nil
}

// Clear removes the stored history for an address
func (h *HistoryStore) Clear(ctx context.Context, address string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.entries, strings.ToLower(address))
	return nil
}
