package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"levitas/internal/domain/liquidation"
	"levitas/pkg/errors"
)

// Compile-time check
var _ liquidation.HistoryStore = (*HistoryStore)(nil)

// HistoryStore implements liquidation.HistoryStore on Redis. The key format
// mirrors the browser localStorage contract (`liquidation-history:<address>`)
// so the server-side store is a drop-in authority for the client cache.
type HistoryStore struct {
	client *redis.Client
}

// NewHistoryStore creates a new redis-backed history store
func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

// Load returns the stored history for an address; empty when absent
func (h *HistoryStore) Load(ctx context.Context, address string) ([]liquidation.HistoryEntry, error) {
	key := h.getKey(address)

	data, err := h.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load liquidation history for %s", address)
	}

	var entries []liquidation.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal liquidation history for %s", address)
	}
	return entries, nil
}

// Save replaces the stored history for an address
func (h *HistoryStore) Save(ctx context.Context, address string, entries []liquidation.HistoryEntry) error {
	key := h.getKey(address)

	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal liquidation history for %s", address)
	}

	if err := h.client.Set(ctx, key, data, 0).Err(); err != nil {
		return errors.Wrapf(err, "failed to save liquidation history for %s", address)
	}
	return nil
}

// Clear removes the stored history for an address
func (h *HistoryStore) Clear(ctx context.Context, address string) error {
	if err := h.client.Del(ctx, h.getKey(address)).Err(); err != nil {
		return errors.Wrapf(err, "failed to clear liquidation history for %s", address)
	}
	return nil
}

func (h *HistoryStore) getKey(address string) string {
	return fmt.Sprintf("liquidation-history:%s", strings.ToLower(address))
}
