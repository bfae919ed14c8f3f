package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"levitas/internal/domain/liquidation"
	"levitas/pkg/errors"
)

// Compile-time check
var _ liquidation.TransferLedger = (*TransferLedger)(nil)

// TransferLedger records mock USDC transfers in memory
type TransferLedger struct {
	mu        sync.RWMutex
	transfers []liquidation.Transfer
}

// NewTransferLedger creates an empty mock transfer ledger
func NewTransferLedger() *TransferLedger {
	return &TransferLedger{}
}

// Record appends a transfer
func (t *TransferLedger) Record(ctx context.Context, tr *liquidation.Transfer) error {
	if tr == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil transfer")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.transfers = append(t.transfers, *tr)
	return nil
}

// NetFor returns inbound minus outbound transfer volume for an address
func (t *TransferLedger) NetFor(ctx context.Context, address string) (decimal.Decimal, error) {
	addr := strings.ToLower(address)

	t.mu.RLock()
	defer t.mu.RUnlock()

	net := decimal.Zero
	for _, tr := range t.transfers {
		if strings.ToLower(tr.To) == addr {
			net = net.Add(tr.Amount)
		}
		if strings.ToLower(tr.From) == addr {
			net = net.Sub(tr.Amount)
		}
	}
	return net, nil
}

// ClearAll removes all transfers
func (t *TransferLedger) ClearAll(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transfers = nil
	return nil
}
