package events

import (
	"context"

	"levitas/internal/domain/liquidation"
)

// Publisher emits liquidation domain events to the event feed
type Publisher interface {
	// LiquidationRecorded is emitted after a liquidation lands in the ledger
	LiquidationRecorded(ctx context.Context, rec *liquidation.Record) error

	// RiskAlert is emitted by the scanner when a vault becomes liquidatable
	RiskAlert(ctx context.Context, cand liquidation.Candidate) error

	// Close releases publisher resources
	Close() error
}

// NoopPublisher discards all events. Used when no brokers are configured and
// in tests.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that discards everything
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) LiquidationRecorded(ctx context.Context, rec *liquidation.Record) error {
	return nil
}

func (p *NoopPublisher) RiskAlert(ctx context.Context, cand liquidation.Candidate) error {
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
