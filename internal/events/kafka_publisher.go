package events

import (
	"context"

	"levitas/internal/adapters/kafka"
	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
)

// Compile-time check
var _ Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher emits liquidation events to Kafka as JSON, keyed by vault
// so consumers see per-vault ordering
type KafkaPublisher struct {
	producer *kafka.Producer
}

// NewKafkaPublisher creates a Kafka-backed event publisher
func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// LiquidationRecorded publishes a recorded liquidation to the feed
func (p *KafkaPublisher) LiquidationRecorded(ctx context.Context, rec *liquidation.Record) error {
	return p.producer.Publish(ctx, kafka.TopicLiquidations, rec.Key(), rec)
}

// RiskAlert publishes a newly liquidatable vault to the alert topic
func (p *KafkaPublisher) RiskAlert(ctx context.Context, cand liquidation.Candidate) error {
	return p.producer.Publish(ctx, kafka.TopicRiskAlerts, vault.Key(cand.TokenType, cand.Owner), cand)
}

// Close closes the underlying producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
