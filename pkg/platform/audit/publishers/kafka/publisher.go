// Package kafka publishes outbox entries to a Kafka topic.
//
// Records are keyed by aggregate id (the acting account) so every event for
// one account lands on one partition in ledger order.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "tokenledger/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	timeout  time.Duration
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithTimeout bounds a single batch publish.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

func New(producer Producer, topic string, opts ...Option) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	p := &Publisher{
		producer: producer,
		topic:    topic,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish produces one record per entry and waits for all acks.
// Any failed record fails the batch; the relay retries the whole batch and
// consumers dedupe on the event id in the payload.
func (p *Publisher) Publish(ctx context.Context, entries []audit.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	records := make([]*kgo.Record, len(entries))
	for i, entry := range entries {
		records[i] = &kgo.Record{
			Topic: p.topic,
			Key:   []byte(entry.AggregateID),
			Value: entry.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(entry.EventType)},
				{Key: "outbox_id", Value: []byte(entry.ID.String())},
			},
			Timestamp: entry.CreatedAt,
		}
	}

	if err := p.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to publish outbox batch",
				"topic", p.topic,
				"batch_size", len(entries),
				"error", err,
			)
		}
		return fmt.Errorf("produce outbox batch: %w", err)
	}
	return nil
}
