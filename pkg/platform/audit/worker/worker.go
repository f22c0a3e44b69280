// Package worker relays committed outbox entries to the event stream.
package worker

//go:generate mockgen -destination=mocks/mocks.go -package=mocks tokenledger/pkg/platform/audit/worker Outbox,Sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "tokenledger/pkg/platform/audit"
)

// Outbox reads and acknowledges pending outbox entries.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Sink publishes a batch of entries; it must be all-or-nothing per call.
type Sink interface {
	Publish(ctx context.Context, entries []audit.OutboxEntry) error
}

// Relay polls the outbox and forwards entries to the sink. Delivery is
// at-least-once: an entry is marked published only after the sink acks it.
type Relay struct {
	outbox    Outbox
	sink      Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		r.interval = d
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		r.batchSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(outbox Outbox, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		sink:      sink,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// Drain publishes batches until the outbox is empty or a step fails.
// Returns the number of entries published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	published := 0
	for {
		entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return published, err
		}
		if len(entries) == 0 {
			return published, nil
		}
		if err := r.sink.Publish(ctx, entries); err != nil {
			return published, err
		}
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
			return published, err
		}
		published += len(entries)
		if len(entries) < r.batchSize {
			return published, nil
		}
	}
}
