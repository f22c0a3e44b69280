// Package publisher forwards committed ledger events to an audit store.
//
// In synchronous mode Emit writes through to the store. With WithAsyncBuffer
// events are queued and persisted by a background goroutine; Close drains the
// queue before returning.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "tokenledger/pkg/platform/audit"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	bufferSize int
	queue      chan audit.Event
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous persistence with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.queue = make(chan audit.Event, p.bufferSize)
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit persists the event, or queues it in async mode. A full queue drops
// the event and logs it; ledger state is already committed by then.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event.Normalize(time.Now())
	if p.queue == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"tx_id", event.TxID,
			)
		}
	}
	return nil
}

// List returns the events involving accountID, newest first.
func (p *Publisher) List(ctx context.Context, accountID string, limit int) ([]audit.Event, error) {
	return p.store.ListByAccount(ctx, accountID, limit)
}

// Close stops accepting events and waits for the queue to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"tx_id", event.TxID,
				"error", err,
			)
		}
	}
}
