// Package memory is the in-process ledger backend. Units of work are applied
// one at a time under a single writer; each write is journaled so a failed
// unit is undone in reverse order.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
)

var errReadOnly = errors.New("write attempted in a read-only view")

// Ledger holds all ledger state in maps and implements ports.UnitOfWork.
type Ledger struct {
	writer chan struct{}
	mu     sync.RWMutex

	accounts  map[id.AccountID]*models.Account
	usernames map[string]id.AccountID
	balances  map[id.AccountID]*uint256.Int
	supply    *uint256.Int
	quotas    map[id.AccountID]*models.DailyQuota
	cooldowns map[id.AccountID]time.Time
	processed map[id.TxID]models.ProcessedTx
	system    *models.SystemState

	publisher ports.AuditPublisher
	logger    *slog.Logger
}

type Option func(*Ledger)

// WithPublisher forwards committed events to publisher.
func WithPublisher(publisher ports.AuditPublisher) Option {
	return func(l *Ledger) {
		l.publisher = publisher
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		writer:    make(chan struct{}, 1),
		accounts:  make(map[id.AccountID]*models.Account),
		usernames: make(map[string]id.AccountID),
		balances:  make(map[id.AccountID]*uint256.Int),
		supply:    new(uint256.Int),
		quotas:    make(map[id.AccountID]*models.DailyQuota),
		cooldowns: make(map[id.AccountID]time.Time),
		processed: make(map[id.TxID]models.ProcessedTx),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunInTx applies fn under the single writer. Committed events are forwarded
// before the next unit may start, so publish order matches commit order.
func (l *Ledger) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	select {
	case l.writer <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "ledger is busy")
	}
	defer func() { <-l.writer }()

	events, err := l.apply(ctx, fn)
	if err != nil {
		return err
	}
	l.publish(ctx, events)
	return nil
}

func (l *Ledger) apply(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) ([]audit.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := &unit{l: l}
	defer func() {
		if r := recover(); r != nil {
			u.rollback()
			panic(r)
		}
	}()
	if err := fn(ctx, u.stores()); err != nil {
		u.rollback()
		return nil, err
	}
	return u.events, nil
}

// View runs fn under the read lock; any write fails.
func (l *Ledger) View(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u := &unit{l: l, readOnly: true}
	return fn(ctx, u.stores())
}

func (l *Ledger) publish(ctx context.Context, events []audit.Event) {
	if l.publisher == nil {
		return
	}
	for _, event := range events {
		if err := l.publisher.Emit(ctx, event); err != nil && l.logger != nil {
			l.logger.WarnContext(ctx, "failed to publish ledger event",
				"event", string(event.Action),
				"tx_id", event.TxID,
				"error", err,
			)
		}
	}
}

// unit is one journaled unit of work.
type unit struct {
	l        *Ledger
	readOnly bool
	undo     []func()
	events   []audit.Event
}

func (u *unit) stores() ports.Stores {
	return ports.Stores{
		Accounts:  accountStore{u},
		Balances:  balanceStore{u},
		Quotas:    quotaStore{u},
		Cooldowns: cooldownStore{u},
		TxIDs:     txIDStore{u},
		System:    systemStore{u},
		Events:    eventSink{u},
	}
}

func (u *unit) write(undo func()) error {
	if u.readOnly {
		return errReadOnly
	}
	u.undo = append(u.undo, undo)
	return nil
}

func (u *unit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
	u.events = nil
}
