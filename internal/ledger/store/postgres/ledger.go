// Package postgres is the durable ledger backend. Each unit of work is one
// SQL transaction that first takes a transaction-scoped advisory lock, so
// units never interleave across processes sharing the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tokenledger/internal/ledger/ports"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	txcontext "tokenledger/pkg/platform/tx"
)

const (
	defaultTxTimeout = 5 * time.Second

	// ledgerLockKey is the pg_advisory_xact_lock key serializing ledger writers.
	ledgerLockKey int64 = 0x6c6564676572
)

var errReadOnly = errors.New("write attempted in a read-only view")

// Ledger implements ports.UnitOfWork on PostgreSQL. Events go to an
// audit.Store that joins the same transaction through the context.
type Ledger struct {
	db      *sql.DB
	events  audit.Store
	timeout time.Duration
}

type Option func(*Ledger)

// WithTimeout bounds units of work whose context carries no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Ledger) {
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

func New(db *sql.DB, events audit.Store, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if events == nil {
		return nil, errors.New("event store is required")
	}
	l := &Ledger{db: db, events: events, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Ledger) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTxErr(ctx, err, "begin ledger transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return wrapTxErr(ctx, err, "acquire ledger lock")
	}

	txCtx := txcontext.WithTx(ctx, tx)
	if err := fn(txCtx, l.stores(false)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr(ctx, err, "commit ledger transaction")
	}
	return nil
}

// View runs fn in a read-only repeatable-read transaction.
func (l *Ledger) View(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return wrapTxErr(ctx, err, "begin ledger view")
	}
	defer func() {
		_ = tx.Rollback()
	}()
	return fn(txcontext.WithTx(ctx, tx), l.stores(true))
}

func (l *Ledger) stores(readOnly bool) ports.Stores {
	b := base{db: l.db, lock: !readOnly}
	var events ports.EventSink = l.events
	if readOnly {
		events = readOnlySink{}
	}
	return ports.Stores{
		Accounts:  accountStore{b},
		Balances:  balanceStore{b},
		Quotas:    quotaStore{b},
		Cooldowns: cooldownStore{b},
		TxIDs:     txIDStore{b},
		System:    systemStore{b},
		Events:    events,
	}
}

func wrapTxErr(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

type readOnlySink struct{}

func (readOnlySink) Append(context.Context, audit.Event) error {
	return errReadOnly
}
