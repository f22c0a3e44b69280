// Package transfer moves value: peer transfers, currency swaps and
// withdrawals. Every operation runs one ordered check pipeline and then
// mutates state inside a single unit of work.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tokenledger/internal/ledger/ports"
	"tokenledger/internal/platform/config"
	"tokenledger/internal/platform/metrics"
	"tokenledger/internal/txid"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

const tracerName = "tokenledger/internal/transfer"

// RateSource reads the exchange rate for an oracle reference.
type RateSource interface {
	Rate(ctx context.Context, ref string) (*uint256.Int, error)
}

type Engine struct {
	uow     ports.UnitOfWork
	txids   *txid.Generator
	rates   RateSource
	limits  config.Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	guard   *reentryGuard
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func New(uow ports.UnitOfWork, txids *txid.Generator, rates RateSource, limits config.Ledger, opts ...Option) (*Engine, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work is required")
	}
	if txids == nil {
		return nil, fmt.Errorf("transaction id generator is required")
	}
	if rates == nil {
		return nil, fmt.Errorf("rate source is required")
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger limits: %w", err)
	}
	if limits.WithdrawalFee == nil {
		limits.WithdrawalFee = new(uint256.Int)
	}

	e := &Engine{
		uow:    uow,
		txids:  txids,
		rates:  rates,
		limits: limits,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		guard:  newReentryGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// execute wraps one mutating operation: span, re-entry guard, metrics and
// the rejection log line.
func (e *Engine) execute(ctx context.Context, operation string, account id.AccountID, fn func(ctx context.Context) error) error {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "ledger."+operation, trace.WithAttributes(
		attribute.String("ledger.operation", operation),
		attribute.String("ledger.account", account.String()),
	))
	defer span.End()

	err := e.guard.run(account, func() error { return fn(ctx) })

	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		ports.LogRejection(ctx, e.logger, operation, account, err)
	}
	span.SetAttributes(attribute.String("ledger.outcome", outcome))
	e.metrics.ObserveOperation(operation, outcome, started)
	return err
}

// reentryGuard rejects a second operation for an account while its first is
// still in flight.
type reentryGuard struct {
	mu       sync.Mutex
	inflight map[id.AccountID]struct{}
}

func newReentryGuard() *reentryGuard {
	return &reentryGuard{inflight: make(map[id.AccountID]struct{})}
}

func (g *reentryGuard) run(account id.AccountID, fn func() error) error {
	g.mu.Lock()
	if _, busy := g.inflight[account]; busy {
		g.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "another operation is in progress for this account")
	}
	g.inflight[account] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inflight, account)
		g.mu.Unlock()
	}()
	return fn()
}
