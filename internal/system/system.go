// Package system owns the single SystemState record: the pause switch, the
// owner capability and the oracle reference. Admin operations here work
// whether or not the ledger is active.
package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"tokenledger/internal/balance"
	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	"tokenledger/internal/platform/metrics"
	"tokenledger/internal/txid"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/platform/sentinel"
	"tokenledger/pkg/requestcontext"
)

// RefValidator checks oracle references before they are stored.
type RefValidator interface {
	ValidateRef(ref string) error
}

// Status is the public view of the system.
type Status struct {
	State       models.SystemState
	TotalSupply *uint256.Int
}

type Controller struct {
	uow     ports.UnitOfWork
	txids   *txid.Generator
	refs    RefValidator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func New(uow ports.UnitOfWork, txids *txid.Generator, refs RefValidator, opts ...Option) (*Controller, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work is required")
	}
	if txids == nil {
		return nil, fmt.Errorf("transaction id generator is required")
	}
	if refs == nil {
		return nil, fmt.Errorf("oracle reference validator is required")
	}
	c := &Controller{
		uow:    uow,
		txids:  txids,
		refs:   refs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Bootstrap creates the active SystemState on first start. An existing state
// is kept; a different owner is refused.
func (c *Controller) Bootstrap(ctx context.Context, owner id.AccountID, oracleRef string) (*models.SystemState, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner account is required")
	}
	if err := c.refs.ValidateRef(oracleRef); err != nil {
		return nil, err
	}

	var state *models.SystemState
	err := c.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
		existing, err := st.System.Get(ctx)
		if err == nil {
			if existing.Owner != owner {
				return dErrors.New(dErrors.CodeInvalidState, "ledger is already owned by another account")
			}
			state = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read system state")
		}
		state = &models.SystemState{
			Active:    true,
			Owner:     owner,
			OracleRef: oracleRef,
			UpdatedAt: requestcontext.Now(ctx),
		}
		if err := st.System.Put(ctx, state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write system state")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.SetSystemActive(state.Active)
	c.logger.InfoContext(ctx, "ledger bootstrapped",
		"owner", state.Owner,
		"active", state.Active,
		"oracle_ref", state.OracleRef,
	)
	return state, nil
}

func (c *Controller) Pause(ctx context.Context, admin id.AccountID) error {
	return c.setActive(ctx, admin, false)
}

func (c *Controller) Unpause(ctx context.Context, admin id.AccountID) error {
	return c.setActive(ctx, admin, true)
}

func (c *Controller) setActive(ctx context.Context, admin id.AccountID, active bool) error {
	operation, action := "unpause", audit.ActionSystemUnpaused
	if !active {
		operation, action = "pause", audit.ActionSystemPaused
	}
	started := time.Now()
	now := requestcontext.Now(ctx)

	var event audit.Event
	err := c.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
		state, err := LoadState(ctx, st)
		if err != nil {
			return err
		}
		if err := RequireOwner(state, admin); err != nil {
			return err
		}
		if state.Active == active {
			return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("system is already %s", stateName(active)))
		}
		state.Active = active
		state.UpdatedAt = now
		if err := st.System.Put(ctx, state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write system state")
		}
		event = audit.Event{
			Action:    action,
			ActorID:   admin.String(),
			Timestamp: now,
			RequestID: requestcontext.RequestID(ctx),
		}
		return st.Events.Append(ctx, event)
	})
	c.observe(ctx, operation, admin, started, err)
	if err != nil {
		return err
	}
	c.metrics.SetSystemActive(active)
	ports.LogAudit(ctx, c.logger, event)
	return nil
}

// SetOracle replaces the oracle reference after validating it.
func (c *Controller) SetOracle(ctx context.Context, admin id.AccountID, ref string) error {
	started := time.Now()
	now := requestcontext.Now(ctx)

	var event audit.Event
	err := c.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
		state, err := LoadState(ctx, st)
		if err != nil {
			return err
		}
		if err := RequireOwner(state, admin); err != nil {
			return err
		}
		if err := c.refs.ValidateRef(ref); err != nil {
			return err
		}
		state.OracleRef = ref
		state.UpdatedAt = now
		if err := st.System.Put(ctx, state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write system state")
		}
		event = audit.Event{
			Action:    audit.ActionOracleUpdated,
			ActorID:   admin.String(),
			Detail:    ref,
			Timestamp: now,
			RequestID: requestcontext.RequestID(ctx),
		}
		return st.Events.Append(ctx, event)
	})
	c.observe(ctx, "set_oracle", admin, started, err)
	if err != nil {
		return err
	}
	ports.LogAudit(ctx, c.logger, event)
	return nil
}

// CreditForOps mints amount into a registered account. It is the only way
// tokens enter circulation outside swaps.
func (c *Controller) CreditForOps(ctx context.Context, admin, account id.AccountID, amount *uint256.Int) (*models.CreditResult, error) {
	started := time.Now()
	now := requestcontext.Now(ctx)

	var (
		result *models.CreditResult
		event  audit.Event
	)
	err := c.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
		state, err := LoadState(ctx, st)
		if err != nil {
			return err
		}
		if err := RequireOwner(state, admin); err != nil {
			return err
		}
		if amount == nil || amount.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "credit amount must be positive")
		}
		if _, err := RequireRegistered(ctx, st, account); err != nil {
			return err
		}
		bal, err := balance.New(st.Balances).Credit(ctx, account, amount)
		if err != nil {
			return err
		}
		txID, err := c.txids.Issue(ctx, st.TxIDs, account, models.TxKindOpsCredit, now)
		if err != nil {
			return err
		}
		result = &models.CreditResult{TxID: txID, Account: account, Amount: amount, Balance: bal}
		event = audit.Event{
			Action:    audit.ActionOpsCredit,
			AccountID: account.String(),
			ActorID:   admin.String(),
			TxID:      txID.String(),
			Amount:    amount.Dec(),
			Timestamp: now,
			RequestID: requestcontext.RequestID(ctx),
		}
		return st.Events.Append(ctx, event)
	})
	c.observe(ctx, "credit_for_ops", admin, started, err)
	if err != nil {
		return nil, err
	}
	ports.LogAudit(ctx, c.logger, event)
	return result, nil
}

// State returns the current SystemState.
func (c *Controller) State(ctx context.Context) (*models.SystemState, error) {
	var state *models.SystemState
	err := c.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		var err error
		state, err = LoadState(ctx, st)
		return err
	})
	return state, err
}

// Status returns the state together with the circulating total.
func (c *Controller) Status(ctx context.Context) (*Status, error) {
	var status *Status
	err := c.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		state, err := LoadState(ctx, st)
		if err != nil {
			return err
		}
		total, err := balance.New(st.Balances).TotalSupply(ctx)
		if err != nil {
			return err
		}
		status = &Status{State: *state, TotalSupply: total}
		return nil
	})
	return status, err
}

func (c *Controller) observe(ctx context.Context, operation string, admin id.AccountID, started time.Time, err error) {
	if err != nil {
		c.metrics.ObserveOperation(operation, string(dErrors.CodeOf(err)), started)
		ports.LogRejection(ctx, c.logger, operation, admin, err)
		return
	}
	c.metrics.ObserveOperation(operation, "ok", started)
}

func stateName(active bool) string {
	if active {
		return "active"
	}
	return "paused"
}
