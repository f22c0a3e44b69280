package transfer

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"tokenledger/internal/balance"
	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	"tokenledger/internal/quota"
	"tokenledger/internal/ratelimit"
	"tokenledger/internal/system"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

// op is the state one operation accumulates while its checks run. Every rule
// reads the same instant.
type op struct {
	now     time.Time
	stores  ports.Stores
	caller  id.AccountID
	state   *models.SystemState
	account *models.Account
	peer    *models.Account
	rate    *uint256.Int
}

// check is one step of the pipeline. The first failing check ends it.
type check func(ctx context.Context, o *op) error

func runChecks(ctx context.Context, o *op, checks ...check) error {
	for _, c := range checks {
		if err := c(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func requireActive(ctx context.Context, o *op) error {
	state, err := system.LoadState(ctx, o.stores)
	if err != nil {
		return err
	}
	o.state = state
	return system.RequireActive(state)
}

func requireRegistered(ctx context.Context, o *op) error {
	acct, err := system.RequireRegistered(ctx, o.stores, o.caller)
	if err != nil {
		return err
	}
	o.account = acct
	return nil
}

func (e *Engine) requireCooldownElapsed(ctx context.Context, o *op) error {
	return ratelimit.New(o.stores.Cooldowns, e.limits.Cooldown).Check(ctx, o.caller, o.now)
}

func requireRecipient(recipient id.AccountID) check {
	return func(ctx context.Context, o *op) error {
		peer, err := system.RequireRegistered(ctx, o.stores, recipient)
		if dErrors.HasCode(err, dErrors.CodeNotRegistered) {
			return dErrors.New(dErrors.CodeNotRegistered, "recipient is not registered")
		}
		if err != nil {
			return err
		}
		if recipient == o.caller {
			return dErrors.New(dErrors.CodeValidation, "cannot transfer to self")
		}
		o.peer = peer
		return nil
	}
}

func requireWithdrawalTarget(target id.AccountID) check {
	return func(_ context.Context, o *op) error {
		if target.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "withdrawal target must be a non-zero address")
		}
		if target == o.caller {
			return dErrors.New(dErrors.CodeValidation, "cannot withdraw to own account")
		}
		return nil
	}
}

func requirePositive(amount *uint256.Int) check {
	return func(context.Context, *op) error {
		if amount == nil || amount.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "amount must be positive")
		}
		return nil
	}
}

func (e *Engine) requireWithinBounds(amount *uint256.Int) check {
	return func(context.Context, *op) error {
		if amount == nil || amount.Lt(e.limits.MinTransfer) {
			return dErrors.New(dErrors.CodeValidation, "amount is below the minimum transfer")
		}
		if amount.Gt(e.limits.MaxSingleTransfer) {
			return dErrors.New(dErrors.CodeValidation, "amount exceeds the maximum single transfer")
		}
		return nil
	}
}

func requireBalance(amount *uint256.Int) check {
	return func(ctx context.Context, o *op) error {
		bal, err := balance.New(o.stores.Balances).Balance(ctx, o.caller)
		if err != nil {
			return err
		}
		if bal.Lt(amount) {
			return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient balance")
		}
		return nil
	}
}

func (e *Engine) reserveQuota(amount *uint256.Int) check {
	return func(ctx context.Context, o *op) error {
		return quota.New(o.stores.Quotas, e.limits.MaxDailyTransfer).CheckAndReserve(ctx, o.caller, amount, o.now)
	}
}

func (e *Engine) loadRate(ctx context.Context, o *op) error {
	rate, err := e.rates.Rate(ctx, o.state.OracleRef)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidRate, "exchange rate unavailable")
	}
	if rate == nil || rate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidRate, "exchange rate is zero")
	}
	o.rate = rate
	return nil
}

// finish applies the bookkeeping every successful user operation shares:
// counters and activity for the given accounts, then the cooldown stamp as
// the last write.
func (e *Engine) finish(ctx context.Context, o *op, counted ...*models.Account) error {
	for _, acct := range counted {
		acct.RecordTransaction(o.now)
		if err := o.stores.Accounts.Update(ctx, acct); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account activity")
		}
	}
	return ratelimit.New(o.stores.Cooldowns, e.limits.Cooldown).Stamp(ctx, o.caller, o.now)
}
