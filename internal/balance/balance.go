// Package balance applies credits and debits to account balances and keeps
// the circulating total in step. Callers own multi-account atomicity by
// running every call inside one unit of work.
package balance

import (
	"context"

	"github.com/holiman/uint256"

	"tokenledger/internal/ledger/ports"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

type Ledger struct {
	store ports.BalanceStore
}

func New(store ports.BalanceStore) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Balance(ctx context.Context, account id.AccountID) (*uint256.Int, error) {
	bal, err := l.store.Get(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return bal, nil
}

func (l *Ledger) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	total, err := l.store.TotalSupply(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total supply")
	}
	return total, nil
}

// Credit adds amount to the account and to the circulating total and returns
// the new balance.
func (l *Ledger) Credit(ctx context.Context, account id.AccountID, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "credit amount must be positive")
	}
	bal, err := l.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "balance overflow")
	}
	total, err := l.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	nextTotal, overflow := new(uint256.Int).AddOverflow(total, amount)
	if overflow {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "total supply overflow")
	}
	if err := l.write(ctx, account, next, nextTotal); err != nil {
		return nil, err
	}
	return next, nil
}

// Debit removes amount from the account and from the circulating total and
// returns the new balance. It never lets a balance go negative.
func (l *Ledger) Debit(ctx context.Context, account id.AccountID, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "debit amount must be positive")
	}
	bal, err := l.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	if bal.Lt(amount) {
		return nil, dErrors.New(dErrors.CodeInsufficientBalance, "insufficient balance")
	}
	total, err := l.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	if total.Lt(amount) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "total supply below account balance")
	}
	next := new(uint256.Int).Sub(bal, amount)
	if err := l.write(ctx, account, next, new(uint256.Int).Sub(total, amount)); err != nil {
		return nil, err
	}
	return next, nil
}

func (l *Ledger) write(ctx context.Context, account id.AccountID, bal, total *uint256.Int) error {
	if err := l.store.Set(ctx, account, bal); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write balance")
	}
	if err := l.store.SetTotalSupply(ctx, total); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write total supply")
	}
	return nil
}
