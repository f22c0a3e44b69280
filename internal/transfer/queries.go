package transfer

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"tokenledger/internal/balance"
	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	"tokenledger/internal/quota"
	"tokenledger/internal/system"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/sentinel"
	"tokenledger/pkg/requestcontext"
)

// ExchangeRate returns the rate of the configured oracle.
func (e *Engine) ExchangeRate(ctx context.Context) (*uint256.Int, error) {
	var ref string
	err := e.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		state, err := system.LoadState(ctx, st)
		if err != nil {
			return err
		}
		ref = state.OracleRef
		return nil
	})
	if err != nil {
		return nil, err
	}
	rate, err := e.rates.Rate(ctx, ref)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRate, "exchange rate unavailable")
	}
	if rate == nil || rate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidRate, "exchange rate is zero")
	}
	return rate, nil
}

// RemainingDailyLimit is the gross volume account may still transfer today.
func (e *Engine) RemainingDailyLimit(ctx context.Context, account id.AccountID) (*uint256.Int, error) {
	now := requestcontext.Now(ctx)
	var remaining *uint256.Int
	err := e.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		var err error
		remaining, err = quota.New(st.Quotas, e.limits.MaxDailyTransfer).Remaining(ctx, account, now)
		return err
	})
	return remaining, err
}

func (e *Engine) Balance(ctx context.Context, account id.AccountID) (*uint256.Int, error) {
	var bal *uint256.Int
	err := e.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		var err error
		bal, err = balance.New(st.Balances).Balance(ctx, account)
		return err
	})
	return bal, err
}

// Transaction looks up an id in the processed set.
func (e *Engine) Transaction(ctx context.Context, txID id.TxID) (*models.ProcessedTx, error) {
	var tx *models.ProcessedTx
	err := e.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		rec, err := st.TxIDs.Get(ctx, txID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read transaction")
		}
		tx = rec
		return nil
	})
	return tx, err
}
