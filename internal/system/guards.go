package system

import (
	"context"
	"errors"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/sentinel"
)

// LoadState reads the SystemState inside a unit of work.
func LoadState(ctx context.Context, st ports.Stores) (*models.SystemState, error) {
	state, err := st.System.Get(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "ledger is not bootstrapped")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read system state")
	}
	return state, nil
}

func RequireActive(state *models.SystemState) error {
	if !state.Active {
		return dErrors.New(dErrors.CodeSystemPaused, "system is paused")
	}
	return nil
}

func RequireOwner(state *models.SystemState, caller id.AccountID) error {
	if caller.IsNil() || caller != state.Owner {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the owner")
	}
	return nil
}

// RequireRegistered loads a registered account or fails with CodeNotRegistered.
func RequireRegistered(ctx context.Context, st ports.Stores, account id.AccountID) (*models.Account, error) {
	acct, err := st.Accounts.Get(ctx, account)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotRegistered, "account is not registered")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read account")
	}
	if !acct.Registered {
		return nil, dErrors.New(dErrors.CodeNotRegistered, "account is not registered")
	}
	return acct, nil
}
