// Package registry registers ledger participants and answers profile
// queries. Accounts are never deleted.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	"tokenledger/internal/platform/metrics"
	"tokenledger/internal/system"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/platform/sentinel"
	"tokenledger/pkg/requestcontext"
)

type Service struct {
	uow     ports.UnitOfWork
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(uow ports.UnitOfWork, opts ...Option) (*Service, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work is required")
	}
	s := &Service{uow: uow, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterRequest carries the new account's attributes.
type RegisterRequest struct {
	Account     id.AccountID
	Username    string
	ProfileType int
}

// Register creates an account on behalf of the owner.
func (s *Service) Register(ctx context.Context, admin id.AccountID, req RegisterRequest) (*models.Account, error) {
	started := time.Now()
	now := requestcontext.Now(ctx)

	var (
		account *models.Account
		event   audit.Event
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
		state, err := system.LoadState(ctx, st)
		if err != nil {
			return err
		}
		if err := system.RequireActive(state); err != nil {
			return err
		}
		if err := system.RequireOwner(state, admin); err != nil {
			return err
		}
		if req.Account.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "account id must be a non-zero address")
		}
		if err := validateUsername(req.Username); err != nil {
			return err
		}

		_, err = st.Accounts.Get(ctx, req.Account)
		switch {
		case err == nil:
			return dErrors.New(dErrors.CodeAlreadyRegistered, "account is already registered")
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read account")
		}
		taken, err := st.Accounts.UsernameTaken(ctx, req.Username)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
		}
		if taken {
			return dErrors.New(dErrors.CodeUsernameTaken, "username is already taken")
		}

		account = &models.Account{
			ID:           req.Account,
			Username:     req.Username,
			ProfileType:  req.ProfileType,
			Registered:   true,
			Active:       true,
			RegisteredAt: now,
		}
		if err := st.Accounts.Create(ctx, account); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeUsernameTaken, "username is already taken")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		}

		state.UserCount++
		state.UpdatedAt = now
		if err := st.System.Put(ctx, state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user count")
		}

		event = audit.Event{
			Action:    audit.ActionAccountRegistered,
			AccountID: req.Account.String(),
			ActorID:   admin.String(),
			Detail:    req.Username,
			Timestamp: now,
			RequestID: requestcontext.RequestID(ctx),
		}
		return st.Events.Append(ctx, event)
	})
	if err != nil {
		s.metrics.ObserveOperation("register", string(dErrors.CodeOf(err)), started)
		ports.LogRejection(ctx, s.logger, "register", req.Account, err)
		return nil, err
	}
	s.metrics.ObserveOperation("register", "ok", started)
	s.metrics.IncrementAccountsCreated()
	ports.LogAudit(ctx, s.logger, event)
	return account, nil
}

// Profile returns a registered account.
func (s *Service) Profile(ctx context.Context, account id.AccountID) (*models.Account, error) {
	var out *models.Account
	err := s.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		acct, err := st.Accounts.Get(ctx, account)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read account")
		}
		out = acct
		return nil
	})
	return out, err
}

// IsUsernameAvailable reports whether username is valid and unclaimed.
func (s *Service) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	if validateUsername(username) != nil {
		return false, nil
	}
	var taken bool
	err := s.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		var err error
		taken, err = st.Accounts.UsernameTaken(ctx, username)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
		}
		return nil
	})
	return !taken, err
}

func (s *Service) UserCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.uow.View(ctx, func(ctx context.Context, st ports.Stores) error {
		state, err := system.LoadState(ctx, st)
		if err != nil {
			return err
		}
		count = state.UserCount
		return nil
	})
	return count, err
}

// validateUsername enforces 1..MaxUsernameLength bytes.
func validateUsername(username string) error {
	if len(username) == 0 || len(username) > models.MaxUsernameLength {
		return dErrors.New(dErrors.CodeInvalidUsername,
			fmt.Sprintf("username must be 1 to %d bytes", models.MaxUsernameLength))
	}
	return nil
}
