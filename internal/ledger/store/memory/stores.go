package memory

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"tokenledger/internal/ledger/models"
	id "tokenledger/pkg/domain"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/platform/sentinel"
)

type accountStore struct{ u *unit }

func (s accountStore) Get(_ context.Context, account id.AccountID) (*models.Account, error) {
	a, ok := s.u.l.accounts[account]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return a.Clone(), nil
}

func (s accountStore) Create(_ context.Context, account *models.Account) error {
	l := s.u.l
	if _, ok := l.accounts[account.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := l.usernames[account.Username]; ok {
		return sentinel.ErrConflict
	}
	err := s.u.write(func() {
		delete(l.accounts, account.ID)
		delete(l.usernames, account.Username)
	})
	if err != nil {
		return err
	}
	l.accounts[account.ID] = account.Clone()
	l.usernames[account.Username] = account.ID
	return nil
}

func (s accountStore) Update(_ context.Context, account *models.Account) error {
	l := s.u.l
	prev, ok := l.accounts[account.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := s.u.write(func() { l.accounts[account.ID] = prev }); err != nil {
		return err
	}
	next := account.Clone()
	next.Username = prev.Username
	l.accounts[account.ID] = next
	return nil
}

func (s accountStore) UsernameTaken(_ context.Context, username string) (bool, error) {
	_, ok := s.u.l.usernames[username]
	return ok, nil
}

type balanceStore struct{ u *unit }

func (s balanceStore) Get(_ context.Context, account id.AccountID) (*uint256.Int, error) {
	if b, ok := s.u.l.balances[account]; ok {
		return new(uint256.Int).Set(b), nil
	}
	return new(uint256.Int), nil
}

func (s balanceStore) Set(_ context.Context, account id.AccountID, amount *uint256.Int) error {
	l := s.u.l
	prev, had := l.balances[account]
	err := s.u.write(func() {
		if had {
			l.balances[account] = prev
		} else {
			delete(l.balances, account)
		}
	})
	if err != nil {
		return err
	}
	l.balances[account] = new(uint256.Int).Set(amount)
	return nil
}

func (s balanceStore) TotalSupply(_ context.Context) (*uint256.Int, error) {
	return new(uint256.Int).Set(s.u.l.supply), nil
}

func (s balanceStore) SetTotalSupply(_ context.Context, total *uint256.Int) error {
	l := s.u.l
	prev := l.supply
	if err := s.u.write(func() { l.supply = prev }); err != nil {
		return err
	}
	l.supply = new(uint256.Int).Set(total)
	return nil
}

type quotaStore struct{ u *unit }

func (s quotaStore) Get(_ context.Context, account id.AccountID) (*models.DailyQuota, error) {
	q, ok := s.u.l.quotas[account]
	if !ok {
		return nil, nil
	}
	return &models.DailyQuota{
		Account:        q.Account,
		UsedAmount:     new(uint256.Int).Set(q.UsedAmount),
		WindowStartDay: q.WindowStartDay,
	}, nil
}

func (s quotaStore) Put(_ context.Context, quota *models.DailyQuota) error {
	l := s.u.l
	prev, had := l.quotas[quota.Account]
	err := s.u.write(func() {
		if had {
			l.quotas[quota.Account] = prev
		} else {
			delete(l.quotas, quota.Account)
		}
	})
	if err != nil {
		return err
	}
	l.quotas[quota.Account] = &models.DailyQuota{
		Account:        quota.Account,
		UsedAmount:     new(uint256.Int).Set(quota.UsedAmount),
		WindowStartDay: quota.WindowStartDay,
	}
	return nil
}

type cooldownStore struct{ u *unit }

func (s cooldownStore) LastMutation(_ context.Context, account id.AccountID) (time.Time, bool, error) {
	t, ok := s.u.l.cooldowns[account]
	return t, ok, nil
}

func (s cooldownStore) Stamp(_ context.Context, account id.AccountID, at time.Time) error {
	l := s.u.l
	prev, had := l.cooldowns[account]
	err := s.u.write(func() {
		if had {
			l.cooldowns[account] = prev
		} else {
			delete(l.cooldowns, account)
		}
	})
	if err != nil {
		return err
	}
	l.cooldowns[account] = at
	return nil
}

type txIDStore struct{ u *unit }

func (s txIDStore) Record(_ context.Context, tx models.ProcessedTx) error {
	l := s.u.l
	if _, ok := l.processed[tx.ID]; ok {
		return sentinel.ErrConflict
	}
	if err := s.u.write(func() { delete(l.processed, tx.ID) }); err != nil {
		return err
	}
	l.processed[tx.ID] = tx
	return nil
}

func (s txIDStore) Get(_ context.Context, txID id.TxID) (*models.ProcessedTx, error) {
	tx, ok := s.u.l.processed[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &tx, nil
}

type systemStore struct{ u *unit }

func (s systemStore) Get(_ context.Context) (*models.SystemState, error) {
	if s.u.l.system == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.u.l.system.Clone(), nil
}

func (s systemStore) Put(_ context.Context, state *models.SystemState) error {
	l := s.u.l
	prev := l.system
	if err := s.u.write(func() { l.system = prev }); err != nil {
		return err
	}
	l.system = state.Clone()
	return nil
}

type eventSink struct{ u *unit }

func (s eventSink) Append(_ context.Context, event audit.Event) error {
	if s.u.readOnly {
		return errReadOnly
	}
	event.Normalize(time.Now())
	s.u.events = append(s.u.events, event)
	return nil
}
