// Package quota tracks gross transfer volume per account per UTC day.
package quota

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

type Tracker struct {
	store ports.QuotaStore
	max   *uint256.Int
}

func New(store ports.QuotaStore, maxDaily *uint256.Int) *Tracker {
	return &Tracker{store: store, max: maxDaily}
}

// CheckAndReserve counts amount against today's window. A window from an
// earlier day is reset before the amount is added.
func (t *Tracker) CheckAndReserve(ctx context.Context, account id.AccountID, amount *uint256.Int, now time.Time) error {
	day := models.DayIndex(now)
	current, err := t.store.Get(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read daily quota")
	}

	used, overflow := new(uint256.Int).AddOverflow(current.UsedOn(day), amount)
	if overflow || used.Gt(t.max) {
		return dErrors.New(dErrors.CodeQuotaExceeded, "daily transfer limit exceeded")
	}

	err = t.store.Put(ctx, &models.DailyQuota{
		Account:        account,
		UsedAmount:     used,
		WindowStartDay: day,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write daily quota")
	}
	return nil
}

// Remaining is the volume the account may still transfer today.
func (t *Tracker) Remaining(ctx context.Context, account id.AccountID, now time.Time) (*uint256.Int, error) {
	current, err := t.store.Get(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read daily quota")
	}
	used := current.UsedOn(models.DayIndex(now))
	if used.Gt(t.max) {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(t.max, used), nil
}
