// Package ratelimit enforces the per-account cooldown between successful
// mutating operations.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"tokenledger/internal/ledger/ports"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

// DefaultCooldown is the minimum spacing between two successful mutations.
const DefaultCooldown = 60 * time.Second

type Limiter struct {
	store    ports.CooldownStore
	cooldown time.Duration
}

func New(store ports.CooldownStore, cooldown time.Duration) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{store: store, cooldown: cooldown}
}

// Check rejects when now is earlier than the last stamp plus the cooldown.
func (l *Limiter) Check(ctx context.Context, account id.AccountID, now time.Time) error {
	wait, err := l.RetryAfter(ctx, account, now)
	if err != nil {
		return err
	}
	if wait > 0 {
		return dErrors.New(dErrors.CodeRateLimited,
			fmt.Sprintf("cooldown active, retry in %ds", int64(math.Ceil(wait.Seconds()))))
	}
	return nil
}

// RetryAfter is how long the account must still wait; zero when it may act.
func (l *Limiter) RetryAfter(ctx context.Context, account id.AccountID, now time.Time) (time.Duration, error) {
	last, ok, err := l.store.LastMutation(ctx, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read cooldown")
	}
	if !ok {
		return 0, nil
	}
	if wait := last.Add(l.cooldown).Sub(now); wait > 0 {
		return wait, nil
	}
	return 0, nil
}

// Stamp records a successful mutation. Call it as the last write of the unit.
func (l *Limiter) Stamp(ctx context.Context, account id.AccountID, now time.Time) error {
	if err := l.store.Stamp(ctx, account, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to stamp cooldown")
	}
	return nil
}
