package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/lib/pq"

	"tokenledger/internal/ledger/models"
	id "tokenledger/pkg/domain"
	"tokenledger/pkg/platform/sentinel"
	txcontext "tokenledger/pkg/platform/tx"
)

const uniqueViolation = "23505"

// base is shared by every store. lock is set inside write units so value
// rows are read FOR UPDATE.
type base struct {
	db   *sql.DB
	lock bool
}

func (b base) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, b.db)
}

func (b base) forUpdate() string {
	if b.lock {
		return " FOR UPDATE"
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func parseNumeric(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("decode numeric %q: %w", s, err)
	}
	return v, nil
}

type accountStore struct{ base }

func (s accountStore) Get(ctx context.Context, account id.AccountID) (*models.Account, error) {
	var (
		a            models.Account
		lastActivity sql.NullTime
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT id, username, profile_type, active, registered_at, tx_count, last_activity_at
		FROM accounts
		WHERE id = $1`+s.forUpdate(), string(account)).
		Scan(&a.ID, &a.Username, &a.ProfileType, &a.Active, &a.RegisteredAt, &a.TransactionCount, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	a.Registered = true
	if lastActivity.Valid {
		a.LastActivityAt = lastActivity.Time
	}
	return &a, nil
}

func (s accountStore) Create(ctx context.Context, account *models.Account) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO accounts (id, username, profile_type, active, registered_at, tx_count, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(account.ID), account.Username, account.ProfileType, account.Active,
		account.RegisteredAt, account.TransactionCount, nullTime(account.LastActivityAt))
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s accountStore) Update(ctx context.Context, account *models.Account) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE accounts
		SET profile_type = $2, active = $3, tx_count = $4, last_activity_at = $5
		WHERE id = $1`,
		string(account.ID), account.ProfileType, account.Active, account.TransactionCount,
		nullTime(account.LastActivityAt))
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s accountStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return taken, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type balanceStore struct{ base }

func (s balanceStore) Get(ctx context.Context, account id.AccountID) (*uint256.Int, error) {
	var amount string
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT amount::text FROM balances WHERE account_id = $1`+s.forUpdate(), string(account)).
		Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select balance: %w", err)
	}
	return parseNumeric(amount)
}

func (s balanceStore) Set(ctx context.Context, account id.AccountID, amount *uint256.Int) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO balances (account_id, amount)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account_id) DO UPDATE SET amount = EXCLUDED.amount`,
		string(account), amount.Dec())
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func (s balanceStore) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	var total string
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT total::text FROM ledger_supply WHERE id = 1`+s.forUpdate()).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("select total supply: %w", err)
	}
	return parseNumeric(total)
}

func (s balanceStore) SetTotalSupply(ctx context.Context, total *uint256.Int) error {
	_, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE ledger_supply SET total = $1::numeric WHERE id = 1`, total.Dec())
	if err != nil {
		return fmt.Errorf("update total supply: %w", err)
	}
	return nil
}

type quotaStore struct{ base }

func (s quotaStore) Get(ctx context.Context, account id.AccountID) (*models.DailyQuota, error) {
	var (
		used string
		q    = models.DailyQuota{Account: account}
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT used_amount::text, window_start_day
		FROM daily_quotas
		WHERE account_id = $1`+s.forUpdate(), string(account)).
		Scan(&used, &q.WindowStartDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select daily quota: %w", err)
	}
	if q.UsedAmount, err = parseNumeric(used); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s quotaStore) Put(ctx context.Context, quota *models.DailyQuota) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO daily_quotas (account_id, used_amount, window_start_day)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET used_amount = EXCLUDED.used_amount, window_start_day = EXCLUDED.window_start_day`,
		string(quota.Account), quota.UsedAmount.Dec(), quota.WindowStartDay)
	if err != nil {
		return fmt.Errorf("upsert daily quota: %w", err)
	}
	return nil
}

type cooldownStore struct{ base }

func (s cooldownStore) LastMutation(ctx context.Context, account id.AccountID) (time.Time, bool, error) {
	var last time.Time
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT last_mutation_at FROM cooldowns WHERE account_id = $1`, string(account)).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("select cooldown: %w", err)
	}
	return last, true, nil
}

func (s cooldownStore) Stamp(ctx context.Context, account id.AccountID, at time.Time) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO cooldowns (account_id, last_mutation_at)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET last_mutation_at = EXCLUDED.last_mutation_at`,
		string(account), at)
	if err != nil {
		return fmt.Errorf("upsert cooldown: %w", err)
	}
	return nil
}

type txIDStore struct{ base }

func (s txIDStore) Record(ctx context.Context, tx models.ProcessedTx) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO processed_txs (id, account_id, kind, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		tx.ID.String(), string(tx.Account), string(tx.Kind), tx.RecordedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert processed tx: %w", err)
	}
	return nil
}

func (s txIDStore) Get(ctx context.Context, txID id.TxID) (*models.ProcessedTx, error) {
	var (
		tx   = models.ProcessedTx{ID: txID}
		kind string
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT account_id, kind, recorded_at
		FROM processed_txs
		WHERE id = $1`, txID.String()).
		Scan(&tx.Account, &kind, &tx.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select processed tx: %w", err)
	}
	tx.Kind = models.TxKind(kind)
	return &tx, nil
}

type systemStore struct{ base }

func (s systemStore) Get(ctx context.Context) (*models.SystemState, error) {
	var st models.SystemState
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT active, owner, oracle_ref, user_count, updated_at
		FROM system_state
		WHERE id = 1`+s.forUpdate()).
		Scan(&st.Active, &st.Owner, &st.OracleRef, &st.UserCount, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select system state: %w", err)
	}
	return &st, nil
}

func (s systemStore) Put(ctx context.Context, state *models.SystemState) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO system_state (id, active, owner, oracle_ref, user_count, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET active = EXCLUDED.active, owner = EXCLUDED.owner, oracle_ref = EXCLUDED.oracle_ref,
		    user_count = EXCLUDED.user_count, updated_at = EXCLUDED.updated_at`,
		state.Active, string(state.Owner), state.OracleRef, state.UserCount, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert system state: %w", err)
	}
	return nil
}
