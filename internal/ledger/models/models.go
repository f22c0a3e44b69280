// Package models holds the ledger's persistent records and operation results.
package models

import (
	"time"

	"github.com/holiman/uint256"

	id "tokenledger/pkg/domain"
)

// MaxUsernameLength is the upper bound on username bytes.
const MaxUsernameLength = 50

// Account is a registered participant. Accounts are never deleted.
type Account struct {
	ID               id.AccountID
	Username         string
	ProfileType      int
	Registered       bool
	Active           bool
	RegisteredAt     time.Time
	TransactionCount uint64
	LastActivityAt   time.Time
}

// Clone returns a copy safe to mutate without touching the store.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// RecordTransaction bumps the counter and the activity timestamp.
func (a *Account) RecordTransaction(now time.Time) {
	a.TransactionCount++
	a.LastActivityAt = now
}

// DailyQuota tracks gross transfer volume within one UTC day.
type DailyQuota struct {
	Account        id.AccountID
	UsedAmount     *uint256.Int
	WindowStartDay int64
}

// UsedOn returns the volume counted against day; a stale window counts as zero.
func (q *DailyQuota) UsedOn(day int64) *uint256.Int {
	if q == nil || q.UsedAmount == nil || q.WindowStartDay < day {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(q.UsedAmount)
}

// DayIndex is floor(unix seconds / 86400).
func DayIndex(t time.Time) int64 {
	secs := t.Unix()
	day := secs / 86400
	if secs%86400 < 0 {
		day--
	}
	return day
}

// SystemState is the single process-wide control record.
type SystemState struct {
	Active    bool
	Owner     id.AccountID
	OracleRef string
	UserCount uint64
	UpdatedAt time.Time
}

func (s *SystemState) Clone() *SystemState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// TxKind names the operation a transaction id was issued for.
type TxKind string

const (
	TxKindTransfer          TxKind = "transfer"
	TxKindSwapLocalToCrypto TxKind = "swap_local_to_crypto"
	TxKindSwapCryptoToLocal TxKind = "swap_crypto_to_local"
	TxKindWithdrawal        TxKind = "withdrawal"
	TxKindOpsCredit         TxKind = "ops_credit"
)

// ProcessedTx is one entry of the append-only processed-id set.
type ProcessedTx struct {
	ID         id.TxID
	Account    id.AccountID
	Kind       TxKind
	RecordedAt time.Time
}
