// Package ports defines the storage boundary of the ledger. Every mutating
// operation runs inside UnitOfWork.RunInTx and touches state only through the
// Stores it is handed; a returned error rolls back every write.
package ports

//go:generate mockgen -destination=mocks/mocks.go -package=mocks tokenledger/internal/ledger/ports AuditPublisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"tokenledger/internal/ledger/models"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/requestcontext"
)

// AccountStore persists accounts.
type AccountStore interface {
	// Get returns sentinel.ErrNotFound when the account does not exist.
	Get(ctx context.Context, account id.AccountID) (*models.Account, error)

	// Create returns sentinel.ErrConflict when the id or username is taken.
	Create(ctx context.Context, account *models.Account) error

	// Update overwrites mutable fields (counter, activity, active flag).
	Update(ctx context.Context, account *models.Account) error

	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// BalanceStore persists balances and the circulating total.
// Missing balances read as zero.
type BalanceStore interface {
	Get(ctx context.Context, account id.AccountID) (*uint256.Int, error)
	Set(ctx context.Context, account id.AccountID, amount *uint256.Int) error
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	SetTotalSupply(ctx context.Context, total *uint256.Int) error
}

// QuotaStore persists daily quota windows. Get returns nil, nil when absent.
type QuotaStore interface {
	Get(ctx context.Context, account id.AccountID) (*models.DailyQuota, error)
	Put(ctx context.Context, quota *models.DailyQuota) error
}

// CooldownStore persists the last successful mutation per account.
type CooldownStore interface {
	// LastMutation reports ok=false when the account never mutated.
	LastMutation(ctx context.Context, account id.AccountID) (last time.Time, ok bool, err error)
	Stamp(ctx context.Context, account id.AccountID, at time.Time) error
}

// TxIDStore is the append-only processed-id set.
type TxIDStore interface {
	// Record returns sentinel.ErrConflict when the id is already present.
	Record(ctx context.Context, tx models.ProcessedTx) error

	// Get returns sentinel.ErrNotFound for unknown ids.
	Get(ctx context.Context, txID id.TxID) (*models.ProcessedTx, error)
}

// SystemStore persists the single SystemState record.
type SystemStore interface {
	// Get returns sentinel.ErrNotFound before bootstrap.
	Get(ctx context.Context) (*models.SystemState, error)
	Put(ctx context.Context, state *models.SystemState) error
}

// EventSink receives ledger events inside the unit of work. Events become
// visible only if the unit commits.
type EventSink interface {
	Append(ctx context.Context, event audit.Event) error
}

// Stores is the full set of ledger state handed to a unit of work.
type Stores struct {
	Accounts  AccountStore
	Balances  BalanceStore
	Quotas    QuotaStore
	Cooldowns CooldownStore
	TxIDs     TxIDStore
	System    SystemStore
	Events    EventSink
}

// UnitOfWork runs ledger operations atomically and one at a time.
type UnitOfWork interface {
	// RunInTx applies fn as one all-or-nothing unit. Units never interleave.
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error

	// View runs fn against a consistent read-only view.
	View(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// AuditPublisher receives events after their unit of work commits. Backends
// without a transactional event table forward to it.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit writes the structured log line for a committed ledger event.
func LogAudit(ctx context.Context, logger *slog.Logger, event audit.Event) {
	if logger == nil {
		return
	}
	requestID := event.RequestID
	if requestID == "" {
		requestID = requestcontext.RequestID(ctx)
	}
	logger.InfoContext(ctx, string(event.Action),
		"event", string(event.Action),
		"log_type", "audit",
		"account_id", event.AccountID,
		"counterparty", event.Counterparty,
		"actor_id", event.ActorID,
		"tx_id", event.TxID,
		"amount", event.Amount,
		"fee", event.Fee,
		"request_id", requestID,
	)
}

// LogRejection writes the WARN line for a rejected operation.
func LogRejection(ctx context.Context, logger *slog.Logger, operation string, account id.AccountID, err error) {
	if logger == nil {
		return
	}
	logger.WarnContext(ctx, "ledger operation rejected",
		"event", operation,
		"account_id", account,
		"code", string(dErrors.CodeOf(err)),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
