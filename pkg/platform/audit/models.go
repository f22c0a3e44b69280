package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers value-moving events. Every one must be
	// persisted with the ledger mutation that produced it.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers control-plane events: pause switches and
	// oracle changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers everything else.
	CategoryOperations EventCategory = "operations"
)

// Action names a ledger event.
type Action string

const (
	ActionAccountRegistered Action = "account_registered"
	ActionTransfer          Action = "transfer"
	ActionSwapLocalToCrypto Action = "swap_local_to_crypto"
	ActionSwapCryptoToLocal Action = "swap_crypto_to_local"
	ActionWithdrawal        Action = "withdrawal"
	ActionOpsCredit         Action = "ops_credit"
	ActionSystemPaused      Action = "system_paused"
	ActionSystemUnpaused    Action = "system_unpaused"
	ActionOracleUpdated     Action = "oracle_updated"
)

var actionCategories = map[Action]EventCategory{
	ActionAccountRegistered: CategoryCompliance,
	ActionTransfer:          CategoryCompliance,
	ActionSwapLocalToCrypto: CategoryCompliance,
	ActionSwapCryptoToLocal: CategoryCompliance,
	ActionWithdrawal:        CategoryCompliance,
	ActionOpsCredit:         CategoryCompliance,

	ActionSystemPaused:   CategorySecurity,
	ActionSystemUnpaused: CategorySecurity,
	ActionOracleUpdated:  CategorySecurity,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted by the ledger for every successful mutating operation.
// Amounts are base-unit decimal strings so the record is lossless and
// independent of any numeric library downstream.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Action    Action
	Timestamp time.Time

	// AccountID is the account the operation acted on: the sender, the
	// swapping or withdrawing user, the registered or credited account.
	AccountID string
	// Counterparty is the transfer recipient or the withdrawal target.
	Counterparty string
	// ActorID is set for administrative operations.
	ActorID string

	TxID        string
	Amount      string
	Net         string
	Fee         string
	LocalAmount string
	Rate        string
	// Detail carries action-specific context, e.g. the new oracle reference.
	Detail string

	RequestID string
}

// Normalize fills the id, category and timestamp when unset.
func (e *Event) Normalize(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Category == "" {
		e.Category = e.Action.Category()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
}

// Involves reports whether accountID is a party to the event.
func (e Event) Involves(accountID string) bool {
	return accountID != "" && (e.AccountID == accountID || e.Counterparty == accountID)
}
