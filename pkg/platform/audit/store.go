package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit bounds event listings when the caller does not.
const DefaultListLimit = 100

// Store persists audit events and lists them per account, newest first.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Event, error)
}

// OutboxEntry is an event awaiting publication to the event stream.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
