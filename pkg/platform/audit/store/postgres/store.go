package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "tokenledger/pkg/platform/audit"
	txcontext "tokenledger/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append runs inside the ledger transaction carried by ctx: the event is
// materialized into audit_events and queued in outbox atomically with the
// ledger mutation. The relay worker publishes outbox rows to Kafka.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	Action       string `json:"action"`
	Timestamp    string `json:"timestamp"`
	AccountID    string `json:"account_id,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	ActorID      string `json:"actor_id,omitempty"`
	TxID         string `json:"tx_id,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Net          string `json:"net,omitempty"`
	Fee          string `json:"fee,omitempty"`
	LocalAmount  string `json:"local_amount,omitempty"`
	Rate         string `json:"rate,omitempty"`
	Detail       string `json:"detail,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

func toPayload(e audit.Event) outboxPayload {
	return outboxPayload{
		ID:           e.ID.String(),
		Category:     string(e.Category),
		Action:       string(e.Action),
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		AccountID:    e.AccountID,
		Counterparty: e.Counterparty,
		ActorID:      e.ActorID,
		TxID:         e.TxID,
		Amount:       e.Amount,
		Net:          e.Net,
		Fee:          e.Fee,
		LocalAmount:  e.LocalAmount,
		Rate:         e.Rate,
		Detail:       e.Detail,
		RequestID:    e.RequestID,
	}
}

// Append writes the event to audit_events and to the outbox.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	event.Normalize(time.Now())

	payloadBytes, err := json.Marshal(toPayload(event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	exec := txcontext.ExecutorFrom(ctx, s.db)

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, action, timestamp, account_id, counterparty, actor_id,
			tx_id, amount, net, fee, local_amount, rate, detail, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		string(event.Category),
		string(event.Action),
		event.Timestamp,
		event.AccountID,
		event.Counterparty,
		event.ActorID,
		event.TxID,
		event.Amount,
		event.Net,
		event.Fee,
		event.LocalAmount,
		event.Rate,
		event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	aggregateID := event.AccountID
	if aggregateID == "" {
		aggregateID = event.ID.String()
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		"account",
		aggregateID,
		string(event.Action),
		payloadBytes,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByAccount returns events where the account is either party, newest first.
func (s *Store) ListByAccount(ctx context.Context, accountID string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = audit.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, action, timestamp, account_id, counterparty, actor_id,
		       tx_id, amount, net, fee, local_amount, rate, detail, request_id
		FROM audit_events
		WHERE account_id = $1 OR counterparty = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			action   string
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&action,
			&event.Timestamp,
			&event.AccountID,
			&event.Counterparty,
			&event.ActorID,
			&event.TxID,
			&event.Amount,
			&event.Net,
			&event.Fee,
			&event.LocalAmount,
			&event.Rate,
			&event.Detail,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Action = audit.Action(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// FetchUnpublished returns up to limit outbox entries in creation order.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.AggregateID, &entry.EventType, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox entries as published.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
