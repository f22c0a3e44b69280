package memory

import (
	"context"
	"sync"

	audit "tokenledger/pkg/platform/audit"
)

// InMemoryStore keeps events in append order and indexes them by every
// account they involve, so a transfer is listed for both parties.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []audit.Event
	byAccount map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byAccount: make(map[string][]int)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byAccount = make(map[string][]int)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.events)
	s.events = append(s.events, event)
	if event.AccountID != "" {
		s.byAccount[event.AccountID] = append(s.byAccount[event.AccountID], idx)
	}
	if event.Counterparty != "" && event.Counterparty != event.AccountID {
		s.byAccount[event.Counterparty] = append(s.byAccount[event.Counterparty], idx)
	}
	return nil
}

// ListByAccount returns the most recent events involving accountID, newest first.
func (s *InMemoryStore) ListByAccount(_ context.Context, accountID string, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = audit.DefaultListLimit
	}
	indexes := s.byAccount[accountID]
	out := make([]audit.Event, 0, min(limit, len(indexes)))
	for i := len(indexes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[indexes[i]])
	}
	return out, nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}
