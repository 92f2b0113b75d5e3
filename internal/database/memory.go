package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nfrund/courier/pkg/protocol"
)

// MemoryStore is an in-memory implementation of the broker's Store contract
// with the same semantics as SurrealStore: idempotent subscription upsert,
// unique message ids, append-only logs, newest-first listings. It backs the
// "memory" store driver and the test suite.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[string]protocol.Subscription // key: sessionID + "\x00" + topic
	messages      []protocol.Message
	messageIDs    map[string]bool
	consumptions  []protocol.Consumption

	// WriteErr and ReadErr, when set, make every write or read fail.
	// Used by tests to exercise the storage failure paths.
	WriteErr error
	ReadErr  error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]protocol.Subscription),
		messageIDs:    make(map[string]bool),
	}
}

func subscriptionKey(sessionID, topic string) string {
	return sessionID + "\x00" + topic
}

// UpsertSubscription inserts or replaces the row keyed by (session, topic).
func (s *MemoryStore) UpsertSubscription(_ context.Context, sub protocol.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.subscriptions[subscriptionKey(sub.SessionID, sub.Topic)] = sub
	return nil
}

// DeleteSessionSubscriptions removes every subscription held by the session
// and returns the removed rows.
func (s *MemoryStore) DeleteSessionSubscriptions(_ context.Context, sessionID string) ([]protocol.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return nil, s.WriteErr
	}

	var removed []protocol.Subscription
	for key, sub := range s.subscriptions {
		if sub.SessionID == sessionID {
			removed = append(removed, sub)
			delete(s.subscriptions, key)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Topic < removed[j].Topic })
	return removed, nil
}

// InsertMessage appends a message, rejecting duplicate message ids.
func (s *MemoryStore) InsertMessage(_ context.Context, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if s.messageIDs[msg.MessageID] {
		return fmt.Errorf("insert message: duplicate message_id %q", msg.MessageID)
	}
	s.messageIDs[msg.MessageID] = true
	s.messages = append(s.messages, msg)
	return nil
}

// InsertConsumption appends a consumption acknowledgment.
func (s *MemoryStore) InsertConsumption(_ context.Context, c protocol.Consumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.consumptions = append(s.consumptions, c)
	return nil
}

// ListSubscriptions returns a snapshot of all live subscriptions.
func (s *MemoryStore) ListSubscriptions(_ context.Context) ([]protocol.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	subs := make([]protocol.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Consumer != subs[j].Consumer {
			return subs[i].Consumer < subs[j].Consumer
		}
		return subs[i].Topic < subs[j].Topic
	})
	return subs, nil
}

// ListMessages returns all messages, newest first.
func (s *MemoryStore) ListMessages(_ context.Context) ([]protocol.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}

	msgs := make([]protocol.Message, len(s.messages))
	for i, m := range s.messages {
		msgs[len(s.messages)-1-i] = m
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp > msgs[j].Timestamp })
	return msgs, nil
}

// ListConsumptions returns all consumption events, newest first.
func (s *MemoryStore) ListConsumptions(_ context.Context) ([]protocol.Consumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}

	events := make([]protocol.Consumption, len(s.consumptions))
	for i, c := range s.consumptions {
		events[len(s.consumptions)-1-i] = c
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp > events[j].Timestamp })
	return events, nil
}
