package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfrund/courier/pkg/protocol"
	"github.com/surrealdb/surrealdb.go"
)

// Payloads are persisted as JSON strings so structured values round-trip
// byte-for-byte regardless of the driver's own encoding.
type messageRow struct {
	Topic     string  `json:"topic"`
	MessageID string  `json:"message_id"`
	Payload   string  `json:"message"`
	Producer  string  `json:"producer"`
	Timestamp float64 `json:"timestamp"`
}

type subscriptionRow struct {
	SessionID   string  `json:"session_id"`
	Consumer    string  `json:"consumer"`
	Topic       string  `json:"topic"`
	ConnectedAt float64 `json:"connected_at"`
}

type consumptionRow struct {
	Consumer  string  `json:"consumer"`
	Topic     string  `json:"topic"`
	MessageID string  `json:"message_id"`
	Payload   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// SurrealStore persists broker records in SurrealDB. It implements the
// broker's Store contract.
type SurrealStore struct {
	db *surrealdb.DB
}

// NewSurrealStore creates a SurrealStore over an established connection.
func NewSurrealStore(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

// UpsertSubscription inserts or replaces the subscription row keyed by
// (session_id, topic). The composite record id makes the replace atomic.
func (s *SurrealStore) UpsertSubscription(ctx context.Context, sub protocol.Subscription) error {
	query := `UPSERT type::thing('subscriptions', [$session_id, $topic]) SET
		session_id = $session_id,
		consumer = $consumer,
		topic = $topic,
		connected_at = $connected_at`
	params := map[string]any{
		"session_id":   sub.SessionID,
		"consumer":     sub.Consumer,
		"topic":        sub.Topic,
		"connected_at": sub.ConnectedAt,
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// DeleteSessionSubscriptions removes every subscription held by the session
// in one atomic statement and returns the removed rows.
func (s *SurrealStore) DeleteSessionSubscriptions(ctx context.Context, sessionID string) ([]protocol.Subscription, error) {
	query := "DELETE subscriptions WHERE session_id = $session_id RETURN BEFORE"
	rows, err := Query[subscriptionRow](ctx, s.db, query, map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("delete session subscriptions: %w", err)
	}

	subs := make([]protocol.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, protocol.Subscription{
			SessionID:   r.SessionID,
			Consumer:    r.Consumer,
			Topic:       r.Topic,
			ConnectedAt: r.ConnectedAt,
		})
	}
	return subs, nil
}

// InsertMessage appends a message to the log. The unique index on
// message_id rejects duplicate publishes.
func (s *SurrealStore) InsertMessage(ctx context.Context, msg protocol.Message) error {
	query := `CREATE messages CONTENT {
		topic: $topic,
		message_id: $message_id,
		message: $message,
		producer: $producer,
		timestamp: $timestamp
	}`
	params := map[string]any{
		"topic":      msg.Topic,
		"message_id": msg.MessageID,
		"message":    string(msg.Payload),
		"producer":   msg.Producer,
		"timestamp":  msg.Timestamp,
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertConsumption appends a consumption acknowledgment.
func (s *SurrealStore) InsertConsumption(ctx context.Context, c protocol.Consumption) error {
	query := `CREATE consumptions CONTENT {
		consumer: $consumer,
		topic: $topic,
		message_id: $message_id,
		message: $message,
		timestamp: $timestamp
	}`
	params := map[string]any{
		"consumer":   c.Consumer,
		"topic":      c.Topic,
		"message_id": c.MessageID,
		"message":    string(c.Payload),
		"timestamp":  c.Timestamp,
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("insert consumption: %w", err)
	}
	return nil
}

// ListSubscriptions returns a snapshot of all live subscriptions.
func (s *SurrealStore) ListSubscriptions(ctx context.Context) ([]protocol.Subscription, error) {
	rows, err := Query[subscriptionRow](ctx, s.db,
		"SELECT session_id, consumer, topic, connected_at FROM subscriptions", nil)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	subs := make([]protocol.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, protocol.Subscription{
			SessionID:   r.SessionID,
			Consumer:    r.Consumer,
			Topic:       r.Topic,
			ConnectedAt: r.ConnectedAt,
		})
	}
	return subs, nil
}

// ListMessages returns all messages, newest first.
func (s *SurrealStore) ListMessages(ctx context.Context) ([]protocol.Message, error) {
	rows, err := Query[messageRow](ctx, s.db,
		`SELECT topic, message_id, message, producer, timestamp FROM messages
		 WHERE message_id != NONE ORDER BY timestamp DESC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]protocol.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, protocol.Message{
			Topic:     r.Topic,
			MessageID: r.MessageID,
			Payload:   json.RawMessage(r.Payload),
			Producer:  r.Producer,
			Timestamp: r.Timestamp,
		})
	}
	return msgs, nil
}

// ListConsumptions returns all consumption events, newest first.
func (s *SurrealStore) ListConsumptions(ctx context.Context) ([]protocol.Consumption, error) {
	rows, err := Query[consumptionRow](ctx, s.db,
		`SELECT consumer, topic, message_id, message, timestamp FROM consumptions
		 WHERE message_id != NONE ORDER BY timestamp DESC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list consumptions: %w", err)
	}

	events := make([]protocol.Consumption, 0, len(rows))
	for _, r := range rows {
		events = append(events, protocol.Consumption{
			Consumer:  r.Consumer,
			Topic:     r.Topic,
			MessageID: r.MessageID,
			Payload:   json.RawMessage(r.Payload),
			Timestamp: r.Timestamp,
		})
	}
	return events, nil
}
