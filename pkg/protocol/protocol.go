// Package protocol defines the wire model shared by the broker, the session
// gateway, and the client SDK: the three persisted record kinds, the event
// envelope exchanged over WebSocket sessions, and the HTTP publish contract.
package protocol

import (
	"encoding/json"
	"time"
)

// Now returns the current time as float64 unix seconds, the timestamp
// representation used on the wire and in the store.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Message is a published message. It is immutable once stored and forms an
// append-only log per topic. The producer owns message_id generation so that
// publish retries stay idempotent.
type Message struct {
	Topic     string          `json:"topic"`
	MessageID string          `json:"message_id"`
	Payload   json.RawMessage `json:"message"`
	Producer  string          `json:"producer"`
	Timestamp float64         `json:"timestamp"`
}

// Subscription records that a session subscribed a consumer to a topic.
// The natural key is (SessionID, Topic); re-subscribing replaces the row.
// SessionID is an opaque transport handle and is never exposed over HTTP.
type Subscription struct {
	SessionID   string  `json:"-"`
	Consumer    string  `json:"consumer"`
	Topic       string  `json:"topic"`
	ConnectedAt float64 `json:"connected_at"`
}

// Consumption is a consumer's acknowledgment that it processed a message.
// It is a log entry, not an ownership claim: many consumers may record
// consumption of the same message_id.
type Consumption struct {
	Consumer  string          `json:"consumer"`
	Topic     string          `json:"topic"`
	MessageID string          `json:"message_id"`
	Payload   json.RawMessage `json:"message"`
	Timestamp float64         `json:"timestamp"`
}
