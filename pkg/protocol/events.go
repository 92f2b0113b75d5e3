package protocol

import (
	"encoding/json"
	"fmt"
)

// Session event names. "message" is exclusively the delivery/confirmation
// event (room- or session-scoped); "new_message" is exclusively the global
// observability broadcast. The two are never interchangeable.
const (
	// client -> server
	EventSubscribe = "subscribe"
	EventConsumed  = "consumed"

	// server -> client, room- or session-scoped
	EventMessage = "message"

	// server -> all connected parties
	EventNewClient          = "new_client"
	EventClientDisconnected = "client_disconnected"
	EventNewMessage         = "new_message"
	EventNewConsumption     = "new_consumption"
)

// Envelope is the frame exchanged over a session in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an Envelope for the given event.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// SubscribeRequest is the payload of a client's "subscribe" event.
type SubscribeRequest struct {
	Consumer string   `json:"consumer"`
	Topics   []string `json:"topics"`
}

// ConsumedReport is the payload of a client's "consumed" event. All four
// fields are required and must carry a non-falsy value; the gateway drops
// reports that fail the check.
type ConsumedReport struct {
	Consumer  string          `json:"consumer"`
	Topic     string          `json:"topic"`
	MessageID string          `json:"message_id"`
	Payload   json.RawMessage `json:"message"`
}

// Complete reports whether every field of the report carries a usable value.
func (r ConsumedReport) Complete() bool {
	return r.Consumer != "" && r.Topic != "" && r.MessageID != "" && !falsy(r.Payload)
}

// falsy reports whether a JSON payload is absent or a zero value: null,
// false, 0, the empty string, or an empty array or object.
func falsy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// DisconnectedNotice is the payload of a "client_disconnected" broadcast.
type DisconnectedNotice struct {
	Consumer string `json:"consumer"`
	Topic    string `json:"topic"`
}

// Delivery is the payload of a "message" event pushed to subscribers. The
// broker strips the timestamp from room deliveries; the global "new_message"
// broadcast carries the full Message record instead.
type Delivery struct {
	Topic     string          `json:"topic"`
	MessageID string          `json:"message_id"`
	Payload   json.RawMessage `json:"message"`
	Producer  string          `json:"producer"`
}

// PublishRequest is the body of POST /publish. Every field is required.
type PublishRequest struct {
	Topic     string          `json:"topic" validate:"required"`
	MessageID string          `json:"message_id" validate:"required"`
	Payload   json.RawMessage `json:"message" validate:"required"`
	Producer  string          `json:"producer" validate:"required"`
}
