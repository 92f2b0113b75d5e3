// Package pubsub is the in-process notification fan-out bus. The broker
// publishes lifecycle envelopes onto it; the session gateway subscribes and
// pushes them to live WebSocket sessions.
package pubsub

import (
	"context"
)

// Message is the unit passed between components on the bus.
type Message struct {
	// Topic identifies the bus channel (e.g. "courier.notify.broadcast").
	// This is a bus routing key, not a broker message topic.
	Topic string
	// Payload contains the marshaled envelope.
	Payload []byte
	// Metadata carries routing keys such as the broker topic or the
	// target session id.
	Metadata map[string]string
}

// Handler processes a received bus message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given bus topic, processing
	// messages with the handler. It returns once the subscription is
	// active; delivery continues until the context is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
