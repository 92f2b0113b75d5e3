package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/pkg/protocol"
)

// Bus topics the notifier publishes on. The session gateway subscribes to
// all three and fans envelopes out to live sockets.
const (
	BusBroadcast = "courier.notify.broadcast"
	BusTopic     = "courier.notify.topic"
	BusSession   = "courier.notify.session"
)

// Notifier is the broker's view of the notification fan-out. It is a
// collaborator, not owned: delivery to individual sockets happens elsewhere.
type Notifier interface {
	// Broadcast delivers the envelope to every connected session.
	Broadcast(ctx context.Context, env protocol.Envelope) error
	// ToTopic delivers the envelope to sessions subscribed to topic.
	ToTopic(ctx context.Context, topic string, env protocol.Envelope) error
	// ToSession delivers the envelope to a single session.
	ToSession(ctx context.Context, sessionID string, env protocol.Envelope) error
}

// BusNotifier implements Notifier over the in-process fan-out bus.
type BusNotifier struct {
	publisher pubsub.Publisher
}

// NewBusNotifier creates a Notifier that publishes envelopes on the bus.
func NewBusNotifier(publisher pubsub.Publisher) *BusNotifier {
	return &BusNotifier{publisher: publisher}
}

func (n *BusNotifier) publish(ctx context.Context, busTopic string, env protocol.Envelope, metadata map[string]string) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata[pubsub.MetaKeyEvent] = env.Event

	return n.publisher.Publish(ctx, pubsub.Message{
		Topic:    busTopic,
		Payload:  payload,
		Metadata: metadata,
	})
}

// Broadcast implements Notifier.
func (n *BusNotifier) Broadcast(ctx context.Context, env protocol.Envelope) error {
	return n.publish(ctx, BusBroadcast, env, nil)
}

// ToTopic implements Notifier.
func (n *BusNotifier) ToTopic(ctx context.Context, topic string, env protocol.Envelope) error {
	return n.publish(ctx, BusTopic, env, map[string]string{pubsub.MetaKeyTopic: topic})
}

// ToSession implements Notifier.
func (n *BusNotifier) ToSession(ctx context.Context, sessionID string, env protocol.Envelope) error {
	return n.publish(ctx, BusSession, env, map[string]string{pubsub.MetaKeySession: sessionID})
}
