// Package broker owns subscription state, message durability, delivery
// fan-out to topic subscribers, and consumption bookkeeping. It is the only
// component that writes to the durable store and the only emitter of
// lifecycle notifications.
package broker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nfrund/courier/pkg/protocol"
)

// Store is the broker's durable persistence contract. Listings marked
// "newest first" must order by their timestamp, descending. Every write
// must be atomic: a concurrent multi-row delete never interleaves with an
// upsert on the same session.
type Store interface {
	UpsertSubscription(ctx context.Context, sub protocol.Subscription) error
	DeleteSessionSubscriptions(ctx context.Context, sessionID string) ([]protocol.Subscription, error)
	InsertMessage(ctx context.Context, msg protocol.Message) error
	InsertConsumption(ctx context.Context, c protocol.Consumption) error
	ListSubscriptions(ctx context.Context) ([]protocol.Subscription, error)
	// ListMessages returns messages newest first.
	ListMessages(ctx context.Context) ([]protocol.Message, error)
	// ListConsumptions returns consumption events newest first.
	ListConsumptions(ctx context.Context) ([]protocol.Consumption, error)
}

// Broker coordinates the durable store and the notification fan-out. Both
// collaborators are injected; the broker holds no process-global state.
type Broker struct {
	store    Store
	notifier Notifier
}

// New creates a Broker over the given store and notifier.
func New(store Store, notifier Notifier) *Broker {
	return &Broker{store: store, notifier: notifier}
}

// notify logs and absorbs fan-out failures: a failed push must not undo or
// outrank a committed write.
func (b *Broker) notify(op string, err error) {
	if err != nil {
		slog.Error("Notification fan-out failed", "op", op, "error", ErrNotify, "cause", err)
	}
}

// RegisterSubscription upserts the subscription keyed by (session, topic)
// and broadcasts a new_client event to all connected parties. The broadcast
// is global rather than room-scoped: it is an administrative event, not
// message delivery.
func (b *Broker) RegisterSubscription(ctx context.Context, sessionID, consumer, topic string) error {
	sub := protocol.Subscription{
		SessionID:   sessionID,
		Consumer:    consumer,
		Topic:       topic,
		ConnectedAt: protocol.Now(),
	}
	if err := b.store.UpsertSubscription(ctx, sub); err != nil {
		return storageErr("register subscription", err)
	}
	slog.Info("Registered subscription", "consumer", consumer, "topic", topic, "session_id", sessionID)

	env, err := protocol.NewEnvelope(protocol.EventNewClient, sub)
	if err != nil {
		b.notify("register subscription", err)
		return nil
	}
	b.notify("register subscription", b.notifier.Broadcast(ctx, env))
	return nil
}

// UnregisterSession deletes every subscription the session holds in one
// atomic store operation, then broadcasts one client_disconnected event per
// removed row. A session with no subscriptions is a no-op that emits
// nothing.
func (b *Broker) UnregisterSession(ctx context.Context, sessionID string) error {
	removed, err := b.store.DeleteSessionSubscriptions(ctx, sessionID)
	if err != nil {
		return storageErr("unregister session", err)
	}

	for _, sub := range removed {
		slog.Info("Unregistered subscription", "consumer", sub.Consumer, "topic", sub.Topic, "session_id", sessionID)
		env, err := protocol.NewEnvelope(protocol.EventClientDisconnected, protocol.DisconnectedNotice{
			Consumer: sub.Consumer,
			Topic:    sub.Topic,
		})
		if err != nil {
			b.notify("unregister session", err)
			continue
		}
		b.notify("unregister session", b.notifier.Broadcast(ctx, env))
	}
	return nil
}

// Publish stores the message, pushes it to the topic's subscribers as a
// room-scoped "message" event, and broadcasts a "new_message" event
// globally for observers. The caller supplies message_id so retries stay
// idempotent; the broker never mints ids.
func (b *Broker) Publish(ctx context.Context, topic, messageID string, payload json.RawMessage, producer string) error {
	msg := protocol.Message{
		Topic:     topic,
		MessageID: messageID,
		Payload:   payload,
		Producer:  producer,
		Timestamp: protocol.Now(),
	}
	if err := b.store.InsertMessage(ctx, msg); err != nil {
		return storageErr("publish", err)
	}
	slog.Info("Saved message", "message_id", messageID, "topic", topic, "producer", producer)

	if env, err := protocol.NewEnvelope(protocol.EventMessage, protocol.Delivery{
		Topic:     topic,
		MessageID: messageID,
		Payload:   payload,
		Producer:  producer,
	}); err != nil {
		b.notify("publish delivery", err)
	} else {
		b.notify("publish delivery", b.notifier.ToTopic(ctx, topic, env))
	}

	if env, err := protocol.NewEnvelope(protocol.EventNewMessage, msg); err != nil {
		b.notify("publish broadcast", err)
	} else {
		b.notify("publish broadcast", b.notifier.Broadcast(ctx, env))
	}
	return nil
}

// RecordConsumption stores a consumption acknowledgment and broadcasts a
// new_consumption event. The report is trusted as-is: no check that the
// message_id was ever published to the topic, nor that the consumer holds a
// live subscription.
func (b *Broker) RecordConsumption(ctx context.Context, consumer, topic, messageID string, payload json.RawMessage) error {
	c := protocol.Consumption{
		Consumer:  consumer,
		Topic:     topic,
		MessageID: messageID,
		Payload:   payload,
		Timestamp: protocol.Now(),
	}
	if err := b.store.InsertConsumption(ctx, c); err != nil {
		return storageErr("record consumption", err)
	}
	slog.Info("Saved consumption", "consumer", consumer, "message_id", messageID, "topic", topic)

	env, err := protocol.NewEnvelope(protocol.EventNewConsumption, c)
	if err != nil {
		b.notify("record consumption", err)
		return nil
	}
	b.notify("record consumption", b.notifier.Broadcast(ctx, env))
	return nil
}

// ListSubscribers returns a snapshot of all live subscriptions.
func (b *Broker) ListSubscribers(ctx context.Context) ([]protocol.Subscription, error) {
	subs, err := b.store.ListSubscriptions(ctx)
	if err != nil {
		return nil, storageErr("list subscribers", err)
	}
	return subs, nil
}

// ListMessages returns all published messages, newest first.
func (b *Broker) ListMessages(ctx context.Context) ([]protocol.Message, error) {
	msgs, err := b.store.ListMessages(ctx)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	return msgs, nil
}

// ListConsumptions returns all consumption events, newest first.
func (b *Broker) ListConsumptions(ctx context.Context) ([]protocol.Consumption, error) {
	events, err := b.store.ListConsumptions(ctx)
	if err != nil {
		return nil, storageErr("list consumptions", err)
	}
	return events, nil
}
