package broker_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/courier/internal/broker"
	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/pkg/protocol"
)

// capturePublisher implements pubsub.Publisher and records every message.
type capturePublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (p *capturePublisher) Publish(_ context.Context, msg pubsub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) last(t *testing.T) pubsub.Message {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.messages)
	return p.messages[len(p.messages)-1]
}

func TestBusNotifierRoutesByScope(t *testing.T) {
	pub := &capturePublisher{}
	notifier := broker.NewBusNotifier(pub)
	ctx := context.Background()

	env, err := protocol.NewEnvelope(protocol.EventNewClient, map[string]string{"consumer": "alice"})
	require.NoError(t, err)

	require.NoError(t, notifier.Broadcast(ctx, env))
	msg := pub.last(t)
	assert.Equal(t, broker.BusBroadcast, msg.Topic)
	assert.Equal(t, protocol.EventNewClient, msg.Metadata[pubsub.MetaKeyEvent])

	require.NoError(t, notifier.ToTopic(ctx, "sport", env))
	msg = pub.last(t)
	assert.Equal(t, broker.BusTopic, msg.Topic)
	assert.Equal(t, "sport", msg.Metadata[pubsub.MetaKeyTopic])

	require.NoError(t, notifier.ToSession(ctx, "s1", env))
	msg = pub.last(t)
	assert.Equal(t, broker.BusSession, msg.Topic)
	assert.Equal(t, "s1", msg.Metadata[pubsub.MetaKeySession])
}

func TestBusNotifierPayloadIsTheMarshaledEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	notifier := broker.NewBusNotifier(pub)

	env, err := protocol.NewEnvelope(protocol.EventMessage, protocol.Delivery{
		Topic:     "sport",
		MessageID: "m1",
		Payload:   json.RawMessage(`{"score":"1-0"}`),
		Producer:  "bot",
	})
	require.NoError(t, err)
	require.NoError(t, notifier.ToTopic(context.Background(), "sport", env))

	var decoded protocol.Envelope
	require.NoError(t, json.Unmarshal(pub.last(t).Payload, &decoded))
	assert.Equal(t, protocol.EventMessage, decoded.Event)

	var delivery protocol.Delivery
	require.NoError(t, json.Unmarshal(decoded.Data, &delivery))
	assert.Equal(t, "m1", delivery.MessageID)
	assert.Equal(t, `{"score":"1-0"}`, string(delivery.Payload))
}
