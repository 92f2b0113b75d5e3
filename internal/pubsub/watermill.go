package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/trace"
)

// Metadata keys used to carry routing information through watermill.
const (
	// MetaKeyEvent names the envelope's session event.
	MetaKeyEvent = "event"
	// MetaKeyTopic names the broker topic a room-scoped envelope targets.
	MetaKeyTopic = "broker_topic"
	// MetaKeySession names the session a unicast envelope targets.
	MetaKeySession = "session_id"
)

// WatermillBridge implements Publisher and Subscriber over watermill's
// in-memory GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

// NewWatermillBridge initializes the in-memory fan-out bus.
func NewWatermillBridge() *WatermillBridge {
	logger := watermill.NewStdLogger(false, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{},
		logger,
	)

	return &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: logger,
	}
}

// WithTracing wraps the bridge's publisher so outgoing envelopes are traced.
func (wb *WatermillBridge) WithTracing(tracer trace.Tracer) *WatermillBridge {
	wb.pub = NewPublisherTracingMiddleware(wb.pub, tracer)
	return wb
}

func mapToWatermillMessage(msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	return wmMsg
}

func mapToBusMessage(topic string, wmMsg *message.Message) Message {
	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		metadata[k] = v
	}
	return Message{
		Topic:    topic,
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(msg))
}

// Subscribe implements the Subscriber interface. Message processing runs in
// a background goroutine so the call is non-blocking.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			msg := mapToBusMessage(topic, wmMsg)
			if err := handler(ctx, msg); err != nil {
				slog.Error("Failed to handle bus message",
					"bus_topic", topic, "msg_id", wmMsg.UUID, "error", err)
				wmMsg.Nack()
			} else {
				wmMsg.Ack()
			}
		}
		slog.Debug("Bus subscription loop ended", "bus_topic", topic)
	}()

	return nil
}

// Close shuts down the bus; every active subscription channel is closed.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
