// Package client is the consumer-side SDK for the broker: it holds a
// persistent session, subscribes to topics, dispatches pushed messages to
// per-topic handlers, acknowledges consumption, and publishes over the
// ingress API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nfrund/courier/pkg/protocol"
)

// Handler processes the payload of one delivered message.
type Handler func(payload json.RawMessage)

// Client is a broker consumer. It is safe to register handlers before
// Connect; registering after Listen has started is also safe.
type Client struct {
	baseURL  string
	consumer string
	topics   []string

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	httpClient *http.Client
	conn       *websocket.Conn
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP client used for publishing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the broker at baseURL (e.g. "http://localhost:5000").
// The consumer name identifies this logical consumer across sessions; topics
// are subscribed on Connect.
func New(baseURL, consumer string, topics []string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		consumer:   consumer,
		topics:     topics,
		handlers:   make(map[string]Handler),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle registers the handler invoked for messages delivered on topic.
// Topics without a handler are logged and dropped, never nacked or requeued.
func (c *Client) Handle(topic string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[topic] = h
}

// Connect dials the broker's session endpoint and subscribes to the
// client's topics. Call Listen afterwards to receive deliveries.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.baseURL+"/ws", nil)
	if err != nil {
		return fmt.Errorf("dial session endpoint: %w", err)
	}
	c.conn = conn

	env, err := protocol.NewEnvelope(protocol.EventSubscribe, protocol.SubscribeRequest{
		Consumer: c.consumer,
		Topics:   c.topics,
	})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return err
	}
	if err := c.write(ctx, env); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return fmt.Errorf("send subscribe: %w", err)
	}

	slog.Info("Connected to broker", "consumer", c.consumer, "topics", c.topics)
	return nil
}

// Listen runs the read loop, dispatching deliveries to registered handlers
// until the context is canceled or the connection drops.
func (c *Client) Listen(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("session read: %w", err)
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Dropping malformed frame", "consumer", c.consumer, "error", err)
			continue
		}

		switch env.Event {
		case protocol.EventMessage:
			c.dispatch(ctx, env.Data)
		default:
			// Lifecycle broadcasts are observability traffic; consumers
			// only act on deliveries.
			slog.Debug("Ignoring broadcast event", "consumer", c.consumer, "event", env.Event)
		}
	}
}

// dispatch routes one delivery to its topic handler, then acknowledges the
// consumption. Unhandled topics are dropped.
func (c *Client) dispatch(ctx context.Context, data json.RawMessage) {
	var d protocol.Delivery
	if err := json.Unmarshal(data, &d); err != nil {
		slog.Warn("Dropping malformed delivery", "consumer", c.consumer, "error", err)
		return
	}

	c.handlersMu.RLock()
	handler, ok := c.handlers[d.Topic]
	c.handlersMu.RUnlock()
	if !ok {
		slog.Warn("No handler for topic, dropping message",
			"consumer", c.consumer, "topic", d.Topic, "message_id", d.MessageID)
		return
	}

	handler(d.Payload)

	ack, err := protocol.NewEnvelope(protocol.EventConsumed, protocol.ConsumedReport{
		Consumer:  c.consumer,
		Topic:     d.Topic,
		MessageID: d.MessageID,
		Payload:   d.Payload,
	})
	if err != nil {
		slog.Error("Failed to build consumption ack", "consumer", c.consumer, "error", err)
		return
	}
	if err := c.write(ctx, ack); err != nil {
		slog.Error("Failed to send consumption ack",
			"consumer", c.consumer, "message_id", d.MessageID, "error", err)
	}
}

func (c *Client) write(ctx context.Context, env protocol.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

// Publish sends a message through the ingress API, using the client's
// consumer name as producer. The caller supplies message_id; reusing an id
// on retry is what makes the publish idempotent.
func (c *Client) Publish(ctx context.Context, topic string, payload any, messageID string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	body, err := json.Marshal(protocol.PublishRequest{
		Topic:     topic,
		MessageID: messageID,
		Payload:   raw,
		Producer:  c.consumer,
	})
	if err != nil {
		return fmt.Errorf("marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/publish", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("publish rejected: %s", resp.Status)
	}
	return nil
}

// Close closes the session. Safe to call when never connected.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}
