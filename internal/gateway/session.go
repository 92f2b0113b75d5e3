package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nfrund/courier/pkg/protocol"
)

const writeTimeout = 10 * time.Second

// session is one live connection. Its id is an opaque handle with no
// structure beyond equality.
type session struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	gateway *Gateway

	// topics is the set of rooms this session has joined.
	topics   map[string]bool
	topicsMu sync.RWMutex
}

func (s *session) join(topic string) {
	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	s.topics[topic] = true
}

func (s *session) joined(topic string) bool {
	s.topicsMu.RLock()
	defer s.topicsMu.RUnlock()
	return s.topics[topic]
}

// push enqueues a payload without blocking. A full buffer means the client
// is lagging; the payload is dropped rather than stalling the run loop.
func (s *session) push(payload []byte) {
	select {
	case s.send <- payload:
	default:
		slog.Warn("Session send buffer full, dropping envelope", "session_id", s.id)
	}
}

// readPump reads inbound envelopes and dispatches them until the connection
// drops, then unregisters the session from both the gateway and the broker.
func (s *session) readPump() {
	ctx := context.Background()
	defer func() {
		s.gateway.unregister <- s
		if err := s.gateway.broker.UnregisterSession(ctx, s.id); err != nil {
			slog.Error("Failed to unregister session subscriptions", "session_id", s.id, "error", err)
		}
		s.conn.Close(websocket.StatusNormalClosure, "Session closed")
	}()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && err != io.EOF {
				slog.Error("WebSocket read error", "session_id", s.id, "error", err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Dropping malformed frame", "session_id", s.id, "error", err)
			continue
		}

		switch env.Event {
		case protocol.EventSubscribe:
			s.handleSubscribe(ctx, env.Data)
		case protocol.EventConsumed:
			s.handleConsumed(ctx, env.Data)
		default:
			slog.Warn("Unknown session event", "session_id", s.id, "event", env.Event)
		}
	}
}

// handleSubscribe joins the session to each requested topic room, registers
// the subscription, and unicasts a confirmation message per topic.
func (s *session) handleSubscribe(ctx context.Context, data json.RawMessage) {
	var req protocol.SubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		slog.Warn("Dropping malformed subscribe event", "session_id", s.id, "error", err)
		return
	}

	slog.Info("Subscribing consumer", "consumer", req.Consumer, "topics", req.Topics, "session_id", s.id)
	for _, topic := range req.Topics {
		s.join(topic)

		if err := s.gateway.broker.RegisterSubscription(ctx, s.id, req.Consumer, topic); err != nil {
			slog.Error("Failed to register subscription", "session_id", s.id, "topic", topic, "error", err)
			continue
		}

		confirmation, _ := json.Marshal("Subscribed to " + topic)
		env, err := protocol.NewEnvelope(protocol.EventMessage, protocol.Delivery{
			Topic:     topic,
			MessageID: "sub_conf_" + uuid.New().String(),
			Payload:   confirmation,
			Producer:  "server",
		})
		if err != nil {
			slog.Error("Failed to build subscribe confirmation", "session_id", s.id, "error", err)
			continue
		}
		if err := s.gateway.notifier.ToSession(ctx, s.id, env); err != nil {
			slog.Error("Failed to send subscribe confirmation", "session_id", s.id, "error", err)
		}
	}
}

// handleConsumed validates a consumption report and records it. Incomplete
// reports are logged and dropped.
func (s *session) handleConsumed(ctx context.Context, data json.RawMessage) {
	var report protocol.ConsumedReport
	if err := json.Unmarshal(data, &report); err != nil {
		slog.Warn("Dropping malformed consumed event", "session_id", s.id, "error", err)
		return
	}
	if !report.Complete() {
		slog.Warn("Dropping incomplete consumption report", "session_id", s.id, "report", string(data))
		return
	}

	if err := s.gateway.broker.RecordConsumption(ctx, report.Consumer, report.Topic, report.MessageID, report.Payload); err != nil {
		slog.Error("Failed to record consumption", "session_id", s.id, "message_id", report.MessageID, "error", err)
	}
}

// writePump drains the send channel onto the socket.
func (s *session) writePump() {
	defer func() {
		s.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")
	}()

	for payload := range s.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "session_id", s.id, "error", err)
			return
		}
	}
}
