// Package gateway bridges persistent WebSocket sessions and the broker. It
// accepts connections, tracks per-session topic rooms, translates inbound
// subscribe/consumed events into broker calls, and fans bus envelopes out to
// the right sockets.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/courier/internal/broker"
	"github.com/nfrund/courier/internal/pubsub"
)

type deliveryScope int

const (
	scopeAll deliveryScope = iota
	scopeTopic
	scopeSession
)

// delivery is one envelope headed for sockets, with its routing key.
type delivery struct {
	scope   deliveryScope
	key     string
	payload []byte
}

// Gateway manages all live sessions and routes notifications between the
// fan-out bus and connected clients.
type Gateway struct {
	broker   *broker.Broker
	notifier broker.Notifier

	// sessions is keyed by session id.
	sessions map[string]*session

	register   chan *session
	unregister chan *session
	deliver    chan delivery

	mu sync.RWMutex
}

// New initializes a Gateway. Call Run in a goroutine and Start once to
// attach it to the bus.
func New(b *broker.Broker, notifier broker.Notifier) *Gateway {
	return &Gateway{
		broker:     b,
		notifier:   notifier,
		sessions:   make(map[string]*session),
		register:   make(chan *session),
		unregister: make(chan *session),
		deliver:    make(chan delivery, 256),
	}
}

// Start subscribes the gateway to the three notification bus topics. The
// context bounds the subscriptions; once it is canceled, pending envelopes
// are discarded instead of blocking the bus.
func (g *Gateway) Start(ctx context.Context, sub pubsub.Subscriber) error {
	enqueue := func(d delivery) error {
		select {
		case g.deliver <- d:
		case <-ctx.Done():
		}
		return nil
	}

	if err := sub.Subscribe(ctx, broker.BusBroadcast, func(_ context.Context, msg pubsub.Message) error {
		return enqueue(delivery{scope: scopeAll, payload: msg.Payload})
	}); err != nil {
		return err
	}
	if err := sub.Subscribe(ctx, broker.BusTopic, func(_ context.Context, msg pubsub.Message) error {
		return enqueue(delivery{scope: scopeTopic, key: msg.Metadata[pubsub.MetaKeyTopic], payload: msg.Payload})
	}); err != nil {
		return err
	}
	return sub.Subscribe(ctx, broker.BusSession, func(_ context.Context, msg pubsub.Message) error {
		return enqueue(delivery{scope: scopeSession, key: msg.Metadata[pubsub.MetaKeySession], payload: msg.Payload})
	})
}

// Run is the gateway's main loop. It owns session registration and all
// socket-bound routing. Run it in a dedicated goroutine; it returns when
// the context is canceled.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case s := <-g.register:
			g.mu.Lock()
			g.sessions[s.id] = s
			g.mu.Unlock()
			slog.Info("Session connected", "session_id", s.id)

		case s := <-g.unregister:
			g.mu.Lock()
			if _, ok := g.sessions[s.id]; ok {
				delete(g.sessions, s.id)
				close(s.send)
			}
			g.mu.Unlock()
			slog.Info("Session disconnected", "session_id", s.id)

		case d := <-g.deliver:
			g.mu.RLock()
			switch d.scope {
			case scopeAll:
				for _, s := range g.sessions {
					s.push(d.payload)
				}
			case scopeTopic:
				for _, s := range g.sessions {
					if s.joined(d.key) {
						s.push(d.payload)
					}
				}
			case scopeSession:
				if s, ok := g.sessions[d.key]; ok {
					s.push(d.payload)
				}
			}
			g.mu.RUnlock()
		}
	}
}

// Handler returns the echo handler that upgrades requests to WebSocket
// sessions. Each connection gets an opaque uuid session id.
func (g *Gateway) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Origin checks are a deployment concern.
		})
		if err != nil {
			slog.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		s := &session{
			id:      uuid.New().String(),
			conn:    conn,
			send:    make(chan []byte, 256),
			topics:  make(map[string]bool),
			gateway: g,
		}
		g.register <- s

		go s.writePump()
		go s.readPump()

		return nil
	}
}

// SessionCount reports the number of live sessions. Used by tests.
func (g *Gateway) SessionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}
