package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfrund/courier/internal/broker"
	"github.com/nfrund/courier/internal/database"
	"github.com/nfrund/courier/internal/pubsub"
)

func TestRunStopsWhenContextIsCanceled(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()
	notifier := broker.NewBusNotifier(bus)
	g := New(broker.New(database.NewMemoryStore(), notifier), notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	// The loop is live: a registration must be accepted and reflected.
	s := &session{id: "s1", send: make(chan []byte, 1), topics: make(map[string]bool), gateway: g}
	g.register <- s
	require.Eventually(t, func() bool {
		return g.SessionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop after cancel")
	}
}

func TestStartDiscardsEnvelopesAfterCancel(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()
	notifier := broker.NewBusNotifier(bus)
	g := New(broker.New(database.NewMemoryStore(), notifier), notifier)

	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	require.NoError(t, g.Start(ctx, bus))
	cancel()

	// With no run loop draining, enqueue must fall through on the canceled
	// context instead of wedging the bus subscription.
	for i := 0; i < cap(g.deliver)+8; i++ {
		require.NoError(t, bus.Publish(context.Background(), pubsub.Message{
			Topic:   broker.BusBroadcast,
			Payload: []byte(`{"event":"new_message","data":{}}`),
		}))
	}
}
