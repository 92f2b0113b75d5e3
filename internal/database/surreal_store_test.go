package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/courier/pkg/protocol"
)

func TestSurrealStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewSurrealStore(db)

	wipe := func() {
		_, _ = surreal.Query[any](ctx, db, "DELETE messages; DELETE subscriptions; DELETE consumptions", nil)
	}

	t.Run("upsert replaces by (session, topic)", func(t *testing.T) {
		t.Cleanup(wipe)

		require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
			SessionID: "s1", Consumer: "alice", Topic: "sport", ConnectedAt: 1,
		}))
		require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
			SessionID: "s1", Consumer: "alice", Topic: "sport", ConnectedAt: 2,
		}))

		subs, err := store.ListSubscriptions(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, 2.0, subs[0].ConnectedAt)
	})

	t.Run("delete returns removed rows atomically", func(t *testing.T) {
		t.Cleanup(wipe)

		for _, topic := range []string{"sport", "news"} {
			require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
				SessionID: "s1", Consumer: "alice", Topic: topic, ConnectedAt: protocol.Now(),
			}))
		}
		require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
			SessionID: "s2", Consumer: "bob", Topic: "sport", ConnectedAt: protocol.Now(),
		}))

		removed, err := store.DeleteSessionSubscriptions(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, removed, 2)

		subs, err := store.ListSubscriptions(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "s2", subs[0].SessionID)
	})

	t.Run("message payload round-trips byte-for-byte", func(t *testing.T) {
		t.Cleanup(wipe)

		payload := json.RawMessage(`{"score":"1-0"}`)
		require.NoError(t, store.InsertMessage(ctx, protocol.Message{
			Topic: "sport", MessageID: "m1", Payload: payload, Producer: "bot", Timestamp: protocol.Now(),
		}))

		msgs, err := store.ListMessages(ctx)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, string(payload), string(msgs[0].Payload))
	})

	t.Run("duplicate message_id is rejected by the unique index", func(t *testing.T) {
		t.Cleanup(wipe)

		msg := protocol.Message{
			Topic: "sport", MessageID: "dup", Payload: json.RawMessage(`"x"`),
			Producer: "bot", Timestamp: protocol.Now(),
		}
		require.NoError(t, store.InsertMessage(ctx, msg))
		assert.Error(t, store.InsertMessage(ctx, msg))
	})

	t.Run("listings are newest first", func(t *testing.T) {
		t.Cleanup(wipe)

		for i, id := range []string{"m1", "m2", "m3"} {
			require.NoError(t, store.InsertMessage(ctx, protocol.Message{
				Topic: "sport", MessageID: id, Payload: json.RawMessage(`"x"`),
				Producer: "bot", Timestamp: float64(i + 1),
			}))
		}

		msgs, err := store.ListMessages(ctx)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "m3", msgs[0].MessageID)
		assert.Equal(t, "m1", msgs[2].MessageID)
	})

	t.Run("consumptions are a log keyed by nothing", func(t *testing.T) {
		t.Cleanup(wipe)

		for _, consumer := range []string{"alice", "bob"} {
			require.NoError(t, store.InsertConsumption(ctx, protocol.Consumption{
				Consumer: consumer, Topic: "sport", MessageID: "m1",
				Payload: json.RawMessage(`"x"`), Timestamp: protocol.Now(),
			}))
		}

		events, err := store.ListConsumptions(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})
}
