package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/courier/pkg/protocol"
)

func TestMemoryStoreUpsertReplacesByCompositeKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
		SessionID: "s1", Consumer: "alice", Topic: "sport", ConnectedAt: 1,
	}))
	require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
		SessionID: "s1", Consumer: "alice", Topic: "sport", ConnectedAt: 2,
	}))
	require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
		SessionID: "s2", Consumer: "alice", Topic: "sport", ConnectedAt: 3,
	}))

	subs, err := store.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2, "same (session, topic) replaces, different session does not")

	for _, sub := range subs {
		if sub.SessionID == "s1" {
			assert.Equal(t, 2.0, sub.ConnectedAt)
		}
	}
}

func TestMemoryStoreDeleteReturnsRemovedRows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, topic := range []string{"sport", "news", "weather"} {
		require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
			SessionID: "s1", Consumer: "alice", Topic: topic, ConnectedAt: protocol.Now(),
		}))
	}
	require.NoError(t, store.UpsertSubscription(ctx, protocol.Subscription{
		SessionID: "s2", Consumer: "bob", Topic: "sport", ConnectedAt: protocol.Now(),
	}))

	removed, err := store.DeleteSessionSubscriptions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, removed, 3)
	assert.Equal(t, "news", removed[0].Topic)
	assert.Equal(t, "sport", removed[1].Topic)
	assert.Equal(t, "weather", removed[2].Topic)

	subs, err := store.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "bob", subs[0].Consumer)

	removed, err = store.DeleteSessionSubscriptions(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, removed, "second delete finds nothing")
}

func TestMemoryStoreRejectsDuplicateMessageID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	msg := protocol.Message{
		Topic: "sport", MessageID: "m1",
		Payload: json.RawMessage(`"x"`), Producer: "bot", Timestamp: protocol.Now(),
	}
	require.NoError(t, store.InsertMessage(ctx, msg))
	assert.Error(t, store.InsertMessage(ctx, msg))

	msgs, err := store.ListMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, store.InsertMessage(ctx, protocol.Message{
			Topic: "sport", MessageID: id,
			Payload: json.RawMessage(`"x"`), Producer: "bot", Timestamp: float64(i + 1),
		}))
	}
	for i, consumer := range []string{"alice", "bob"} {
		require.NoError(t, store.InsertConsumption(ctx, protocol.Consumption{
			Consumer: consumer, Topic: "sport", MessageID: "m1",
			Payload: json.RawMessage(`"x"`), Timestamp: float64(i + 1),
		}))
	}

	msgs, err := store.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].MessageID)
	assert.Equal(t, "m1", msgs[2].MessageID)

	events, err := store.ListConsumptions(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "bob", events[0].Consumer)
}

func TestMemoryStoreFaultInjection(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	store.WriteErr = boom
	assert.ErrorIs(t, store.InsertMessage(ctx, protocol.Message{MessageID: "m1"}), boom)
	assert.ErrorIs(t, store.UpsertSubscription(ctx, protocol.Subscription{}), boom)
	store.WriteErr = nil

	store.ReadErr = boom
	_, err := store.ListMessages(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = store.ListSubscriptions(ctx)
	assert.ErrorIs(t, err, boom)
}
