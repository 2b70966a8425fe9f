package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, cfg Config) (*Hub, *event.Log) {
	t.Helper()
	log := event.NewLog()
	h := New(testLogger(), log, nil, cfg)
	log.SetSink(h)
	return h, log
}

func receive(t *testing.T, sub *Subscription) event.Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.C():
		require.True(t, ok, "subscription channel closed")
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return event.Envelope{}
	}
}

func TestSubscribeReceivesSnapshotFirst(t *testing.T) {
	h, log := newTestHub(t, Config{SnapshotSize: 3})
	log.Append(event.KindCreated, 1, "New product Widget added to inventory")
	log.Append(event.KindOrderPlaced, 0, "New order ORD-1 created with total $9.99")

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	env := receive(t, sub)
	require.Equal(t, event.TypeInitial, env.Type)

	var snapshot []event.Event
	require.NoError(t, json.Unmarshal(env.Data, &snapshot))
	require.Len(t, snapshot, 2)
	// Newest first, like the activities endpoint.
	require.Equal(t, uint64(2), snapshot[0].Sequence)
	require.Equal(t, uint64(1), snapshot[1].Sequence)
}

func TestSnapshotPrecedesLiveEvents(t *testing.T) {
	h, log := newTestHub(t, Config{})
	log.Append(event.KindCreated, 1, "New product Widget added to inventory")

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)
	log.Append(event.KindQuantityChanged, 1, "Widget inventory decreased by 2 units")

	first := receive(t, sub)
	require.Equal(t, event.TypeInitial, first.Type)
	second := receive(t, sub)
	require.Equal(t, string(event.KindQuantityChanged), second.Type)
}

func TestPublishPreservesAppendOrder(t *testing.T) {
	h, log := newTestHub(t, Config{SendBuffer: 64})
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)
	receive(t, sub) // snapshot

	for i := 0; i < 20; i++ {
		log.Append(event.KindQuantityChanged, 1, "Widget inventory increased by 1 units")
	}
	for want := uint64(1); want <= 20; want++ {
		env := receive(t, sub)
		var ev event.Event
		require.NoError(t, json.Unmarshal(env.Data, &ev))
		require.Equal(t, want, ev.Sequence)
	}
}

func TestAllSubscribersReceiveEveryEvent(t *testing.T) {
	h, log := newTestHub(t, Config{})
	subs := []*Subscription{h.Subscribe(), h.Subscribe(), h.Subscribe()}
	for _, sub := range subs {
		receive(t, sub) // snapshot
	}

	log.Append(event.KindLowStock, 3, "Widget inventory below reorder level (4 units left)")

	for _, sub := range subs {
		env := receive(t, sub)
		require.Equal(t, string(event.KindLowStock), env.Type)
		var ev event.Event
		require.NoError(t, json.Unmarshal(env.Data, &ev))
		require.Equal(t, uint64(1), ev.Sequence)
		require.Equal(t, int64(3), ev.SubjectID)
	}
}

func TestStalledSubscriberIsDroppedOthersUnaffected(t *testing.T) {
	h, log := newTestHub(t, Config{SendBuffer: 1})
	stalled := h.Subscribe()
	healthy := h.Subscribe()
	defer h.Unsubscribe(healthy)
	receive(t, healthy) // snapshot
	// stalled never drains: its single buffer slot holds the snapshot.

	log.Append(event.KindCreated, 1, "New product Widget added to inventory")

	require.Equal(t, 1, h.Len())
	env := receive(t, healthy)
	require.Equal(t, string(event.KindCreated), env.Type)

	// The dropped subscription's channel is closed.
	select {
	case <-stalled.C():
	case <-time.After(time.Second):
		t.Fatal("stalled subscription channel not drained/closed")
	}
	_, ok := <-stalled.C()
	require.False(t, ok)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	sub := h.Subscribe()
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)
	require.Equal(t, 0, h.Len())
}

func TestReplyDeliversToSubscriberOnly(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)
	receive(t, a)
	receive(t, b)

	pong, err := event.NewEnvelope(event.TypePong, nil)
	require.NoError(t, err)
	h.Reply(a, pong)

	env := receive(t, a)
	require.Equal(t, event.TypePong, env.Type)
	select {
	case env := <-b.C():
		t.Fatalf("unexpected envelope for other subscriber: %v", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
