package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/observer/chatwave/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForFrames(t *testing.T, c *recordingConn, n int) [][]byte {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.received()) >= n
	}, time.Second, 5*time.Millisecond)
	return c.received()
}

func TestBridge_DirectEventReachesRecipient(t *testing.T) {
	ps := pubsub.NewMemoryPubSub()
	defer ps.Close()

	reg, router, _ := newTestRouter(nil)
	bridge := NewBridge(ps, router, testLogger())
	require.NoError(t, bridge.Start(context.Background()))
	defer bridge.Stop()

	alice, bob := uuid.New(), uuid.New()
	bobConn := newRecordingConn(bob)
	reg.Register(bob, bobConn)

	notifier := NewPubSubNotifier(ps)
	err := notifier.NotifyDirect(context.Background(), KindDirectChat, alice, bob, map[string]string{"text": "hi"})
	require.NoError(t, err)

	frames := waitForFrames(t, bobConn, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(frames[0], &env))
	var payload DirectPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, alice, payload.SenderID)
	assert.JSONEq(t, `{"text":"hi"}`, string(payload.Body))
}

func TestBridge_PreservesOrder(t *testing.T) {
	ps := pubsub.NewMemoryPubSub()
	defer ps.Close()

	reg, router, _ := newTestRouter(nil)
	bridge := NewBridge(ps, router, testLogger())
	require.NoError(t, bridge.Start(context.Background()))
	defer bridge.Stop()

	alice, bob := uuid.New(), uuid.New()
	bobConn := newRecordingConn(bob)
	reg.Register(bob, bobConn)

	notifier := NewPubSubNotifier(ps)
	for i := 0; i < 20; i++ {
		require.NoError(t, notifier.NotifyDirect(context.Background(), KindDirectChat, alice, bob, i))
	}

	frames := waitForFrames(t, bobConn, 20)
	for i, f := range frames {
		var env Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		var payload DirectPayload
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		assert.JSONEq(t, string(mustJSON(t, i)), string(payload.Body))
	}
}

func TestBridge_GroupEventHonorsIncludeSender(t *testing.T) {
	ps := pubsub.NewMemoryPubSub()
	defer ps.Close()

	a, b := uuid.New(), uuid.New()
	group := uuid.New()
	store := &staticMembers{groups: map[uuid.UUID][]uuid.UUID{group: {a, b}}}
	reg, router, _ := newTestRouter(store)
	bridge := NewBridge(ps, router, testLogger())
	require.NoError(t, bridge.Start(context.Background()))
	defer bridge.Stop()

	aConn := newRecordingConn(a)
	bConn := newRecordingConn(b)
	reg.Register(a, aConn)
	reg.Register(b, bConn)

	notifier := NewPubSubNotifier(ps)
	err := notifier.NotifyGroup(context.Background(), KindGroupChat, a, group, "hello", GroupOptions{IncludeSender: true})
	require.NoError(t, err)

	waitForFrames(t, aConn, 1)
	waitForFrames(t, bConn, 1)
}

func TestNotifier_RejectsUnaddressedEvent(t *testing.T) {
	ps := pubsub.NewMemoryPubSub()
	defer ps.Close()

	notifier := NewPubSubNotifier(ps)
	err := notifier.NotifyDirect(context.Background(), KindDirectChat, uuid.New(), uuid.Nil, "x")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestBridge_StopWithoutStart(t *testing.T) {
	bridge := NewBridge(pubsub.NewMemoryPubSub(), nil, testLogger())
	assert.NoError(t, bridge.Stop())
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
