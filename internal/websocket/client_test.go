package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observer/chatwave/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(buffer int) *Client {
	return NewClient(nil, &auth.Principal{UserID: uuid.New(), Username: "alice"}, buffer, testLogger())
}

// =============================================================================
// Identity Tests
// =============================================================================

func TestClient_Identity(t *testing.T) {
	userID := uuid.New()
	client := NewClient(nil, &auth.Principal{UserID: userID, Username: "alice"}, 0, testLogger())

	assert.Equal(t, userID, client.UserID())
	assert.Equal(t, "alice", client.Username())
	assert.NotEqual(t, uuid.Nil, client.ID())
	assert.Equal(t, defaultSendBuffer, cap(client.send))
}

func TestClient_IDsAreUnique(t *testing.T) {
	p := &auth.Principal{UserID: uuid.New()}
	a := NewClient(nil, p, 1, testLogger())
	b := NewClient(nil, p, 1, testLogger())

	assert.NotEqual(t, a.ID(), b.ID())
}

// =============================================================================
// Deliver Tests
// =============================================================================

func TestClient_Deliver_Normal(t *testing.T) {
	client := newTestClient(4)

	assert.True(t, client.Deliver([]byte("one")))
	assert.True(t, client.Deliver([]byte("two")))

	assert.Equal(t, "one", string(<-client.send))
	assert.Equal(t, "two", string(<-client.send))
}

func TestClient_Deliver_BufferFull(t *testing.T) {
	client := newTestClient(1)

	assert.True(t, client.Deliver([]byte("first")))
	// Buffer full, second frame is dropped without blocking
	assert.False(t, client.Deliver([]byte("second")))
}

func TestClient_Deliver_AfterClose(t *testing.T) {
	client := newTestClient(4)
	client.Close()

	assert.False(t, client.Deliver([]byte("late")))
	assert.Empty(t, client.send)
}

func TestClient_Deliver_ConcurrentWithClose(t *testing.T) {
	client := newTestClient(1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				client.Deliver([]byte("x"))
			}
		}()
	}
	client.Close()

	assert.NotPanics(t, wg.Wait)
}

// =============================================================================
// Close Tests
// =============================================================================

func TestClient_Close_RunsHookOnce(t *testing.T) {
	client := newTestClient(1)
	var calls atomic.Int32
	client.OnClose(func(c *Client) {
		assert.Same(t, client, c)
		calls.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	select {
	case <-client.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

// =============================================================================
// Send Tests
// =============================================================================

func TestClient_Send(t *testing.T) {
	client := newTestClient(4)

	msg, err := NewMessage("test.event", map[string]string{"key": "value"})
	require.NoError(t, err)
	assert.True(t, client.Send(msg))

	var decoded Message
	require.NoError(t, json.Unmarshal(<-client.send, &decoded))
	assert.Equal(t, "test.event", decoded.Type)
}

func TestClient_SendError(t *testing.T) {
	client := newTestClient(4)

	client.sendError("test_code", "test message")

	select {
	case data := <-client.send:
		assert.Contains(t, string(data), "error")
		assert.Contains(t, string(data), "test_code")
		assert.Contains(t, string(data), "test message")
	default:
		t.Fatal("error message was not queued")
	}
}
