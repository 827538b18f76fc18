package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingConn captures every frame it accepts
type recordingConn struct {
	id     uuid.UUID
	userID uuid.UUID

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newRecordingConn(userID uuid.UUID) *recordingConn {
	return &recordingConn{id: uuid.New(), userID: userID}
}

func (c *recordingConn) ID() uuid.UUID     { return c.id }
func (c *recordingConn) UserID() uuid.UUID { return c.userID }

func (c *recordingConn) Deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return true
}

func (c *recordingConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *recordingConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// staticMembers is a MembershipStore backed by a map
type staticMembers struct {
	groups map[uuid.UUID][]uuid.UUID
	err    error
}

func (s *staticMembers) MembersOf(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	if s.err != nil {
		return nil, s.err
	}
	members, ok := s.groups[groupID]
	if !ok {
		return nil, errors.New("group not found")
	}
	return members, nil
}
