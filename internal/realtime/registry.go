package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/observer/chatwave/internal/metrics"
)

// Conn is one live connection to a client process.
type Conn interface {
	// ID is unique per connection, never reused.
	ID() uuid.UUID
	// UserID is the authenticated identity that owns the connection.
	UserID() uuid.UUID
	// Deliver queues a frame for the client. It must not block and
	// returns false when the frame was not accepted.
	Deliver(frame []byte) bool
}

// Registry maps each identity to its single live connection.
//
// A later Register for the same identity replaces the earlier entry. The
// replaced connection is not closed here: it stays open until its own
// read loop ends, but is no longer reachable for routing.
type Registry struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]Conn
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		conns:   make(map[uuid.UUID]Conn),
		metrics: m,
		logger:  logger.With("component", "registry"),
	}
}

// Register inserts or replaces the entry for userID
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	prev, superseded := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	r.metrics.Registered(superseded)
	if superseded {
		r.logger.Info("connection superseded",
			"user_id", userID,
			"conn_id", conn.ID(),
			"previous_conn_id", prev.ID(),
		)
		return
	}
	r.logger.Debug("connection registered", "user_id", userID, "conn_id", conn.ID())
}

// Lookup returns the current connection for userID
func (r *Registry) Lookup(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Unregister removes the entry for userID only if conn still owns it.
// Returns true when an entry was removed.
func (r *Registry) Unregister(userID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	owned := ok && cur.ID() == conn.ID()
	if owned {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	r.metrics.Unregistered(owned)
	if !owned {
		r.logger.Debug("stale unregister ignored", "user_id", userID, "conn_id", conn.ID())
		return false
	}
	r.logger.Debug("connection unregistered", "user_id", userID, "conn_id", conn.ID())
	return true
}

// IsOnline reports whether userID has a registered connection
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of registered identities
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// OnlineUserIDs returns a snapshot of registered identities
func (r *Registry) OnlineUserIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
