package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/observer/chatwave/internal/metrics"
)

// MembershipStore resolves group membership at fan-out time
type MembershipStore interface {
	// MembersOf returns the member identities of groupID in store order.
	MembersOf(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

// GroupOptions controls a single group broadcast
type GroupOptions struct {
	// IncludeSender echoes the event to the sender's own connection.
	IncludeSender bool
	// Affected also receives the event when it is not a member at fan-out
	// time, such as a user who was just removed.
	Affected uuid.UUID
}

// Router delivers frames to live connections found in the Registry.
// Delivery is best-effort: an identity without a live connection is
// skipped without error and nothing is queued for it.
type Router struct {
	registry *Registry
	groups   MembershipStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRouter creates a router. groups may be nil if group fan-out is unused.
func NewRouter(registry *Registry, groups MembershipStore, m *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		groups:   groups,
		metrics:  m,
		logger:   logger.With("component", "router"),
	}
}

// RouteDirect delivers payload to target's live connection, if any.
// Returns true when the connection accepted the frame.
func (r *Router) RouteDirect(ctx context.Context, sender, target uuid.UUID, payload []byte) bool {
	return r.routeDirect(ctx, KindDirectChat, sender, target, payload)
}

// RouteGroup delivers payload to every connected member of groupID.
// A member without a connection never affects delivery to the others.
// The only error is a failed membership lookup.
func (r *Router) RouteGroup(ctx context.Context, sender, groupID uuid.UUID, payload []byte, opts GroupOptions) (int, error) {
	return r.routeGroup(ctx, KindGroupChat, sender, groupID, payload, opts)
}

// Dispatch encodes ev and routes it by kind
func (r *Router) Dispatch(ctx context.Context, ev *Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	frame, err := ev.Encode()
	if err != nil {
		return err
	}

	if ev.Kind.IsGroup() {
		opts := GroupOptions{IncludeSender: ev.IncludeSender, Affected: ev.TargetID}
		_, err := r.routeGroup(ctx, ev.Kind, ev.SenderID, ev.GroupID, frame, opts)
		return err
	}
	r.routeDirect(ctx, ev.Kind, ev.SenderID, ev.TargetID, frame)
	return nil
}

func (r *Router) routeDirect(ctx context.Context, kind Kind, sender, target uuid.UUID, payload []byte) bool {
	conn, ok := r.registry.Lookup(target)
	if !ok {
		r.metrics.Dropped(string(kind), metrics.ReasonRecipientUnavailable)
		r.logger.DebugContext(ctx, "recipient unavailable, dropping event",
			"kind", kind,
			"sender_id", sender,
			"target_id", target,
		)
		return false
	}

	if !conn.Deliver(payload) {
		r.metrics.Dropped(string(kind), metrics.ReasonConnectionClosed)
		r.logger.DebugContext(ctx, "connection did not accept event",
			"kind", kind,
			"target_id", target,
			"conn_id", conn.ID(),
		)
		return false
	}

	r.metrics.Delivered(string(kind))
	return true
}

func (r *Router) routeGroup(ctx context.Context, kind Kind, sender, groupID uuid.UUID, payload []byte, opts GroupOptions) (int, error) {
	if r.groups == nil {
		return 0, fmt.Errorf("route group %s: no membership store configured", groupID)
	}

	members, err := r.groups.MembersOf(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("resolve members of group %s: %w", groupID, err)
	}
	r.metrics.Fanout(len(members))

	delivered := 0
	affectedIsMember := false
	for _, member := range members {
		if member == opts.Affected {
			affectedIsMember = true
		}
		if member == sender && !opts.IncludeSender {
			continue
		}
		if r.routeDirect(ctx, kind, sender, member, payload) {
			delivered++
		}
	}

	if opts.Affected != uuid.Nil && !affectedIsMember &&
		(opts.Affected != sender || opts.IncludeSender) {
		if r.routeDirect(ctx, kind, sender, opts.Affected, payload) {
			delivered++
		}
	}

	r.logger.DebugContext(ctx, "group fan-out complete",
		"kind", kind,
		"group_id", groupID,
		"members", len(members),
		"delivered", delivered,
	)
	return delivered, nil
}
