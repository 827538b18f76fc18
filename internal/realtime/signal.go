package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SignalKind names one step of the peer negotiation
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
	SignalGeneric   SignalKind = "signal"
)

// EventKind maps a signal kind to its routed event kind
func (k SignalKind) EventKind() (Kind, bool) {
	switch k {
	case SignalOffer:
		return KindCallOffer, true
	case SignalAnswer:
		return KindCallAnswer, true
	case SignalCandidate:
		return KindCallCandidate, true
	case SignalGeneric:
		return KindCallSignal, true
	}
	return "", false
}

var ErrInvalidSignal = errors.New("realtime: invalid signal")

// SignalRelay forwards opaque call-signaling payloads between two parties.
// It does not track call state; a missing callee is a silent drop.
type SignalRelay struct {
	router *Router
	logger *slog.Logger
}

func NewSignalRelay(router *Router, logger *slog.Logger) *SignalRelay {
	return &SignalRelay{
		router: router,
		logger: logger.With("component", "signal_relay"),
	}
}

// Relay sends payload from one party to the other. The returned bool
// reports whether the target's connection accepted the frame; the error is
// only set for malformed addressing or an unknown kind.
func (s *SignalRelay) Relay(ctx context.Context, from, to uuid.UUID, kind SignalKind, payload json.RawMessage) (bool, error) {
	eventKind, ok := kind.EventKind()
	if !ok {
		return false, fmt.Errorf("%w: unknown kind %q", ErrInvalidSignal, kind)
	}
	if to == uuid.Nil {
		return false, fmt.Errorf("%w: missing target", ErrInvalidSignal)
	}
	if to == from {
		return false, fmt.Errorf("%w: cannot signal yourself", ErrInvalidSignal)
	}

	// Candidates without content are dropped rather than forwarded.
	if kind == SignalCandidate && isEmptyJSON(payload) {
		s.logger.DebugContext(ctx, "empty candidate dropped", "from", from, "to", to)
		return false, nil
	}

	ev := &Event{
		Kind:     eventKind,
		SenderID: from,
		TargetID: to,
		Body:     payload,
	}
	frame, err := ev.Encode()
	if err != nil {
		return false, err
	}

	delivered := s.router.routeDirect(ctx, eventKind, from, to, frame)
	s.logger.DebugContext(ctx, "signal relayed",
		"kind", kind,
		"from", from,
		"to", to,
		"delivered", delivered,
	)
	return delivered, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte(`""`))
}
