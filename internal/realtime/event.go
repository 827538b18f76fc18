package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags a routed event
type Kind string

const (
	KindDirectChat        Kind = "direct-chat"
	KindGroupChat         Kind = "group-chat"
	KindCallOffer         Kind = "call-signal-offer"
	KindCallAnswer        Kind = "call-signal-answer"
	KindCallCandidate     Kind = "call-signal-candidate"
	KindCallSignal        Kind = "call-signal-generic"
	KindMessageDeleted    Kind = "message-deleted"
	KindGroupMemberJoined Kind = "group-member-joined"
	KindGroupMemberLeft   Kind = "group-member-left"
)

// IsGroup reports whether events of this kind fan out to a group
func (k Kind) IsGroup() bool {
	switch k {
	case KindGroupChat, KindGroupMemberJoined, KindGroupMemberLeft:
		return true
	}
	return false
}

// IsSignal reports whether this kind is a call-signaling message
func (k Kind) IsSignal() bool {
	switch k {
	case KindCallOffer, KindCallAnswer, KindCallCandidate, KindCallSignal:
		return true
	}
	return false
}

func (k Kind) valid() bool {
	switch k {
	case KindDirectChat, KindMessageDeleted:
		return true
	}
	return k.IsGroup() || k.IsSignal()
}

var ErrInvalidEvent = errors.New("realtime: invalid event")

// Event is a tagged payload addressed to one identity or one group.
// Body is carried as-is and never inspected.
type Event struct {
	Kind          Kind            `json:"kind"`
	SenderID      uuid.UUID       `json:"sender_id"`
	TargetID      uuid.UUID       `json:"target_id,omitempty"` // affected user on group events
	GroupID       uuid.UUID       `json:"group_id,omitempty"`
	IncludeSender bool            `json:"include_sender,omitempty"`
	Body          json.RawMessage `json:"body,omitempty"`
}

// Validate checks addressing only
func (e *Event) Validate() error {
	if !e.Kind.valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.Kind.IsGroup() {
		if e.GroupID == uuid.Nil {
			return fmt.Errorf("%w: group event without group_id", ErrInvalidEvent)
		}
		return nil
	}
	if e.TargetID == uuid.Nil {
		return fmt.Errorf("%w: direct event without target_id", ErrInvalidEvent)
	}
	return nil
}

// Envelope is the frame written to a client connection
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewEnvelope marshals payload into a frame stamped with the current time
func NewEnvelope(eventType string, payload interface{}) (*Envelope, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:      eventType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// DirectPayload is the frame payload for direct-addressed chat events
type DirectPayload struct {
	SenderID uuid.UUID       `json:"sender_id"`
	TargetID uuid.UUID       `json:"target_id"`
	Body     json.RawMessage `json:"body"`
}

// GroupPayload is the frame payload for group events
type GroupPayload struct {
	SenderID uuid.UUID       `json:"sender_id"`
	GroupID  uuid.UUID       `json:"group_id"`
	Body     json.RawMessage `json:"body"`
}

// SignalPayload is the frame payload for relayed call signals
type SignalPayload struct {
	FromID uuid.UUID       `json:"from_id"`
	ToID   uuid.UUID       `json:"to_id"`
	Signal json.RawMessage `json:"signal"`
}

// Encode builds the wire frame for the event
func (e *Event) Encode() ([]byte, error) {
	body := e.Body
	if len(body) == 0 {
		body = json.RawMessage("null")
	}

	var payload interface{}
	switch {
	case e.Kind.IsGroup():
		payload = GroupPayload{SenderID: e.SenderID, GroupID: e.GroupID, Body: body}
	case e.Kind.IsSignal():
		payload = SignalPayload{FromID: e.SenderID, ToID: e.TargetID, Signal: body}
	default:
		payload = DirectPayload{SenderID: e.SenderID, TargetID: e.TargetID, Body: body}
	}

	env, err := NewEnvelope(string(e.Kind), payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Kind, err)
	}
	return json.Marshal(env)
}
