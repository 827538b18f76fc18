package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/observer/chatwave/internal/realtime"
)

// Event types for client -> server
const (
	EventTypePing          = "ping"
	EventTypeCallOffer     = "call.offer"
	EventTypeCallAnswer    = "call.answer"
	EventTypeCallCandidate = "call.candidate"
	EventTypeCallSignal    = "call.signal"
)

// Event type aliases kept for older clients
const (
	EventTypeCallUser     = "call-user"
	EventTypeAnswerCall   = "answer-call"
	EventTypeICECandidate = "ice-candidate"
	EventTypeSignal       = "signal"
)

// Event types for server -> client. Routed events use the realtime kinds.
const (
	EventTypeError = "error"
	EventTypeHello = "hello"
	EventTypePong  = "pong"
)

// signalKinds maps inbound frame types to relay kinds
var signalKinds = map[string]realtime.SignalKind{
	EventTypeCallOffer:     realtime.SignalOffer,
	EventTypeCallAnswer:    realtime.SignalAnswer,
	EventTypeCallCandidate: realtime.SignalCandidate,
	EventTypeCallSignal:    realtime.SignalGeneric,
	EventTypeCallUser:      realtime.SignalOffer,
	EventTypeAnswerCall:    realtime.SignalAnswer,
	EventTypeICECandidate:  realtime.SignalCandidate,
	EventTypeSignal:        realtime.SignalGeneric,
}

// Message is the base WebSocket message envelope
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewMessage creates a message with the current timestamp
func NewMessage(eventType string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      eventType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// ============================================================================
// Client -> Server Payloads
// ============================================================================

// SignalFramePayload carries one call-signaling step. The to_id/signal
// form is preferred; to and offer/answer/candidate are accepted from
// older clients. Any from field is ignored.
type SignalFramePayload struct {
	ToID      string          `json:"to_id,omitempty"`
	To        string          `json:"to,omitempty"`
	Signal    json.RawMessage `json:"signal,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Target returns the addressed identity
func (p *SignalFramePayload) Target() (uuid.UUID, error) {
	if p.ToID != "" {
		return uuid.Parse(p.ToID)
	}
	return uuid.Parse(p.To)
}

// Body returns the opaque signal for kind
func (p *SignalFramePayload) Body(kind realtime.SignalKind) json.RawMessage {
	if len(p.Signal) > 0 {
		return p.Signal
	}
	switch kind {
	case realtime.SignalOffer:
		return p.Offer
	case realtime.SignalAnswer:
		return p.Answer
	case realtime.SignalCandidate:
		return p.Candidate
	}
	return nil
}

// ============================================================================
// Server -> Client Payloads
// ============================================================================

// ErrorPayload for error responses
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HelloPayload is sent once the connection is registered
type HelloPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}
