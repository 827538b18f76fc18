package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/metrics"
	"github.com/observer/chatwave/internal/realtime"
)

// FrameLimiter limits inbound frames per identity
type FrameLimiter interface {
	Allow(userID uuid.UUID) bool
}

// Options tunes the handler
type Options struct {
	SendBuffer     int
	AllowedOrigins []string
	Limiter        FrameLimiter
}

// Handler authenticates, upgrades and serves WebSocket connections.
// Each connection is registered under its principal for its lifetime.
type Handler struct {
	authn    auth.Authenticator
	registry *realtime.Registry
	relay    *realtime.SignalRelay
	metrics  *metrics.Metrics
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHandler creates a WebSocket handler
func NewHandler(authn auth.Authenticator, registry *realtime.Registry, relay *realtime.SignalRelay, m *metrics.Metrics, opts Options, logger *slog.Logger) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		authn:    authn,
		registry: registry,
		relay:    relay,
		metrics:  m,
		opts:     opts,
		logger:   logger.With("component", "websocket"),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	// No list configured: allow all origins (development)
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP authenticates the request, upgrades it and serves the
// connection until it ends
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authn.Authenticate(auth.TokenFromRequest(r))
	if err != nil {
		reason := auth.FailureReason(err)
		h.metrics.AuthFailed(reason)
		h.logger.Info("websocket authentication failed",
			"reason", reason,
			"remote_addr", r.RemoteAddr,
		)
		auth.WriteUnauthorized(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, principal, h.opts.SendBuffer, h.logger)
	client.OnClose(func(c *Client) {
		h.registry.Unregister(c.UserID(), c)
	})
	h.registry.Register(principal.UserID, client)

	if hello, err := NewMessage(EventTypeHello, HelloPayload{
		UserID:    principal.UserID,
		Username:  principal.Username,
		ExpiresAt: principal.ExpiresAt,
	}); err == nil {
		client.Send(hello)
	}

	// The request context ends when ServeHTTP returns after upgrade, so
	// connections hang off the handler's own context
	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-client.Done():
		}
	}()

	go client.WritePump(ctx)
	client.ReadPump(ctx, h.handleMessage) // Block here until client disconnects
}

// Shutdown closes every connection served by this handler
func (h *Handler) Shutdown() {
	h.cancel()
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, msg *Message) {
	if h.opts.Limiter != nil && !h.opts.Limiter.Allow(c.UserID()) {
		c.sendError("rate_limited", "Too many messages")
		return
	}

	if msg.Type == EventTypePing {
		if pong, err := NewMessage(EventTypePong, nil); err == nil {
			c.Send(pong)
		}
		return
	}

	kind, ok := signalKinds[msg.Type]
	if !ok {
		c.sendError("unknown_event", "Unknown event type: "+msg.Type)
		return
	}
	h.handleSignal(ctx, c, kind, msg.Payload)
}

func (h *Handler) handleSignal(ctx context.Context, c *Client, kind realtime.SignalKind, payload json.RawMessage) {
	var p SignalFramePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendError("invalid_payload", "Invalid signal payload")
		return
	}

	to, err := p.Target()
	if err != nil {
		c.sendError("invalid_payload", "Invalid target id")
		return
	}

	// The sender is always the authenticated identity
	relayCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := h.relay.Relay(relayCtx, c.UserID(), to, kind, p.Body(kind)); err != nil {
		if errors.Is(err, realtime.ErrInvalidSignal) {
			c.sendError("invalid_signal", err.Error())
			return
		}
		h.logger.Error("signal relay failed", "error", err, "kind", kind)
		c.sendError("internal_error", "Failed to relay signal")
	}
}
