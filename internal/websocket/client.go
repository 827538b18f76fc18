package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/observer/chatwave/internal/auth"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer (64KB covers SDP offers)
	maxMessageSize = 65536

	defaultSendBuffer = 256
)

// Client is one authenticated WebSocket connection. It satisfies
// realtime.Conn.
type Client struct {
	id       uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	userID   uuid.UUID
	username string
	logger   *slog.Logger

	closeOnce sync.Once
	onClose   func(*Client)
}

// NewClient creates a client bound to principal. conn may be nil in tests.
func NewClient(conn *websocket.Conn, principal *auth.Principal, sendBuffer int, logger *slog.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	id := uuid.New()
	return &Client{
		id:       id,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		userID:   principal.UserID,
		username: principal.Username,
		logger:   logger.With("conn_id", id, "user_id", principal.UserID),
	}
}

// OnClose sets the hook run exactly once when the client closes.
// It must be set before the pumps start.
func (c *Client) OnClose(fn func(*Client)) {
	c.onClose = fn
}

// ID returns the connection's unique id
func (c *Client) ID() uuid.UUID {
	return c.id
}

// UserID returns the client's user ID
func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// Username returns the client's username
func (c *Client) Username() string {
	return c.username
}

// Done is closed when the client closes
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Deliver queues a frame without blocking. It returns false once the
// client is closed or when the buffer is full.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		// Buffer full, drop message
		c.logger.Warn("client send buffer full, dropping message")
		return false
	}
}

// Send marshals msg and queues it
func (c *Client) Send(msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "error", err, "type", msg.Type)
		return false
	}
	return c.Deliver(data)
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	msg, _ := NewMessage(EventTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
	c.Send(msg)
}

// Close tears the connection down. Safe to call from any goroutine, any
// number of times; the OnClose hook runs once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		if c.onClose != nil {
			c.onClose(c)
		}
		c.logger.Debug("client closed")
	})
}

// ReadPump reads frames until the connection fails or ctx ends, passing
// each decoded message to handle. It closes the client on return.
func (c *Client) ReadPump(ctx context.Context, handle func(context.Context, *Client, *Message)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					c.logger.Warn("websocket read error", "error", err)
				}
				return
			}

			// Parse message
			var msg Message
			if err := json.Unmarshal(message, &msg); err != nil {
				c.sendError("invalid_message", "Failed to parse message")
				continue
			}

			handle(ctx, c, &msg)
		}
	}
}

// WritePump drains the send queue to the connection in FIFO order and
// keeps the peer alive with pings. It closes the client on return.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.writeClose()
			return
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
}
