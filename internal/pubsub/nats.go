package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPubSub implements PubSub on core NATS subjects. Like the Redis
// backend it fans every event out to all instances.
type NATSPubSub struct {
	nc     *nats.Conn
	mu     sync.Mutex
	subs   map[*natsSubscription]struct{}
	closed bool
	logger *slog.Logger
}

type natsSubscription struct {
	ps     *NATSPubSub
	sub    *nats.Subscription
	cancel context.CancelFunc
}

func (s *natsSubscription) Unsubscribe() error {
	s.cancel()
	s.ps.removeSub(s)
	return s.sub.Unsubscribe()
}

// NewNATSPubSub connects to the NATS servers in url (comma separated)
func NewNATSPubSub(url string) (*NATSPubSub, error) {
	logger := slog.Default().With("component", "pubsub", "backend", "nats")

	nc, err := nats.Connect(url,
		nats.Name("chatwave"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected to NATS", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info("connected to NATS", "url", nc.ConnectedUrl())

	return &NATSPubSub{
		nc:     nc,
		subs:   make(map[*natsSubscription]struct{}),
		logger: logger,
	}, nil
}

// Publish sends the message on the subject named by topic
func (ps *NATSPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
	ps.mu.Lock()
	closed := ps.closed
	ps.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := ps.nc.Publish(topic, data); err != nil {
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	return nil
}

// Subscribe registers handler on the subject. nats.go calls a
// subscription's callback from a single goroutine, so order is kept.
func (ps *NATSPubSub) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub, err := ps.nc.Subscribe(topic, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			ps.logger.Error("failed to unmarshal message", "error", err, "subject", m.Subject)
			return
		}
		handler(subCtx, &msg)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to nats subject: %w", err)
	}

	s := &natsSubscription{ps: ps, sub: sub, cancel: cancel}
	ps.subs[s] = struct{}{}

	ps.logger.Debug("subscribed to subject", "subject", topic)
	return s, nil
}

func (ps *NATSPubSub) removeSub(s *natsSubscription) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.subs, s)
}

// Close drains the connection, letting in-flight callbacks finish
func (ps *NATSPubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	for s := range ps.subs {
		s.cancel()
	}
	ps.subs = make(map[*natsSubscription]struct{})
	ps.mu.Unlock()

	if err := ps.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	ps.logger.Info("NATS pubsub closed")
	return nil
}
