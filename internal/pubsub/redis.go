package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout = 5 * time.Second
	// Buffered messages per subscription before go-redis starts dropping
	redisChannelSize = 1024
)

// RedisPubSub implements PubSub on Redis channels. Every instance receives
// every event and routes it to its own connections.
type RedisPubSub struct {
	client *redis.Client
	mu     sync.Mutex
	subs   map[*redisSubscription]struct{}
	closed bool
	logger *slog.Logger
}

type redisSubscription struct {
	ps     *RedisPubSub
	rps    *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe stops delivery and waits for an in-flight handler to return
func (s *redisSubscription) Unsubscribe() error {
	s.ps.removeSub(s)
	return s.stop()
}

func (s *redisSubscription) stop() error {
	s.cancel()
	err := s.rps.Close()
	<-s.done
	return err
}

// NewRedisPubSub connects to url, e.g. redis://:password@host:port/0
func NewRedisPubSub(url string) (*RedisPubSub, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.ClientName = "chatwave"

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := slog.Default().With("component", "pubsub", "backend", "redis")
	logger.Info("connected to Redis", "addr", opts.Addr)

	return &RedisPubSub{
		client: client,
		subs:   make(map[*redisSubscription]struct{}),
		logger: logger,
	}, nil
}

// Publish sends the message on the channel named by topic
func (ps *RedisPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
	ps.mu.Lock()
	closed := ps.closed
	ps.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	receivers, err := ps.client.Publish(ctx, topic, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	ps.logger.Debug("published", "topic", topic, "msg_type", msg.Type, "receivers", receivers)
	return nil
}

// Subscribe registers handler on the channel. Messages are handled one at a
// time on a single goroutine, so order is kept.
func (ps *RedisPubSub) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, ErrClosed
	}

	rps := ps.client.Subscribe(ctx, topic)
	// Wait for the confirmation so no message published after return is missed
	if _, err := rps.Receive(ctx); err != nil {
		_ = rps.Close()
		return nil, fmt.Errorf("failed to subscribe to redis channel: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	s := &redisSubscription{ps: ps, rps: rps, cancel: cancel, done: make(chan struct{})}
	ps.subs[s] = struct{}{}

	go ps.receive(subCtx, s, topic, handler)

	ps.logger.Debug("subscribed", "topic", topic)
	return s, nil
}

func (ps *RedisPubSub) receive(ctx context.Context, s *redisSubscription, topic string, handler Handler) {
	defer close(s.done)

	ch := s.rps.Channel(redis.WithChannelSize(redisChannelSize))
	for {
		select {
		case <-ctx.Done():
			return
		case rm, ok := <-ch:
			if !ok {
				return
			}

			var msg Message
			if err := json.Unmarshal([]byte(rm.Payload), &msg); err != nil {
				ps.logger.Error("failed to unmarshal message", "error", err, "topic", topic)
				continue
			}
			handler(ctx, &msg)
		}
	}
}

func (ps *RedisPubSub) removeSub(s *redisSubscription) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.subs, s)
}

// Close stops every subscription and closes the client
func (ps *RedisPubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	subs := ps.subs
	ps.subs = make(map[*redisSubscription]struct{})
	ps.mu.Unlock()

	for s := range subs {
		_ = s.stop()
	}

	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	ps.logger.Info("Redis pubsub closed")
	return nil
}
