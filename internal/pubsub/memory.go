package pubsub

import (
	"context"
	"log/slog"
	"sync"
)

// memoryQueueSize bounds how far a subscriber may lag before Publish blocks
const memoryQueueSize = 1024

// MemoryPubSub delivers messages within one process. Each subscription owns
// a queue drained by its own goroutine, so a handler sees messages one at a
// time in publish order and a slow handler never stalls other subscribers.
type MemoryPubSub struct {
	mu     sync.RWMutex
	topics map[string][]*memorySubscription
	closed bool
	logger *slog.Logger
}

type memorySubscription struct {
	owner   *MemoryPubSub
	topic   string
	handler Handler
	queue   chan *Message
	quit    chan struct{}
	once    sync.Once
}

// NewMemoryPubSub creates an empty in-process broker
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{
		topics: make(map[string][]*memorySubscription),
		logger: slog.Default().With("component", "pubsub", "backend", BackendMemory),
	}
}

// Publish enqueues msg for every subscriber of topic. It blocks only while a
// subscriber's queue is full, and gives up when ctx ends.
func (ps *MemoryPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
	ps.mu.RLock()
	if ps.closed {
		ps.mu.RUnlock()
		return ErrClosed
	}
	targets := append([]*memorySubscription(nil), ps.topics[topic]...)
	ps.mu.RUnlock()

	if len(targets) == 0 {
		ps.logger.Debug("publish without subscribers", "topic", topic, "msg_type", msg.Type)
		return nil
	}

	for _, s := range targets {
		select {
		case s.queue <- msg:
		case <-s.quit:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe starts delivering topic's messages to handler
func (ps *MemoryPubSub) Subscribe(_ context.Context, topic string, handler Handler) (Subscription, error) {
	s := &memorySubscription{
		owner:   ps,
		topic:   topic,
		handler: handler,
		queue:   make(chan *Message, memoryQueueSize),
		quit:    make(chan struct{}),
	}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil, ErrClosed
	}
	ps.topics[topic] = append(ps.topics[topic], s)
	ps.mu.Unlock()

	go s.drain()
	return s, nil
}

// Close stops every subscription. Later calls to Publish and Subscribe
// return ErrClosed.
func (ps *MemoryPubSub) Close() error {
	ps.mu.Lock()
	all := ps.topics
	ps.topics = make(map[string][]*memorySubscription)
	ps.closed = true
	ps.mu.Unlock()

	for _, subs := range all {
		for _, s := range subs {
			s.halt()
		}
	}
	return nil
}

// SubscriberCount reports how many subscriptions topic has
func (ps *MemoryPubSub) SubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.topics[topic])
}

func (ps *MemoryPubSub) remove(s *memorySubscription) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	subs := ps.topics[s.topic]
	for i, candidate := range subs {
		if candidate == s {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(ps.topics, s.topic)
		return
	}
	ps.topics[s.topic] = subs
}

func (s *memorySubscription) Unsubscribe() error {
	s.owner.remove(s)
	s.halt()
	return nil
}

func (s *memorySubscription) halt() {
	s.once.Do(func() { close(s.quit) })
}

func (s *memorySubscription) drain() {
	ctx := context.Background()
	for {
		select {
		case <-s.quit:
			return
		case msg := <-s.queue:
			s.handler(ctx, msg)
		}
	}
}
