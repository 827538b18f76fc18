// Package pubsub carries relay events between the API layer and the
// connection router. The in-memory backend serves a single instance; the
// Redis and NATS backends let several instances share one event stream,
// each routing to its own local connections.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by Publish and Subscribe after Close
var ErrClosed = errors.New("pubsub: closed")

// Message represents a pub/sub message with typed payload
type Message struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler is a callback for processing messages
type Handler func(ctx context.Context, msg *Message)

// Subscription represents an active subscription that can be closed
type Subscription interface {
	// Unsubscribe removes the subscription
	Unsubscribe() error
}

// PubSub defines the interface for publish/subscribe operations.
// All implementations must be safe for concurrent use, and must call a
// subscription's handler sequentially in publish order.
type PubSub interface {
	// Publish sends a message to all subscribers of the given topic.
	Publish(ctx context.Context, topic string, msg *Message) error

	// Subscribe registers a handler for messages on the given topic.
	Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error)

	// Close shuts down the pub/sub system and releases resources.
	Close() error
}

// Backend names
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

// New opens the backend named by kind. url is ignored for memory.
func New(kind, url string) (PubSub, error) {
	switch kind {
	case "", BackendMemory:
		return NewMemoryPubSub(), nil
	case BackendRedis:
		return NewRedisPubSub(url)
	case BackendNATS:
		return NewNATSPubSub(url)
	default:
		return nil, fmt.Errorf("unknown pubsub backend %q", kind)
	}
}

// TopicBuilder names the topics chatwave publishes on
type TopicBuilder struct{}

// Events is the topic routed relay events travel on
func (TopicBuilder) Events() string {
	return "chatwave.events"
}

// Topics is the shared TopicBuilder
var Topics = TopicBuilder{}
