package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/observer/chatwave/internal/pubsub"
)

// Bridge feeds events from the pub/sub events topic into a Router
type Bridge struct {
	ps     pubsub.PubSub
	router *Router
	sub    pubsub.Subscription
	logger *slog.Logger
}

func NewBridge(ps pubsub.PubSub, router *Router, logger *slog.Logger) *Bridge {
	return &Bridge{
		ps:     ps,
		router: router,
		logger: logger.With("component", "bridge"),
	}
}

// Start subscribes to the events topic
func (b *Bridge) Start(ctx context.Context) error {
	sub, err := b.ps.Subscribe(ctx, pubsub.Topics.Events(), b.handle)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	b.sub = sub
	b.logger.Info("bridge started", "topic", pubsub.Topics.Events())
	return nil
}

// Stop ends the subscription
func (b *Bridge) Stop() error {
	if b.sub == nil {
		return nil
	}
	err := b.sub.Unsubscribe()
	b.sub = nil
	return err
}

func (b *Bridge) handle(ctx context.Context, msg *pubsub.Message) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		b.logger.Error("failed to decode event", "error", err, "type", msg.Type)
		return
	}

	if err := b.router.Dispatch(ctx, &ev); err != nil {
		b.logger.Warn("dispatch failed", "error", err, "kind", ev.Kind)
	}
}
