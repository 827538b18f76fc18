package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/observer/chatwave/internal/pubsub"
)

// Notifier lets API handlers emit events without knowing which instance
// holds the recipient's connection.
type Notifier interface {
	// NotifyDirect emits an event for one identity.
	NotifyDirect(ctx context.Context, kind Kind, sender, target uuid.UUID, body interface{}) error

	// NotifyGroup emits an event for every connected member of a group.
	NotifyGroup(ctx context.Context, kind Kind, sender, groupID uuid.UUID, body interface{}, opts GroupOptions) error
}

// PubSubNotifier implements Notifier by publishing on the events topic.
// A Bridge on each instance turns the messages back into Dispatch calls.
type PubSubNotifier struct {
	ps pubsub.PubSub
}

// NewPubSubNotifier creates a notifier that publishes through ps
func NewPubSubNotifier(ps pubsub.PubSub) *PubSubNotifier {
	return &PubSubNotifier{ps: ps}
}

func (n *PubSubNotifier) NotifyDirect(ctx context.Context, kind Kind, sender, target uuid.UUID, body interface{}) error {
	return n.publish(ctx, kind, body, func(ev *Event) {
		ev.SenderID = sender
		ev.TargetID = target
	})
}

func (n *PubSubNotifier) NotifyGroup(ctx context.Context, kind Kind, sender, groupID uuid.UUID, body interface{}, opts GroupOptions) error {
	return n.publish(ctx, kind, body, func(ev *Event) {
		ev.SenderID = sender
		ev.GroupID = groupID
		ev.TargetID = opts.Affected
		ev.IncludeSender = opts.IncludeSender
	})
}

func (n *PubSubNotifier) publish(ctx context.Context, kind Kind, body interface{}, address func(*Event)) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", kind, err)
	}

	ev := &Event{Kind: kind, Body: bodyBytes}
	address(ev)
	if err := ev.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := &pubsub.Message{
		Topic:   pubsub.Topics.Events(),
		Type:    string(kind),
		Payload: payload,
	}
	return n.ps.Publish(ctx, msg.Topic, msg)
}
