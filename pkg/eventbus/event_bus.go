// Package eventbus abstracts the message channel used to fan out
// lifecycle events and dispatch commands to workers.
package eventbus

import (
	"context"

	"github.com/credenflow/credenflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventHandler func(ctx context.Context, event any) error

type EventPublisher interface {
	// Publish sends an event keyed by workflow or execution ID so
	// related events land on the same partition.
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber

	Close() error
	GenerateID() string
}
