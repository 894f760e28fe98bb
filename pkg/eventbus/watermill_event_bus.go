package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/credenflow/credenflow/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// topicFor routes dispatch commands to their own topic so workers can
// consume them independently of the lifecycle feed.
func topicFor(eventType events.EventType) string {
	switch eventType {
	case events.ExecutionRequestedEvent, events.ResumeRequestedEvent:
		return events.CommandTopic
	default:
		return events.Topic
	}
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(topicFor(event.GetType()), msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	for _, topic := range []string{events.Topic, events.CommandTopic} {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go eb.consume(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		var event any

		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		handler, exists := eb.subscriptions[eventType]
		if !exists {
			msg.Ack()

			continue
		}

		switch eventType {
		case events.ExecutionStartedEvent:
			event = &events.ExecutionStarted{}
		case events.ExecutionCompletedEvent:
			event = &events.ExecutionCompleted{}
		case events.ExecutionFailedEvent:
			event = &events.ExecutionFailed{}
		case events.ExecutionPausedEvent:
			event = &events.ExecutionPaused{}
		case events.ExecutionResumedEvent:
			event = &events.ExecutionResumed{}
		case events.StepStartedEvent:
			event = &events.StepStarted{}
		case events.StepCompletedEvent:
			event = &events.StepCompleted{}
		case events.StepFailedEvent:
			event = &events.StepFailed{}
		case events.StepSkippedEvent:
			event = &events.StepSkipped{}
		case events.StepPausedEvent:
			event = &events.StepPaused{}
		case events.ExecutionRequestedEvent:
			event = &events.ExecutionRequested{}
		case events.ResumeRequestedEvent:
			event = &events.ResumeRequested{}
		default:
			msg.Nack()

			continue
		}

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			msg.Nack()

			continue
		}

		err = handler(ctx, event)
		if err != nil {
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
