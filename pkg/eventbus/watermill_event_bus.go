package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SoumadeepCh/FlowSync/pkg/events"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// eventFactories maps each event type to its payload constructor. Dispatch
// decodes through this registry; an unregistered type is a wiring bug.
var eventFactories = map[events.EventType]func() any{
	events.ExecutionStartedEvent:   func() any { return &events.ExecutionStarted{} },
	events.ExecutionCompletedEvent: func() any { return &events.ExecutionCompleted{} },
	events.ExecutionFailedEvent:    func() any { return &events.ExecutionFailed{} },
	events.ExecutionCancelledEvent: func() any { return &events.ExecutionCancelled{} },
	events.JobEnqueuedEvent:        func() any { return &events.JobEnqueued{} },
	events.TriggerFiredEvent:       func() any { return &events.TriggerFired{} },
	events.DLQEntryEvent:           func() any { return &events.DLQEntry{} },
}

// WatermillEventBus routes the engine's typed events over a watermill
// publisher/subscriber pair.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	handlers   map[events.EventType][]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		handlers:   make(map[events.EventType][]EventHandler),
	}
}

// NewInProcessBus backs the bus with a single gochannel pub/sub. The
// engine's completion signals and worker wake-ups are process-local, so
// this is the production transport, not just a test double.
func NewInProcessBus(wmLogger watermill.LoggerAdapter) *WatermillEventBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 512},
		wmLogger,
	)

	// GoChannel implements both Publisher and Subscriber.
	return NewWatermillEventBus(pubSub, pubSub)
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Handle appends a handler for the event type. Registration must happen
// before Subscribe.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if _, known := eventFactories[eventType]; !known {
		return fmt.Errorf("cannot handle unregistered event type %q", eventType)
	}

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)

	return nil
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// Subscribe drains the topic, dispatching each message to the registered
// handlers. Messages nobody handles are acked and dropped.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			if err := eb.dispatch(ctx, msg); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) error {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	handlers := eb.handlers[eventType]
	if len(handlers) == 0 {
		return nil
	}

	factory, known := eventFactories[eventType]
	if !known {
		return fmt.Errorf("no payload registered for event type %q", eventType)
	}

	event := factory()
	if err := json.Unmarshal(msg.Payload, event); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}
