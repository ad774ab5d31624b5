package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type PubSub interface {
	message.Publisher
	message.Subscriber
}

// Bus routes coordinator events to subscribers over an in-process channel.
type Bus struct {
	pubSub PubSub
	router *message.Router
	logger watermill.LoggerAdapter
}

// Handler handles a typed event.
type Handler[T any] func(ctx context.Context, event *Event[T]) error

// NewBus creates an in-process event bus.
func NewBus() (*Bus, error) {
	logger := watermill.NewStdLogger(false, false)

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
		},
		logger,
	)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	return &Bus{
		pubSub: pubSub,
		router: router,
		logger: logger,
	}, nil
}

// Start runs the router until ctx is cancelled.
func (b *Bus) Start(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Stop closes the router.
func (b *Bus) Stop() error {
	return b.router.Close()
}

// Running reports whether the router has started handling messages.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}

// Publish publishes a typed event on the topic named by its type.
func Publish[T any](b *Bus, ctx context.Context, ev *Event[T]) error {
	eventMsg, err := ev.ToMessage()
	if err != nil {
		return fmt.Errorf("failed to convert event to message: %w", err)
	}

	payload, err := json.Marshal(eventMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := b.pubSub.Publish(string(eventMsg.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe registers a raw message handler for one event type.
func (b *Bus) Subscribe(eventType Type, handlerName string, handler func(msg *message.Message) error) {
	b.router.AddNoPublisherHandler(
		handlerName,
		string(eventType),
		b.pubSub,
		handler,
	)
}

// SubscribeTyped registers a typed handler for one event type.
func SubscribeTyped[T any](b *Bus, eventType Type, handlerName string, handler Handler[T]) {
	b.Subscribe(eventType, handlerName, func(msg *message.Message) error {
		var eventMsg Message
		if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
			return fmt.Errorf("failed to unmarshal event message: %w", err)
		}

		ev, err := FromMessage[T](&eventMsg)
		if err != nil {
			return fmt.Errorf("failed to convert message to event: %w", err)
		}

		return handler(msg.Context(), ev)
	})
}
