package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

const eventTypeMetadataKey = "event_type"

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	Close() error
}

// watermillDispatcher publishes each event type on its own watermill topic.
type watermillDispatcher struct {
	ctx        context.Context
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewDispatcher wires a dispatcher over an existing watermill publisher and
// subscriber. Subscriptions stop when ctx is cancelled or Close is called.
func NewDispatcher(ctx context.Context, pub message.Publisher, sub message.Subscriber, logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &watermillDispatcher{ctx: ctx, publisher: pub, subscriber: sub, logger: logger}
}

// NewInMemoryDispatcher creates a dispatcher over a gochannel pub/sub.
func NewInMemoryDispatcher(ctx context.Context, logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, NewWatermillLogger(logger))
	return NewDispatcher(ctx, pubSub, pubSub, logger)
}

// Publish hands the event to the topic named after its type.
func (d *watermillDispatcher) Publish(ctx context.Context, event Event) error {
	if event.Type == "" {
		return errors.New("event type is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(event.ID, payload)
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	msg.Metadata.Set(eventTypeMetadataKey, string(event.Type))
	msg.SetContext(ctx)
	return d.publisher.Publish(string(event.Type), msg)
}

// Subscribe consumes the event type's topic in a background goroutine.
// Handler errors are logged and the message is acked so one bad event
// never blocks the topic.
func (d *watermillDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	messages, err := d.subscriber.Subscribe(d.ctx, string(eventType))
	if err != nil {
		d.logger.Error("subscribe failed", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				d.logger.Warn("dropping undecodable event", zap.String("message_id", msg.UUID), zap.Error(err))
				msg.Ack()
				continue
			}
			if err := handler(d.ctx, event); err != nil {
				d.logger.Warn("event handler failed",
					zap.String("event_type", string(event.Type)),
					zap.String("event_id", event.ID),
					zap.Error(err))
			}
			msg.Ack()
		}
	}()
}

// Close shuts the pub/sub down and waits for subscriber goroutines to drain.
func (d *watermillDispatcher) Close() error {
	err := d.publisher.Close()
	if any(d.subscriber) != any(d.publisher) {
		err = errors.Join(err, d.subscriber.Close())
	}
	d.wg.Wait()
	return err
}
