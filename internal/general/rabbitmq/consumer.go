package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleet-tracker/internal/general/contracts"
)

const envelopeBuffer = 256

// Subscribe opens a fresh channel on the client, declares this instance's queue and streams
// deliveries as envelopes. Messages are auto-acked. The stream closes when ctx ends or the
// channel dies; the caller re-subscribes after the watcher has reconnected.
func (client *Client) Subscribe(ctx context.Context, channels ...string) (<-chan contracts.Envelope, error) {
	conn, err := client.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	queue, err := declareInstanceQueue(ch, client.exchange, channels)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumerTag (server generated)
		true,  // autoAck
		true,  // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,   // args
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}

	out := make(chan contracts.Envelope, envelopeBuffer)
	go client.forward(ctx, ch, deliveries, out)

	client.logger.Info(client.logCtx, "rabbitmq_subscribed", "Consuming bus channels", map[string]any{
		"queue":    queue,
		"channels": channels,
	})

	return out, nil
}

func (client *Client) forward(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery, out chan<- contracts.Envelope) {
	defer close(out)
	defer ch.Close()

	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.closed:
			return
		case cerr := <-chClosed:
			if cerr != nil {
				client.logger.Warn(client.logCtx, "rabbitmq_subscription_lost", "Subscription channel closed", map[string]any{"reason": cerr.Error()})
			}
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			select {
			case out <- toEnvelope(d):
			case <-ctx.Done():
				return
			}
		}
	}
}

func toEnvelope(d amqp.Delivery) contracts.Envelope {
	return contracts.Envelope{Channel: d.RoutingKey, Payload: d.Body}
}

// Bus publishes through one client and subscribes through another, each on its own connection.
type Bus struct {
	publisher  *Client
	subscriber *Client
}

func NewBus(publisher, subscriber *Client) *Bus {
	return &Bus{publisher: publisher, subscriber: subscriber}
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.publisher.PublishMessage(ctx, channel, payload)
}

func (b *Bus) Subscribe(ctx context.Context, channels ...string) (<-chan contracts.Envelope, error) {
	return b.subscriber.Subscribe(ctx, channels...)
}

// Close shuts down both connections and their watchers.
func (b *Bus) Close() error {
	b.subscriber.Close()
	b.publisher.Close()
	return nil
}
