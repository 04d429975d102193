package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology declares the durable topic exchange every gateway publishes to.
func declareTopology(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

// declareInstanceQueue declares a server-named queue that lives only as long as this consumer
// and binds it to every requested bus channel (routing key = channel name).
func declareInstanceQueue(ch *amqp.Channel, exchange string, channels []string) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare instance queue: %w", err)
	}

	for _, routingKey := range channels {
		if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return "", fmt.Errorf("bind queue %s to %s/%s: %w", q.Name, exchange, routingKey, err)
		}
	}

	return q.Name, nil
}
