// Package queue moves click events from the api-service to the
// analytics-worker over RabbitMQ.
package queue

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// Dial opens a connection and a channel and declares the durable click
// queue on it.
func Dial(url, queueName string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("unable to open RabbitMQ channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare RabbitMQ queue %q: %w", queueName, err)
	}
	return conn, ch, nil
}

// Consume registers a manual-ack consumer. prefetch bounds how many
// unacknowledged deliveries the broker hands out, so it should match the
// batch size.
func Consume(ch *amqp091.Channel, queueName, consumer string, prefetch int) (<-chan amqp091.Delivery, error) {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := ch.Consume(
		queueName,
		consumer,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	return msgs, nil
}
