package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/logger"
)

// Channel is the part of *amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Publisher struct {
	ch    Channel
	queue string
}

func NewPublisher(ch Channel, queueName string) *Publisher {
	return &Publisher{ch: ch, queue: queueName}
}

// Record publishes a click event for the analytics-worker. The device class
// is derived here so the worker stores exactly what the redirect saw.
func (p *Publisher) Record(ctx context.Context, code string, at time.Time, ip, userAgent string) error {
	event := internal.NewClickEvent(code, at, ip, userAgent)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		"", p.queue, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	logger.FromContext(ctx).Debug("published click event", "short_code", code, "device", event.DeviceClass)
	return nil
}
