package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/logger"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Sink stores a batch of click events and reports how many were kept.
type Sink interface {
	AppendBatch(ctx context.Context, events []internal.ClickEvent) (int, error)
}

// Batcher drains deliveries into the sink, flushing when the batch is full
// or when the interval elapses with pending events. A batch is acked only
// after the sink commits it; a failed batch is requeued.
type Batcher struct {
	sink         Sink
	size         int
	interval     time.Duration
	flushTimeout time.Duration

	events     []internal.ClickEvent
	deliveries []amqp091.Delivery
}

func NewBatcher(sink Sink, size int, interval time.Duration) *Batcher {
	if size <= 0 {
		size = 100
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Batcher{sink: sink, size: size, interval: interval, flushTimeout: 30 * time.Second}
}

// Run blocks until ctx is cancelled or the delivery channel closes. Pending
// events are flushed before it returns.
func (b *Batcher) Run(ctx context.Context, msgs <-chan amqp091.Delivery) error {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush(context.WithoutCancel(ctx))
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				log.Warn("RabbitMQ channel closed")
				b.flush(context.WithoutCancel(ctx))
				return ErrDeliveriesClosed
			}
			var event internal.ClickEvent
			if err := json.Unmarshal(d.Body, &event); err != nil || event.ShortCode == "" {
				log.Error("Error decoding message. Rejecting.", "err", err, "delivery_tag", d.DeliveryTag)
				// not requeued: it would fail the same way again
				d.Reject(false)
				continue
			}
			b.events = append(b.events, event)
			b.deliveries = append(b.deliveries, d)

			if len(b.events) >= b.size {
				b.flush(ctx)
				ticker.Reset(b.interval)
			}

		case <-ticker.C:
			if len(b.events) > 0 {
				log.Debug("Timer flush: processing queued events", "count", len(b.events))
				b.flush(ctx)
			}
		}
	}
}

func (b *Batcher) flush(ctx context.Context) {
	if len(b.events) == 0 {
		return
	}
	log := logger.FromContext(ctx)
	events, deliveries := b.events, b.deliveries
	b.events, b.deliveries = nil, nil

	ctx, cancel := context.WithTimeout(ctx, b.flushTimeout)
	defer cancel()

	written, err := b.sink.AppendBatch(ctx, events)
	if err != nil {
		log.Error("Failed to process batch. Nacking messages.", "count", len(events), "err", err)
		nackAll(deliveries)
		return
	}

	ackAll(deliveries)
	attrs := []any{"count", len(events), "written", written}
	if dropped := len(events) - written; dropped > 0 {
		attrs = append(attrs, "dropped_unknown_code", dropped)
	}
	log.Info("Successfully processed and acked messages", attrs...)
}

func ackAll(deliveries []amqp091.Delivery) {
	for _, d := range deliveries {
		d.Ack(false)
	}
}

func nackAll(deliveries []amqp091.Delivery) {
	for _, d := range deliveries {
		d.Nack(false, true)
	}
}
