package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/salon-live-queue/internal/realtime"
)

// errPermanent marks a message that will never succeed on redelivery.
var errPermanent = errors.New("permanent failure")

// Consumer reads BookingEvents from RabbitMQ and hands them to the event
// fan-out.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	events   realtime.Publisher
}

// NewConsumer builds a consumer of queue on the broker at url.
func NewConsumer(url, queue string, events realtime.Publisher) *Consumer {
	return &Consumer{url: url, queue: queue, prefetch: 50, events: events}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled.  Dial failures and broken connections are
// retried with exponential backoff capped at 30s; Run only returns once
// ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				// Retry a transient failure once; drop everything else so a
				// poison message cannot loop.
				requeue := !errors.Is(err, errPermanent) && !d.Redelivered
				log.Printf("booking-consumer: handle message failed (requeue=%v): %v", requeue, err)
				_ = d.Nack(false, requeue)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", errPermanent, err)
	}
	m := ev.Mutation()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := c.events.Publish(ctx, m); err != nil {
		return fmt.Errorf("apply %s %s: %w", m.Kind, m.BookingID, err)
	}
	return nil
}

// sleep waits for d or ctx, reporting false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
