package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/salon-live-queue/internal/realtime"
)

// SeatPublisher publishes SeatAdvanced records to a durable queue.  It
// implements realtime.Notifier.  The connection is opened lazily and
// reopened after a failure; errors are logged and returned so the room
// never depends on the broker.
type SeatPublisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewSeatPublisher(url, queue string) *SeatPublisher {
	return &SeatPublisher{url: url, queue: queue}
}

// SeatAdvanced publishes ev as a persistent JSON message.
func (p *SeatPublisher) SeatAdvanced(ctx context.Context, ev realtime.SeatAdvanced) error {
	pub, err := seatAdvancedPublishing(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal seat advanced failed: %v", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		log.Printf("rabbitmq: %v", err)
		return err
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		p.reset()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *SeatPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	return err
}

// channel returns an open channel with the queue declared.  Callers hold mu.
func (p *SeatPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open failed: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare failed: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *SeatPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func seatAdvancedPublishing(ev realtime.SeatAdvanced) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         "seat.advanced",
		Body:         body,
	}, nil
}
