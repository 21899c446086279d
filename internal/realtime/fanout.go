package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher accepts mutation events from the booking-management layer
// and gets them to the rooms that serve the shop.
type Publisher interface {
	Publish(ctx context.Context, ev MutationEvent) error
}

// LocalFanout queues events on this instance's rooms.
type LocalFanout struct {
	manager *Manager
}

func NewLocalFanout(m *Manager) *LocalFanout { return &LocalFanout{manager: m} }

func (f *LocalFanout) Publish(ctx context.Context, ev MutationEvent) error {
	return f.manager.Dispatch(ev)
}

// RedisFanout publishes events on a per-shop Redis channel.  The
// publishing instance applies the event to its own room, starting it if
// needed; every other instance applies it only to a room it already runs
// for the shop.  Run must be started on each instance to receive.
type RedisFanout struct {
	client  *redis.Client
	prefix  string
	origin  string
	manager *Manager
}

// fanoutEnvelope is the payload on a shop channel.
type fanoutEnvelope struct {
	Origin string        `json:"origin"`
	Event  MutationEvent `json:"event"`
}

func NewRedisFanout(client *redis.Client, prefix string, m *Manager) *RedisFanout {
	if prefix == "" {
		prefix = "queue-events"
	}
	return &RedisFanout{client: client, prefix: prefix, origin: uuid.NewString(), manager: m}
}

// Channel returns the Redis channel carrying events of shopID.
func (f *RedisFanout) Channel(shopID string) string {
	return f.prefix + ":" + shopID
}

func (f *RedisFanout) Publish(ctx context.Context, ev MutationEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(fanoutEnvelope{Origin: f.origin, Event: ev})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := f.client.Publish(ctx, f.Channel(ev.ShopID), body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return f.manager.Dispatch(ev)
}

// Run subscribes to every shop channel and queues incoming events on the
// rooms this instance runs until ctx is cancelled.  Malformed payloads
// are logged and skipped.
func (f *RedisFanout) Run(ctx context.Context) error {
	pubsub := f.client.PSubscribe(ctx, f.prefix+":*")
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			f.handle(msg.Payload)
		}
	}
}

func (f *RedisFanout) handle(payload string) {
	var env fanoutEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("event-fanout: unmarshal: %v", err)
		return
	}
	if env.Origin == f.origin {
		return
	}
	ev := env.Event
	if _, err := f.manager.DispatchExisting(ev); err != nil {
		log.Printf("event-fanout: dispatch %s for shop %s: %v", ev.Kind, ev.ShopID, err)
	}
}
