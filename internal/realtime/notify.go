package realtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupNotifier forwards each seat advance to next once across every
// instance sharing the Redis server.  Instances that run a room for the
// same shop detect the same advance; the first to claim its key delivers
// it.
type DedupNotifier struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	next   Notifier
}

func NewDedupNotifier(client *redis.Client, prefix string, ttl time.Duration, next Notifier) *DedupNotifier {
	if prefix == "" {
		prefix = "seat-advanced"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DedupNotifier{client: client, prefix: prefix, ttl: ttl, next: next}
}

// Key identifies an advance by the seat it produced.
func (n *DedupNotifier) Key(ev SeatAdvanced) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s", n.prefix, ev.ShopID, ev.StaffID, ev.Date, ev.CurrentBookingID, ev.NextBookingID)
}

func (n *DedupNotifier) SeatAdvanced(ctx context.Context, ev SeatAdvanced) error {
	claimed, err := n.client.SetNX(ctx, n.Key(ev), ev.OccurredAt.Unix(), n.ttl).Result()
	if err != nil {
		// Without Redis a duplicate beats a lost notification.
		log.Printf("seat-advanced: dedupe %s: %v", ev.StaffID, err)
		return n.next.SeatAdvanced(ctx, ev)
	}
	if !claimed {
		return nil
	}
	return n.next.SeatAdvanced(ctx, ev)
}
