// Package realtime keeps connected viewers of a shop consistent with the
// live queue.  Each shop has a Room whose single goroutine owns the
// shop's cached bookings, applies mutation events one at a time and
// pushes snapshots, deltas and blocked/unblocked notices through a
// Transport.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

var (
	// ErrStaleSubscription is the close reason of a subscriber whose
	// buffer overflowed.  The client must reconnect for a fresh snapshot.
	ErrStaleSubscription = errors.New("subscription is stale")
	// ErrInvalidEvent is returned for a mutation event that cannot be
	// routed to a room.
	ErrInvalidEvent = errors.New("invalid mutation event")
	// ErrRoomClosed is returned by requests to a room whose loop has
	// stopped.
	ErrRoomClosed = errors.New("room closed")
	// ErrNotSubscribed is returned when sending to an unknown subscriber.
	ErrNotSubscribed = errors.New("subscriber not found")
)

// EventKind names a booking mutation reported by the booking-management
// layer.
type EventKind string

const (
	BookingCreated       EventKind = "bookingCreated"
	BookingStatusChanged EventKind = "bookingStatusChanged"
	BookingCancelled     EventKind = "bookingCancelled"
)

// MutationEvent tells a room that a booking changed in the store.  StaffID
// scopes the recomputation to one staff member; when it is empty or
// unknown to the room the whole shop is reloaded.  Booking optionally
// carries the booking as persisted after the change.
type MutationEvent struct {
	Kind      EventKind      `json:"type"`
	ShopID    string         `json:"shop_id"`
	StaffID   string         `json:"staff_id,omitempty"`
	BookingID string         `json:"booking_id"`
	Date      string         `json:"date,omitempty"`
	Booking   *model.Booking `json:"booking,omitempty"`
	// PreviousStatus is the booking's status before a status change, when
	// the producer knows it.
	PreviousStatus model.BookingStatus `json:"previous_status,omitempty"`
}

// Validate checks that e can be routed and applied.
func (e MutationEvent) Validate() error {
	switch e.Kind {
	case BookingCreated, BookingStatusChanged, BookingCancelled:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Kind)
	}
	if e.ShopID == "" {
		return fmt.Errorf("%w: missing shop_id", ErrInvalidEvent)
	}
	if e.BookingID == "" {
		return fmt.Errorf("%w: missing booking_id", ErrInvalidEvent)
	}
	if e.Booking != nil && e.Booking.ID != "" && e.Booking.ID != e.BookingID {
		return fmt.Errorf("%w: booking body %s does not match booking_id %s", ErrInvalidEvent, e.Booking.ID, e.BookingID)
	}
	return nil
}

// MessageType names an outbound message.
type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgDelta      MessageType = "delta"
	MsgBlocked    MessageType = "blocked"
	MsgUnblocked  MessageType = "unblocked"
	MsgBlockedSet MessageType = "blocked_set"
)

// Message is what a room sends to its subscribers.  Version is the room's
// counter at the time of sending; snapshots and deltas broadcast to the
// whole room advance it, so a client that sees a gap asks for a resync.
//
// Delta maps a staff ID to its new seat; a nil seat means the staff member
// left the live view.
type Message struct {
	Type     MessageType                 `json:"type"`
	ShopID   string                      `json:"shop_id"`
	Version  uint64                      `json:"version"`
	Snapshot *model.ShopSnapshot         `json:"snapshot,omitempty"`
	Delta    map[string]*model.StaffSeat `json:"delta,omitempty"`
	Interval *model.BlockedInterval      `json:"interval,omitempty"`
	Blocked  []model.BlockedInterval     `json:"blocked,omitempty"`
}

// SeatAdvanced records that a staff member's chair or next-in-line
// changed.
type SeatAdvanced struct {
	ShopID            string    `json:"shop_id"`
	StaffID           string    `json:"staff_id"`
	Date              string    `json:"date"`
	PreviousBookingID string    `json:"previous_booking_id,omitempty"`
	CurrentBookingID  string    `json:"current_booking_id,omitempty"`
	NextBookingID     string    `json:"next_booking_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Notifier receives SeatAdvanced records.  It is called outside the room
// loop and may block on I/O.
type Notifier interface {
	SeatAdvanced(ctx context.Context, ev SeatAdvanced) error
}

// Store is the read-only persistence the rooms load bookings from.
type Store interface {
	ListStaffByShop(ctx context.Context, shopID string) ([]model.Staff, error)
	ListBookingsForShop(ctx context.Context, shopID, date string) ([]model.Booking, error)
	ListBookingsForStaff(ctx context.Context, staffID, date string) ([]model.Booking, error)
}
