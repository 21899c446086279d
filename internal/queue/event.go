// Package queue connects the live queue to RabbitMQ: it consumes booking
// mutation events published by the booking-management service and
// publishes seat-advanced notifications for downstream notifiers.
package queue

import (
	"github.com/iliyamo/salon-live-queue/internal/model"
	"github.com/iliyamo/salon-live-queue/internal/realtime"
)

// BookingEvent is the payload the booking-management service publishes on
// the booking events queue after persisting a booking change.  It carries
// enough identity for a room to re-read the affected staff member's
// bookings; Booking is the persisted row after the change, when the
// publisher includes it.
type BookingEvent struct {
	Type       string         `json:"type"` // bookingCreated | bookingStatusChanged | bookingCancelled
	ShopID     string         `json:"shop_id"`
	StaffID    string         `json:"staff_id"`
	BookingID  string         `json:"booking_id"`
	Date       string         `json:"date"`
	Booking    *model.Booking `json:"booking,omitempty"`
	OccurredAt string         `json:"occurred_at,omitempty"` // RFC 3339, informational

	// PreviousStatus is set on status changes and cancellations.
	PreviousStatus model.BookingStatus `json:"previous_status,omitempty"`
}

// Mutation converts the wire payload into the event rooms consume.
func (e BookingEvent) Mutation() realtime.MutationEvent {
	return realtime.MutationEvent{
		Kind:      realtime.EventKind(e.Type),
		ShopID:    e.ShopID,
		StaffID:   e.StaffID,
		BookingID: e.BookingID,
		Date:      e.Date,
		Booking:   e.Booking,

		PreviousStatus: e.PreviousStatus,
	}
}
