package model

import "time"

// BookingStatus is the lifecycle state of a booking as persisted by the
// booking-management layer.  The scheduler only ever reads it.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingInService BookingStatus = "in-service"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// IsValid reports whether s is one of the known statuses.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingInService, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Occupies reports whether a booking in this status holds its time slot
// against new bookings.  Only confirmed and in-service bookings do.
func (s BookingStatus) Occupies() bool {
	return s == BookingConfirmed || s == BookingInService
}

// IsClosed reports whether the booking has left the live queue for good.
func (s BookingStatus) IsClosed() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// Booking is a request to occupy a staff member's time.  The time slot is
// the half-open interval [start, start+DurationMin).
//
// Fields:
//
//	ID          – opaque unique identifier.
//	StaffID     – staff member the booking is assigned to.
//	ShopID      – shop the staff member belongs to.
//	CustomerID  – customer who made the booking.
//	ServiceName – display name of the booked service.
//	PriceCents  – service price in cents.
//	DurationMin – service duration in minutes; must be positive.
//	Date        – calendar day in "2006-01-02" form.
//	StartTime   – wall-clock start as entered ("2:30 PM", "14:30") or an
//	              RFC 3339 timestamp.
//	StartAt     – absolute start instant when the store has one.
//	Status      – lifecycle status.
//	CreatedAt   – creation timestamp; the store returns rows in creation order.
type Booking struct {
	ID          string        `json:"id"`                 // bookings.id
	StaffID     string        `json:"staff_id"`           // bookings.staff_id
	ShopID      string        `json:"shop_id"`            // bookings.shop_id
	CustomerID  string        `json:"customer_id"`        // bookings.customer_id
	ServiceName string        `json:"service_name"`       // bookings.service_name
	PriceCents  uint32        `json:"price_cents"`        // bookings.price_cents
	DurationMin int           `json:"duration_min"`       // bookings.duration_min
	Date        string        `json:"date"`               // bookings.booking_date
	StartTime   string        `json:"start_time"`         // bookings.start_time
	StartAt     *time.Time    `json:"start_at,omitempty"` // bookings.start_at (nullable)
	Status      BookingStatus `json:"status"`             // bookings.status
	CreatedAt   time.Time     `json:"created_at"`         // bookings.created_at
}

// Duration returns the booking length as a time.Duration.
func (b Booking) Duration() time.Duration {
	return time.Duration(b.DurationMin) * time.Minute
}
