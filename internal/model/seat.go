package model

import "time"

// QueueEntry is a booking waiting for its staff member.  Blocked is true
// while the booking is still pending: it cannot be promoted to service
// without an explicit confirmation.
type QueueEntry struct {
	Booking
	Blocked bool `json:"blocked"`
}

// SeatView is the resolved live state of one staff member at one instant.
// Current is never a pending booking and Queue never repeats Current.
type SeatView struct {
	StaffID string       `json:"staff_id"`
	Current *Booking     `json:"current"`
	Queue   []QueueEntry `json:"queue"`
}

// BlockedInterval is a time range on one date that cannot accept a new
// booking for a staff member because a confirmed or in-service booking
// already holds it.
type BlockedInterval struct {
	StaffID   string    `json:"staff_id"`
	Date      string    `json:"date"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	BookingID string    `json:"booking_id"`
}
