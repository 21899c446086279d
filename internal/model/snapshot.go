package model

import "time"

// EstimatedSlot is the projected timing of one booking in a staff
// member's sequence after schedule drift has been applied.
type EstimatedSlot struct {
	BookingID    string    `json:"booking_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DelayMin     int       `json:"delay_min"`
	StartsInMin  int       `json:"starts_in_min"`
	RemainingMin int       `json:"remaining_min"`
	InService    bool      `json:"in_service"`
}

// Estimate holds the wait figures for one seat.  PerBooking maps a booking
// ID to whole minutes until that booking ends.  TotalWait is the expected
// wait for a new, unscheduled booking.
type Estimate struct {
	PerBooking map[string]int  `json:"per_booking"`
	Timeline   []EstimatedSlot `json:"timeline"`
	TotalWait  int             `json:"total_wait"`
}

// StaffSeat is the per-staff entry of a shop snapshot.
type StaffSeat struct {
	StaffID   string   `json:"staff_id"`
	StaffName string   `json:"staff_name"`
	Role      string   `json:"role"`
	Seat      SeatView `json:"seat"`
	Estimate  Estimate `json:"estimate"`
}

// ShopSnapshot is the full, authoritative state of a shop's seats at one
// instant.  Version increases with every snapshot or delta a room sends.
type ShopSnapshot struct {
	ShopID      string               `json:"shop_id"`
	Date        string               `json:"date"`
	Version     uint64               `json:"version"`
	GeneratedAt time.Time            `json:"generated_at"`
	Seats       map[string]StaffSeat `json:"seats"`
}
