package model

// Staff is a schedulable resource.  It references its bookings through
// Booking.StaffID but does not own their lifecycle.
//
// Fields:
//
//	ID               – primary key identifier.
//	ShopID           – shop the staff member works at.
//	Name             – display name.
//	Role             – job title shown on the queue display.
//	Active           – inactive staff are left out of live snapshots.
//	CurrentBookingID – the store's pointer to the booking in the chair.
//	                   It may lag behind booking statuses, so the seat
//	                   resolver re-validates it.
type Staff struct {
	ID               string `json:"id"`                           // staff.id
	ShopID           string `json:"shop_id"`                      // staff.shop_id
	Name             string `json:"name"`                         // staff.name
	Role             string `json:"role"`                         // staff.role
	Active           bool   `json:"active"`                       // staff.is_active
	CurrentBookingID string `json:"current_booking_id,omitempty"` // staff.current_booking_id (nullable)
}
