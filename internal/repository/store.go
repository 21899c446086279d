package repository

import "database/sql"

// Store bundles the read paths the live-queue rooms need.
type Store struct {
	*BookingRepo
	*StaffRepo
}

// NewStore builds a Store over one DB handle.
func NewStore(db *sql.DB) *Store {
	return &Store{BookingRepo: NewBookingRepo(db), StaffRepo: NewStaffRepo(db)}
}
