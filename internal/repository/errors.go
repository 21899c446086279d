// Package repository reads the salon's bookings and staff from MySQL.
// The live queue never writes: status transitions belong to the
// booking-management layer, so every repository here is read-only.
//
// The sentinel errors below let handlers tell a missing record apart
// from a database failure.
package repository

import "errors"

// ErrBookingNotFound is returned when a booking lookup yields no rows.
// Handlers translate it into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrStaffNotFound is returned when a staff lookup yields no rows or
// the staff member belongs to another shop.  Handlers translate it into
// an HTTP 404 response.
var ErrStaffNotFound = errors.New("staff not found")
