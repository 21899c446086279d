// Package scheduler holds the pure live-queue computations: conflict
// detection, seat resolution, wait estimation and shop-wide aggregation.
// Every function takes its inputs (bookings, the current instant)
// explicitly and keeps no state between calls, so the same inputs always
// produce the same result.
package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// ErrInvalidInterval is returned for a malformed conflict-check input:
// non-positive duration, missing staff, missing or malformed date, or a
// zero start.  Callers must reject the booking request.
var ErrInvalidInterval = errors.New("invalid interval")

// ErrUnparseableTime marks a booking whose start could not be resolved by
// any parse strategy.  The resolver sorts such a booking last instead of
// failing.
var ErrUnparseableTime = errors.New("unparseable start time")

// ErrInconsistentCurrent marks a booking designated as in the chair while
// its status is still pending.  The resolver corrects it in memory.
var ErrInconsistentCurrent = errors.New("pending booking marked as current")

// ErrSlotTaken is matched by *ConflictError through errors.Is.
var ErrSlotTaken = errors.New("this time is already booked")

// ErrInvalidDuration marks a stored booking with a non-positive duration.
// The aggregator leaves it out of the seat instead of guessing a length.
var ErrInvalidDuration = errors.New("booking duration must be positive")

// ConflictError is the rejection returned for a candidate that overlaps
// existing blocked intervals.  Conflicts lists every overlapping interval
// so the caller can show which booking already holds the time.
type ConflictError struct {
	Candidate Candidate
	Conflicts []model.BlockedInterval
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, c.BookingID)
	}
	return fmt.Sprintf("%s: staff %s on %s at %s overlaps [%s]",
		ErrSlotTaken.Error(), e.Candidate.StaffID, e.Candidate.Date,
		e.Candidate.Start.Format(time.Kitchen), strings.Join(ids, ", "))
}

// Is lets errors.Is(err, ErrSlotTaken) match a *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotTaken
}

// Issue is a per-booking or per-staff anomaly found while building a
// snapshot.  Issues are reported for logging and never abort the
// computation of other staff members.
type Issue struct {
	StaffID   string
	BookingID string
	Err       error
}

func (i Issue) Error() string {
	if i.BookingID == "" {
		return fmt.Sprintf("staff %s: %v", i.StaffID, i.Err)
	}
	return fmt.Sprintf("staff %s booking %s: %v", i.StaffID, i.BookingID, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }
