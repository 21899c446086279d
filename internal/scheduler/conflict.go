package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds [start, start+d).  A zero start or non-positive
// duration yields ErrInvalidInterval.
func NewInterval(start time.Time, d time.Duration) (Interval, error) {
	if start.IsZero() {
		return Interval{}, fmt.Errorf("%w: missing start", ErrInvalidInterval)
	}
	if d <= 0 {
		return Interval{}, fmt.Errorf("%w: duration %s must be positive", ErrInvalidInterval, d)
	}
	return Interval{Start: start, End: start.Add(d)}, nil
}

// Overlaps reports whether a and b share any instant.  Back-to-back
// intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Candidate is a booking request checked against existing blocked
// intervals before it is persisted.
type Candidate struct {
	StaffID     string    `json:"staff_id"`
	Date        string    `json:"date"`
	Start       time.Time `json:"start"`
	DurationMin int       `json:"duration_min"`
}

// Interval validates the candidate and returns its time range.
func (c Candidate) Interval() (Interval, error) {
	if c.StaffID == "" {
		return Interval{}, fmt.Errorf("%w: missing staff", ErrInvalidInterval)
	}
	if c.DurationMin <= 0 {
		return Interval{}, fmt.Errorf("%w: duration %d must be positive", ErrInvalidInterval, c.DurationMin)
	}
	if _, err := time.Parse(DateLayout, c.Date); err != nil {
		return Interval{}, fmt.Errorf("%w: date %q", ErrInvalidInterval, c.Date)
	}
	return NewInterval(c.Start, time.Duration(c.DurationMin)*time.Minute)
}

// Conflicts returns every blocked interval of the candidate's staff and
// date that overlaps the candidate.  A malformed candidate is an error,
// never an empty result.
func Conflicts(c Candidate, blocked []model.BlockedInterval) ([]model.BlockedInterval, error) {
	want, err := c.Interval()
	if err != nil {
		return nil, err
	}
	var out []model.BlockedInterval
	for _, b := range blocked {
		if b.StaffID != c.StaffID || b.Date != c.Date {
			continue
		}
		if Overlaps(want, Interval{Start: b.Start, End: b.End}) {
			out = append(out, b)
		}
	}
	return out, nil
}

// IsBlocked reports whether the candidate overlaps any blocked interval of
// the same staff and date.
func IsBlocked(c Candidate, blocked []model.BlockedInterval) (bool, error) {
	hits, err := Conflicts(c, blocked)
	if err != nil {
		return false, err
	}
	return len(hits) > 0, nil
}

// CheckAvailability is the gate the booking-management layer calls before
// persisting a confirmed booking.  It returns nil when the slot is free, a
// *ConflictError when it is taken and an ErrInvalidInterval error for
// malformed input.
func CheckAvailability(c Candidate, blocked []model.BlockedInterval) error {
	hits, err := Conflicts(c, blocked)
	if err != nil {
		return err
	}
	if len(hits) > 0 {
		return &ConflictError{Candidate: c, Conflicts: hits}
	}
	return nil
}

// BlockedIntervals derives the blocked intervals of the given bookings.
// Only confirmed and in-service bookings contribute.  Bookings whose start
// cannot be resolved or whose duration is not positive are reported and
// skipped.  The result is ordered by start.
func BlockedIntervals(bookings []model.Booking, loc *time.Location) ([]model.BlockedInterval, []error) {
	if loc == nil {
		loc = time.UTC
	}
	var (
		out  []model.BlockedInterval
		errs []error
	)
	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if !b.Status.Occupies() {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		start, err := EffectiveStart(b, loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		iv, err := NewInterval(start, b.Duration())
		if err != nil {
			errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
			continue
		}
		day, _ := BookingDay(b, loc)
		out = append(out, model.BlockedInterval{
			StaffID:   b.StaffID,
			Date:      day,
			Start:     iv.Start,
			End:       iv.End,
			BookingID: b.ID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, errs
}
