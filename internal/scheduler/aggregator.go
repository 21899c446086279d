package scheduler

import (
	"errors"
	"fmt"
	"time"

	calendar "github.com/jinzhu/now"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// Window is an inclusive range of instants a live snapshot covers.
type Window struct {
	From time.Time
	To   time.Time
}

// DayWindow returns the calendar day containing t, in t's location.
func DayWindow(t time.Time) Window {
	day := calendar.With(t)
	return Window{From: day.BeginningOfDay(), To: day.EndOfDay()}
}

// Contains reports whether t falls inside w.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Date is the first calendar day of w.
func (w Window) Date() string { return w.From.Format(DateLayout) }

// Result is a shop snapshot together with the anomalies found while
// building it.
type Result struct {
	Snapshot model.ShopSnapshot
	Issues   []Issue
}

// Aggregate builds the snapshot of shopID for the day containing now.
func Aggregate(shopID string, staff []model.Staff, bookingsByStaff map[string][]model.Booking, now time.Time) model.ShopSnapshot {
	return AggregateWindow(shopID, staff, bookingsByStaff, now, DayWindow(now)).Snapshot
}

// AggregateWindow resolves and estimates the seat of every active staff
// member of shopID, keeping only the bookings of the shop inside w that
// have not already ended.  A failure while computing one staff member is
// recorded as an Issue and does not affect the others.
func AggregateWindow(shopID string, staff []model.Staff, bookingsByStaff map[string][]model.Booking, now time.Time, w Window) Result {
	res := Result{Snapshot: model.ShopSnapshot{
		ShopID:      shopID,
		Date:        w.Date(),
		GeneratedAt: now,
		Seats:       make(map[string]model.StaffSeat, len(staff)),
	}}
	for _, s := range staff {
		if !s.Active || s.ShopID != shopID {
			continue
		}
		if _, dup := res.Snapshot.Seats[s.ID]; dup {
			continue
		}
		var own []model.Booking
		for _, b := range bookingsByStaff[s.ID] {
			if b.ShopID != "" && b.ShopID != shopID {
				continue
			}
			own = append(own, b)
		}
		seat, issues := SeatFor(s, own, now, w)
		res.Issues = append(res.Issues, issues...)
		res.Snapshot.Seats[s.ID] = seat
	}
	return res
}

// SeatFor computes the live seat of one staff member.  A panic inside the
// computation is recovered and reported as an Issue; the returned seat is
// then empty.
func SeatFor(s model.Staff, bookings []model.Booking, now time.Time, w Window) (seat model.StaffSeat, issues []Issue) {
	seat = emptySeat(s)
	defer func() {
		if r := recover(); r != nil {
			seat = emptySeat(s)
			issues = append(issues, Issue{StaffID: s.ID, Err: fmt.Errorf("seat computation panicked: %v", r)})
		}
	}()

	live, dropped := liveBookings(s.ID, bookings, now, w)
	issues = append(issues, dropped...)

	view, errs := ResolveCurrent(s.ID, s.CurrentBookingID, live, now)
	for _, err := range errs {
		switch {
		case errors.Is(err, ErrUnparseableTime):
			// already reported by liveBookings
		case errors.Is(err, ErrInconsistentCurrent):
			issues = append(issues, Issue{StaffID: s.ID, BookingID: s.CurrentBookingID, Err: err})
		default:
			issues = append(issues, Issue{StaffID: s.ID, Err: err})
		}
	}
	seat.Seat = view
	seat.Estimate = Estimate(view, now)
	return seat, issues
}

func emptySeat(s model.Staff) model.StaffSeat {
	return model.StaffSeat{
		StaffID:   s.ID,
		StaffName: s.Name,
		Role:      s.Role,
		Seat:      model.SeatView{StaffID: s.ID, Queue: []model.QueueEntry{}},
		Estimate:  model.Estimate{PerBooking: map[string]int{}, Timeline: []model.EstimatedSlot{}},
	}
}

// liveBookings keeps the bookings of staffID that belong to w and have not
// ended at now.  Bookings with a non-positive duration or no resolvable
// day are dropped and reported.  A booking whose start cannot be parsed
// but whose date is in w is kept and reported; the resolver sorts it last.
func liveBookings(staffID string, bookings []model.Booking, now time.Time, w Window) ([]model.Booking, []Issue) {
	loc := now.Location()
	var (
		out    []model.Booking
		issues []Issue
	)
	for _, b := range bookings {
		if b.StaffID != staffID {
			continue
		}
		if b.DurationMin <= 0 {
			issues = append(issues, Issue{StaffID: staffID, BookingID: b.ID, Err: ErrInvalidDuration})
			continue
		}
		start, err := EffectiveStart(b, loc)
		parsed := err == nil

		day, hasDay := parseDate(b.Date, loc)
		switch {
		case hasDay:
			if !w.Contains(day) && !(parsed && w.Contains(start)) {
				continue
			}
		case parsed:
			if !w.Contains(start) {
				continue
			}
		default:
			issues = append(issues, Issue{StaffID: staffID, BookingID: b.ID, Err: err})
			continue
		}

		if !parsed {
			issues = append(issues, Issue{StaffID: staffID, BookingID: b.ID, Err: err})
		} else if !now.Before(start.Add(b.Duration())) {
			continue
		}
		out = append(out, b)
	}
	return out, issues
}
