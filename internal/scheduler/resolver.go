package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// Resolve derives the seat view of staffID from bookings at now.  The
// chair is taken by the in-service booking; anomalies are corrected in
// memory and discarded.  Use ResolveCurrent to receive them.
func Resolve(staffID string, bookings []model.Booking, now time.Time) model.SeatView {
	seat, _ := ResolveCurrent(staffID, "", bookings, now)
	return seat
}

// ResolveCurrent is Resolve with the store's current-booking pointer.
// An in-service booking always takes the chair: the one currentID names
// if it is in service, else the one with the earliest start.  A confirmed
// booking named by currentID takes the chair only while no booking of the
// staff member is in service.
//
// A pending candidate never occupies the chair: it is moved back to the
// queue and reported as ErrInconsistentCurrent.  Bookings whose start
// cannot be parsed sort last and are reported as ErrUnparseableTime.  The
// input slice is never modified and the returned view shares no memory
// with it.
func ResolveCurrent(staffID, currentID string, bookings []model.Booking, now time.Time) (model.SeatView, []error) {
	loc := now.Location()
	var errs []error

	own := ownBookings(staffID, bookings)

	cur := -1
	if currentID != "" {
		for i := range own {
			if own[i].ID == currentID {
				cur = i
				break
			}
		}
		if cur >= 0 {
			switch st := own[cur].Status; {
			case st == model.BookingPending:
				errs = append(errs, fmt.Errorf("staff %s booking %s: %w", staffID, currentID, ErrInconsistentCurrent))
				cur = -1
			case st.IsClosed():
				cur = -1
			case st == model.BookingConfirmed:
				if inService := earliestInService(own, loc); inService >= 0 {
					cur = inService
				}
			}
		}
	}
	if cur < 0 {
		cur = earliestInService(own, loc)
	}

	seat := model.SeatView{StaffID: staffID, Queue: []model.QueueEntry{}}
	if cur >= 0 {
		b := own[cur]
		seat.Current = &b
	}

	type keyed struct {
		entry model.QueueEntry
		start time.Time
		ok    bool
	}
	var queued []keyed
	for i, b := range own {
		if i == cur && seat.Current != nil {
			continue
		}
		switch b.Status {
		case model.BookingPending, model.BookingConfirmed, model.BookingInService:
		default:
			continue
		}
		start, err := EffectiveStart(b, loc)
		if err != nil {
			errs = append(errs, err)
		}
		queued = append(queued, keyed{
			entry: model.QueueEntry{Booking: b, Blocked: b.Status == model.BookingPending},
			start: start,
			ok:    err == nil,
		})
	}

	sort.SliceStable(queued, func(i, j int) bool {
		a, b := queued[i], queued[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.start.Before(b.start)
	})
	for _, q := range queued {
		seat.Queue = append(seat.Queue, q.entry)
	}
	return seat, errs
}

// ownBookings copies the bookings of staffID, keeping the first occurrence
// of every ID.
func ownBookings(staffID string, bookings []model.Booking) []model.Booking {
	seen := make(map[string]struct{}, len(bookings))
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.StaffID != staffID {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		if b.StartAt != nil {
			t := *b.StartAt
			b.StartAt = &t
		}
		out = append(out, b)
	}
	return out
}

// earliestInService returns the index of the in-service booking with the
// earliest effective start, or -1.  Unparseable starts lose to parseable
// ones; equal keys keep input order.
func earliestInService(bookings []model.Booking, loc *time.Location) int {
	best := -1
	var bestStart time.Time
	bestOK := false
	for i, b := range bookings {
		if b.Status != model.BookingInService {
			continue
		}
		start, err := EffectiveStart(b, loc)
		ok := err == nil
		switch {
		case best < 0:
		case ok && !bestOK:
		case ok && bestOK && start.Before(bestStart):
		default:
			continue
		}
		best, bestStart, bestOK = i, start, ok
	}
	return best
}
