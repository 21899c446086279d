package scheduler

import (
	"math"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// Estimate projects the timing of every booking on seat at now.
//
// The sequence is [current, queue...].  The booking in the chair started
// no later than now; each queued booking starts at the latest of its
// scheduled start, now and the projected end of the booking before it, so
// lateness ahead of a booking pushes it back.  Bookings whose start cannot
// be parsed follow the previous entry directly.
//
// PerBooking holds the whole minutes, rounded up, until each booking ends.
// TotalWait is the remaining time of the current booking plus the
// durations of everything queued: the wait for a new, unscheduled booking.
func Estimate(seat model.SeatView, now time.Time) model.Estimate {
	loc := now.Location()
	est := model.Estimate{
		PerBooking: make(map[string]int, len(seat.Queue)+1),
		Timeline:   make([]model.EstimatedSlot, 0, len(seat.Queue)+1),
	}

	prevEnd := now
	if seat.Current != nil {
		c := *seat.Current
		start := now
		if sched, err := EffectiveStart(c, loc); err == nil && sched.Before(now) {
			start = sched
		}
		end := start.Add(c.Duration())
		if end.Before(now) {
			end = now
		}
		slot := model.EstimatedSlot{
			BookingID:    c.ID,
			Start:        start,
			End:          end,
			RemainingMin: ceilMinutes(end.Sub(now)),
			InService:    true,
		}
		est.Timeline = append(est.Timeline, slot)
		est.PerBooking[c.ID] = slot.RemainingMin
		est.TotalWait = slot.RemainingMin
		prevEnd = end
	}

	for _, q := range seat.Queue {
		start := prevEnd
		sched, err := EffectiveStart(q.Booking, loc)
		delay := 0
		if err == nil {
			if sched.After(start) {
				start = sched
			}
			delay = ceilMinutes(start.Sub(sched))
		}
		end := start.Add(q.Duration())
		slot := model.EstimatedSlot{
			BookingID:    q.ID,
			Start:        start,
			End:          end,
			DelayMin:     delay,
			StartsInMin:  ceilMinutes(start.Sub(now)),
			RemainingMin: ceilMinutes(end.Sub(now)),
		}
		est.Timeline = append(est.Timeline, slot)
		est.PerBooking[q.ID] = slot.RemainingMin
		est.TotalWait += q.DurationMin
		prevEnd = end
	}
	return est
}

// ceilMinutes rounds d up to whole minutes, clamped at zero.
func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
