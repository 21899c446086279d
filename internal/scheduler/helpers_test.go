package scheduler

import (
	"testing"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

var testZone = time.FixedZone("salon", 3*60*60)

// testNow is 10:00 shop time on 2024-03-15.
func testNow() time.Time {
	return time.Date(2024, 3, 15, 10, 0, 0, 0, testZone)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

// booking builds a booking for staff s1 of shop shop1 starting at start.
func booking(id string, status model.BookingStatus, start time.Time, minutes int) model.Booking {
	at := start
	return model.Booking{
		ID:          id,
		StaffID:     "s1",
		ShopID:      "shop1",
		DurationMin: minutes,
		Date:        start.Format(DateLayout),
		StartTime:   start.Format("3:04 PM"),
		StartAt:     &at,
		Status:      status,
	}
}

func queueIDs(seat model.SeatView) []string {
	ids := make([]string, 0, len(seat.Queue))
	for _, q := range seat.Queue {
		ids = append(ids, q.ID)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
