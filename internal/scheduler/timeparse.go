package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// DateLayout is the calendar-day format used for Booking.Date and
// BlockedInterval.Date.
const DateLayout = "2006-01-02"

// 12-hour layouts are tried before 24-hour ones.  Input is upper-cased
// with single spaces before matching.
var clockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"3 PM",
	"3PM",
	"15:04",
	"15:04:05",
}

// startStrategy resolves a booking's start instant.  ok is false when the
// strategy does not apply or fails to parse.
type startStrategy func(b model.Booking, loc *time.Location) (t time.Time, ok bool)

// startStrategies is tried in order; the first success wins.
var startStrategies = []startStrategy{
	fromAbsolute,
	fromTimestamp,
	fromWallClock,
}

// EffectiveStart resolves the start instant of b.  Wall-clock times are
// interpreted in loc.  When no strategy applies it returns an error
// wrapping ErrUnparseableTime.
func EffectiveStart(b model.Booking, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, strategy := range startStrategies {
		if t, ok := strategy(b, loc); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("booking %s (date=%q start=%q): %w", b.ID, b.Date, b.StartTime, ErrUnparseableTime)
}

func fromAbsolute(b model.Booking, loc *time.Location) (time.Time, bool) {
	if b.StartAt == nil || b.StartAt.IsZero() {
		return time.Time{}, false
	}
	return b.StartAt.In(loc), true
}

func fromTimestamp(b model.Booking, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(b.StartTime)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.In(loc), true
}

func fromWallClock(b model.Booking, loc *time.Location) (time.Time, bool) {
	day, ok := parseDate(b.Date, loc)
	if !ok {
		return time.Time{}, false
	}
	clock, ok := parseClock(b.StartTime)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc), true
}

// ParseClock parses a wall-clock string such as "2:30 PM" or "14:30".
// Only the hour, minute and second of the result are meaningful.
func ParseClock(s string) (time.Time, bool) { return parseClock(s) }

func parseClock(s string) (time.Time, bool) {
	norm := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	if norm == "" {
		return time.Time{}, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BookingDay returns the calendar day of b in loc.  The Date field wins;
// without it the day of the resolved start is used.
func BookingDay(b model.Booking, loc *time.Location) (string, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if d, ok := parseDate(b.Date, loc); ok {
		return d.Format(DateLayout), true
	}
	if t, err := EffectiveStart(b, loc); err == nil {
		return t.Format(DateLayout), true
	}
	return "", false
}

// CombineDateClock builds an instant from a "2006-01-02" date and a
// wall-clock or RFC 3339 start string.  It backs request parsing for the
// conflict gate so candidates use the same strategies as stored bookings.
func CombineDateClock(date, start string, loc *time.Location) (time.Time, error) {
	b := model.Booking{Date: date, StartTime: start}
	t, err := EffectiveStart(b, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	return t, nil
}
