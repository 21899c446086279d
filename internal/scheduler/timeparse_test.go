package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

func TestEffectiveStartStrategies(t *testing.T) {
	abs := mustTime(t, "2024-03-15T08:00:00Z")
	cases := []struct {
		name string
		b    model.Booking
		want time.Time
	}{
		{
			name: "absolute wins over wall clock",
			b:    model.Booking{ID: "a", Date: "2024-03-15", StartTime: "2:30 PM", StartAt: &abs},
			want: abs,
		},
		{
			name: "rfc3339 start time",
			b:    model.Booking{ID: "b", StartTime: "2024-03-15T11:30:00+03:00"},
			want: time.Date(2024, 3, 15, 11, 30, 0, 0, testZone),
		},
		{
			name: "12-hour clock",
			b:    model.Booking{ID: "c", Date: "2024-03-15", StartTime: "2:30 pm"},
			want: time.Date(2024, 3, 15, 14, 30, 0, 0, testZone),
		},
		{
			name: "12-hour clock without space",
			b:    model.Booking{ID: "d", Date: "2024-03-15", StartTime: "9:05AM"},
			want: time.Date(2024, 3, 15, 9, 5, 0, 0, testZone),
		},
		{
			name: "hour only",
			b:    model.Booking{ID: "e", Date: "2024-03-15", StartTime: "11 AM"},
			want: time.Date(2024, 3, 15, 11, 0, 0, 0, testZone),
		},
		{
			name: "24-hour clock",
			b:    model.Booking{ID: "f", Date: "2024-03-15", StartTime: "16:45"},
			want: time.Date(2024, 3, 15, 16, 45, 0, 0, testZone),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EffectiveStart(tc.b, testZone)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestEffectiveStartUnparseable(t *testing.T) {
	for _, b := range []model.Booking{
		{ID: "no-date", StartTime: "2:30 PM"},
		{ID: "garbage", Date: "2024-03-15", StartTime: "after lunch"},
		{ID: "empty", Date: "2024-03-15"},
	} {
		if _, err := EffectiveStart(b, testZone); !errors.Is(err, ErrUnparseableTime) {
			t.Fatalf("%s: expected ErrUnparseableTime, got %v", b.ID, err)
		}
	}
}

func TestBookingDay(t *testing.T) {
	abs := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)
	day, ok := BookingDay(model.Booking{StartAt: &abs}, testZone)
	if !ok || day != "2024-03-16" {
		t.Fatalf("expected day in shop zone 2024-03-16, got %q (%v)", day, ok)
	}
	if _, ok := BookingDay(model.Booking{StartTime: "noon"}, testZone); ok {
		t.Fatal("expected no day for undateable booking")
	}
}

func TestCombineDateClock(t *testing.T) {
	got, err := CombineDateClock("2024-03-15", "14:30", testZone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 3, 15, 14, 30, 0, 0, testZone); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if _, err := CombineDateClock("2024-03-15", "late", testZone); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}
