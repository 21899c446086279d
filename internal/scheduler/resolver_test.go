package scheduler

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

func TestResolveInServiceAndQueue(t *testing.T) {
	now := testNow()
	bookings := []model.Booking{
		booking("late", model.BookingConfirmed, now.Add(time.Hour), 30),
		booking("chair", model.BookingInService, now.Add(-5*time.Minute), 30),
		booking("next", model.BookingPending, now, 20),
		booking("done", model.BookingCompleted, now.Add(-time.Hour), 30),
		booking("gone", model.BookingCancelled, now.Add(30*time.Minute), 30),
	}
	other := booking("foreign", model.BookingConfirmed, now, 30)
	other.StaffID = "s2"
	bookings = append(bookings, other)

	seat := Resolve("s1", bookings, now)
	if seat.StaffID != "s1" {
		t.Fatalf("unexpected staff %q", seat.StaffID)
	}
	if seat.Current == nil || seat.Current.ID != "chair" {
		t.Fatalf("expected chair to be current, got %+v", seat.Current)
	}
	if got, want := queueIDs(seat), []string{"next", "late"}; !equalIDs(got, want) {
		t.Fatalf("expected queue %v, got %v", want, got)
	}
	if !seat.Queue[0].Blocked || seat.Queue[1].Blocked {
		t.Fatalf("unexpected blocked flags: %+v", seat.Queue)
	}
}

func TestResolvePendingPointerIsNeverCurrent(t *testing.T) {
	now := testNow()
	bookings := []model.Booking{
		booking("p1", model.BookingPending, now.Add(-5*time.Minute), 30),
		booking("c1", model.BookingConfirmed, now.Add(30*time.Minute), 30),
	}

	seat, errs := ResolveCurrent("s1", "p1", bookings, now)
	if seat.Current != nil {
		t.Fatalf("pending booking occupies the chair: %+v", seat.Current)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInconsistentCurrent) {
		t.Fatalf("expected ErrInconsistentCurrent, got %v", errs)
	}
	if got, want := queueIDs(seat), []string{"p1", "c1"}; !equalIDs(got, want) {
		t.Fatalf("expected pending booking back in queue %v, got %v", want, got)
	}
	if !seat.Queue[0].Blocked {
		t.Fatal("reinserted pending booking must be blocked")
	}
}

func TestResolvePendingPointerFallsBackToInService(t *testing.T) {
	now := testNow()
	bookings := []model.Booking{
		booking("p1", model.BookingPending, now, 30),
		booking("svc", model.BookingInService, now.Add(-10*time.Minute), 30),
	}

	seat, errs := ResolveCurrent("s1", "p1", bookings, now)
	if seat.Current == nil || seat.Current.ID != "svc" {
		t.Fatalf("expected in-service booking as current, got %+v", seat.Current)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInconsistentCurrent) {
		t.Fatalf("expected ErrInconsistentCurrent, got %v", errs)
	}
	if got := queueIDs(seat); !equalIDs(got, []string{"p1"}) {
		t.Fatalf("unexpected queue %v", got)
	}
}

func TestResolveConfirmedPointer(t *testing.T) {
	now := testNow()
	bookings := []model.Booking{
		booking("c1", model.BookingConfirmed, now.Add(-2*time.Minute), 30),
		booking("c2", model.BookingConfirmed, now.Add(30*time.Minute), 30),
	}

	seat, errs := ResolveCurrent("s1", "c1", bookings, now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if seat.Current == nil || seat.Current.ID != "c1" {
		t.Fatalf("expected c1 as current, got %+v", seat.Current)
	}
	if got := queueIDs(seat); !equalIDs(got, []string{"c2"}) {
		t.Fatalf("unexpected queue %v", got)
	}
}

func TestResolveInServiceOutranksConfirmedPointer(t *testing.T) {
	now := testNow()
	bookings := []model.Booking{
		booking("c1", model.BookingConfirmed, now.Add(-20*time.Minute), 30),
		booking("svc", model.BookingInService, now.Add(-5*time.Minute), 30),
		booking("c2", model.BookingConfirmed, now.Add(30*time.Minute), 30),
	}

	seat, errs := ResolveCurrent("s1", "c1", bookings, now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if seat.Current == nil || seat.Current.ID != "svc" {
		t.Fatalf("expected in-service booking in the chair, got %+v", seat.Current)
	}
	if got, want := queueIDs(seat), []string{"c1", "c2"}; !equalIDs(got, want) {
		t.Fatalf("expected queue %v, got %v", want, got)
	}

	// The pointer still wins among in-service bookings.
	bookings = append(bookings, booking("svc2", model.BookingInService, now.Add(-time.Minute), 30))
	seat, _ = ResolveCurrent("s1", "svc2", bookings, now)
	if seat.Current == nil || seat.Current.ID != "svc2" {
		t.Fatalf("expected svc2 in the chair, got %+v", seat.Current)
	}
}

func TestResolveSeveralInService(t *testing.T) {
	now := testNow()
	bookings := []model.Booking{
		booking("second", model.BookingInService, now.Add(-5*time.Minute), 30),
		booking("first", model.BookingInService, now.Add(-20*time.Minute), 30),
	}

	seat := Resolve("s1", bookings, now)
	if seat.Current == nil || seat.Current.ID != "first" {
		t.Fatalf("expected earliest in-service booking as current, got %+v", seat.Current)
	}
	if len(seat.Queue) != 1 || seat.Queue[0].ID != "second" || seat.Queue[0].Blocked {
		t.Fatalf("expected the other in-service booking queued unblocked, got %+v", seat.Queue)
	}
}

func TestResolveDeduplicatesByID(t *testing.T) {
	now := testNow()
	first := booking("dup", model.BookingConfirmed, now.Add(10*time.Minute), 30)
	second := booking("dup", model.BookingPending, now.Add(50*time.Minute), 30)

	seat := Resolve("s1", []model.Booking{first, second}, now)
	if len(seat.Queue) != 1 {
		t.Fatalf("expected one entry, got %d", len(seat.Queue))
	}
	if seat.Queue[0].Status != model.BookingConfirmed {
		t.Fatalf("expected first occurrence to win, got %s", seat.Queue[0].Status)
	}
}

func TestResolveUnparseableSortsLastAndTiesKeepOrder(t *testing.T) {
	now := testNow()
	broken := model.Booking{ID: "broken", StaffID: "s1", DurationMin: 15, Date: "2024-03-15", StartTime: "whenever", Status: model.BookingPending}
	a := booking("a", model.BookingConfirmed, now.Add(time.Hour), 30)
	b := booking("b", model.BookingPending, now.Add(time.Hour), 30)
	early := booking("early", model.BookingConfirmed, now.Add(15*time.Minute), 30)

	seat, errs := ResolveCurrent("s1", "", []model.Booking{broken, a, b, early}, now)
	if got, want := queueIDs(seat), []string{"early", "a", "b", "broken"}; !equalIDs(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnparseableTime) {
		t.Fatalf("expected ErrUnparseableTime, got %v", errs)
	}
}

func TestResolveIsIdempotentAndDoesNotAlias(t *testing.T) {
	now := testNow()
	bookings := []model.Booking{
		booking("svc", model.BookingInService, now.Add(-5*time.Minute), 30),
		booking("p", model.BookingPending, now, 20),
		booking("c", model.BookingConfirmed, now.Add(40*time.Minute), 15),
	}

	first := Resolve("s1", bookings, now)
	second := Resolve("s1", bookings, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolve is not idempotent:\n%+v\n%+v", first, second)
	}

	first.Current.Status = model.BookingCompleted
	*first.Current.StartAt = now.Add(time.Hour)
	if bookings[0].Status != model.BookingInService || !bookings[0].StartAt.Equal(now.Add(-5*time.Minute)) {
		t.Fatal("mutating the seat view changed the input bookings")
	}
}

func TestResolveNeverSeatsPendingOrRepeatsCurrent(t *testing.T) {
	now := testNow()
	statuses := []model.BookingStatus{
		model.BookingPending, model.BookingConfirmed, model.BookingInService,
		model.BookingCompleted, model.BookingCancelled,
	}
	var bookings []model.Booking
	for i, st := range statuses {
		for j := 0; j < 3; j++ {
			id := string(st) + "-" + string(rune('a'+j))
			bookings = append(bookings, booking(id, st, now.Add(time.Duration(i*10+j)*time.Minute), 20))
		}
	}

	for _, b := range bookings {
		seat, _ := ResolveCurrent("s1", b.ID, bookings, now)
		if seat.Current == nil || seat.Current.Status != model.BookingInService {
			t.Fatalf("pointer %s: expected an in-service booking current, got %+v", b.ID, seat.Current)
		}
		seen := map[string]bool{}
		for _, q := range seat.Queue {
			if seat.Current != nil && q.ID == seat.Current.ID {
				t.Fatalf("pointer %s: current %s also queued", b.ID, q.ID)
			}
			if seen[q.ID] {
				t.Fatalf("pointer %s: %s queued twice", b.ID, q.ID)
			}
			seen[q.ID] = true
			if q.Blocked != (q.Status == model.BookingPending) {
				t.Fatalf("pointer %s: wrong blocked flag on %s", b.ID, q.ID)
			}
		}
	}
}
