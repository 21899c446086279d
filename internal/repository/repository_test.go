package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

var bookingCols = []string{
	"id", "staff_id", "shop_id", "customer_id", "service_name", "price_cents", "duration_min",
	"booking_date", "start_time", "start_at", "status", "created_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestListBookingsForStaff(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	startAt := time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(bookingCols).
		AddRow("b1", "s1", "shop1", "c1", "Haircut", int64(2500), int64(30), "2024-03-15", "10:00", startAt, "confirmed", created).
		AddRow("b2", "s1", "shop1", "c2", "Beard trim", int64(1200), int64(15), "2024-03-15", "2:30 PM", nil, "pending", created.Add(time.Minute))
	mock.ExpectQuery(`FROM bookings\s+WHERE staff_id = \? AND booking_date = \?\s+ORDER BY created_at, id`).
		WithArgs("s1", "2024-03-15").
		WillReturnRows(rows)

	got, err := NewBookingRepo(db).ListBookingsForStaff(context.Background(), "s1", "2024-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(got))
	}
	if got[0].StartAt == nil || !got[0].StartAt.Equal(startAt) || got[0].Status != model.BookingConfirmed {
		t.Fatalf("unexpected first booking: %+v", got[0])
	}
	if got[1].StartAt != nil || got[1].StartTime != "2:30 PM" || got[1].PriceCents != 1200 || got[1].DurationMin != 15 {
		t.Fatalf("unexpected second booking: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListBookingsForShopWrapsErrors(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM bookings\s+WHERE shop_id = \?`).WithArgs("shop1", "2024-03-15").WillReturnError(boom)

	_, err := NewBookingRepo(db).ListBookingsForShop(context.Background(), "shop1", "2024-03-15")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestBookingGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM bookings WHERE id = \?`).WithArgs("missing").WillReturnRows(sqlmock.NewRows(bookingCols))

	if _, err := NewBookingRepo(db).GetByID(context.Background(), "missing"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestListStaffByShop(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "shop_id", "name", "role", "is_active", "current_booking_id"}).
		AddRow("s1", "shop1", "Ana", "Stylist", true, "b1").
		AddRow("s2", "shop1", "Ben", "Barber", false, nil)
	mock.ExpectQuery(`FROM staff\s+WHERE shop_id = \?`).WithArgs("shop1").WillReturnRows(rows)

	got, err := NewStore(db).ListStaffByShop(context.Background(), "shop1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].CurrentBookingID != "b1" || !got[0].Active {
		t.Fatalf("unexpected staff: %+v", got)
	}
	if got[1].CurrentBookingID != "" || got[1].Active {
		t.Fatalf("unexpected second staff: %+v", got[1])
	}
}

func TestStaffGetByIDAndShop(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM staff WHERE id = \? AND shop_id = \?`).
		WithArgs("s9", "shop1").
		WillReturnError(sql.ErrNoRows)

	if _, err := NewStaffRepo(db).GetByIDAndShop(context.Background(), "s9", "shop1"); !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
}
