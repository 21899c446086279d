package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// BookingRepo reads bookings.  Rows come back in creation order so that
// equal start times keep a stable order in the seat resolver.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo with the given DB handle.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

const bookingColumns = `id, staff_id, shop_id, customer_id, service_name, price_cents, duration_min,
	       DATE_FORMAT(booking_date, '%Y-%m-%d'), start_time, start_at, status, created_at`

// ListBookingsForStaff returns every booking of a staff member on date
// ("2006-01-02"), whatever its status.
func (r *BookingRepo) ListBookingsForStaff(ctx context.Context, staffID, date string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
	           FROM bookings
	           WHERE staff_id = ? AND booking_date = ?
	           ORDER BY created_at, id`
	return r.list(ctx, q, staffID, date)
}

// ListBookingsForShop returns every booking of a shop on date.
func (r *BookingRepo) ListBookingsForShop(ctx context.Context, shopID, date string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
	           FROM bookings
	           WHERE shop_id = ? AND booking_date = ?
	           ORDER BY created_at, id`
	return r.list(ctx, q, shopID, date)
}

// GetByID retrieves a booking by its id.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
	           FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var result []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b       model.Booking
		status  string
		startAt sql.NullTime
	)
	if err := row.Scan(
		&b.ID, &b.StaffID, &b.ShopID, &b.CustomerID, &b.ServiceName, &b.PriceCents, &b.DurationMin,
		&b.Date, &b.StartTime, &startAt, &status, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if startAt.Valid {
		t := startAt.Time
		b.StartAt = &t
	}
	return &b, nil
}
