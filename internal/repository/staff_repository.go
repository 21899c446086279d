package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// StaffRepo reads staff members.
type StaffRepo struct {
	db *sql.DB
}

// NewStaffRepo constructs a StaffRepo with the given DB handle.
func NewStaffRepo(db *sql.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

// ListStaffByShop returns all staff of a shop, active or not, ordered by
// name.  The aggregator drops inactive members itself.
func (r *StaffRepo) ListStaffByShop(ctx context.Context, shopID string) ([]model.Staff, error) {
	const q = `SELECT id, shop_id, name, role, is_active, current_booking_id
	           FROM staff
	           WHERE shop_id = ?
	           ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, q, shopID)
	if err != nil {
		return nil, fmt.Errorf("query staff: %w", err)
	}
	defer rows.Close()

	var result []model.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByIDAndShop retrieves a staff member while enforcing that it works at
// shopID.  A member of another shop is reported as ErrStaffNotFound.
func (r *StaffRepo) GetByIDAndShop(ctx context.Context, id, shopID string) (*model.Staff, error) {
	const q = `SELECT id, shop_id, name, role, is_active, current_booking_id
	           FROM staff WHERE id = ? AND shop_id = ?`
	s, err := scanStaff(r.db.QueryRowContext(ctx, q, id, shopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	return s, nil
}

func scanStaff(row rowScanner) (*model.Staff, error) {
	var (
		s       model.Staff
		current sql.NullString
	)
	if err := row.Scan(&s.ID, &s.ShopID, &s.Name, &s.Role, &s.Active, &current); err != nil {
		return nil, err
	}
	if current.Valid {
		s.CurrentBookingID = current.String
	}
	return &s, nil
}
