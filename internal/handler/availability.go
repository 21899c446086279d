package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-live-queue/internal/model"
	"github.com/iliyamo/salon-live-queue/internal/repository"
	"github.com/iliyamo/salon-live-queue/internal/scheduler"
)

type availabilityRequest struct {
	StaffID     string `json:"staff_id"`
	Date        string `json:"date"`       // 2006-01-02
	StartTime   string `json:"start_time"` // "2:30 PM", "14:30" or RFC 3339
	DurationMin int    `json:"duration_min"`
}

// CheckAvailability handles POST /v1/shops/:id/availability/check.  It is
// the authoritative gate booking-management calls before persisting a new
// booking: the candidate is checked against the staff member's confirmed
// and in-service bookings as they are in the store right now.
//
//	200 {"available": true}
//	400 malformed candidate
//	404 unknown staff
//	409 {"error": "this time is already booked", "conflicts": [...]}
func (h *QueueHandler) CheckAvailability(c echo.Context) error {
	shopID := strings.TrimSpace(c.Param("id"))
	var body availabilityRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.StaffID = strings.TrimSpace(body.StaffID)
	body.Date = strings.TrimSpace(body.Date)
	if body.StaffID == "" || body.Date == "" || strings.TrimSpace(body.StartTime) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "staff_id, date and start_time are required"})
	}
	if body.DurationMin <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_min must be greater than zero"})
	}
	start, err := scheduler.CombineDateClock(body.Date, body.StartTime, h.Location)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date or start_time"})
	}

	blocked, status, err := h.blockedFor(c, shopID, body.StaffID, body.Date)
	if err != nil {
		return c.JSON(status, echo.Map{"error": err.Error()})
	}

	cand := scheduler.Candidate{StaffID: body.StaffID, Date: body.Date, Start: start, DurationMin: body.DurationMin}
	err = scheduler.CheckAvailability(cand, blocked)
	var conflict *scheduler.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     scheduler.ErrSlotTaken.Error(),
			"conflicts": conflict.Conflicts,
		})
	case errors.Is(err, scheduler.ErrInvalidInterval):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"available": true})
}

// GetBlocked handles GET /v1/shops/:id/staff/:staffId/blocked?date=.  The
// booking form uses it for an optimistic pre-check; date defaults to
// today in the shop's zone.
func (h *QueueHandler) GetBlocked(c echo.Context) error {
	shopID := strings.TrimSpace(c.Param("id"))
	staffID := strings.TrimSpace(c.Param("staffId"))
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		date = time.Now().In(h.Location).Format(scheduler.DateLayout)
	} else if _, err := time.Parse(scheduler.DateLayout, date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	blocked, status, err := h.blockedFor(c, shopID, staffID, date)
	if err != nil {
		return c.JSON(status, echo.Map{"error": err.Error()})
	}
	if blocked == nil {
		blocked = []model.BlockedInterval{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"staff_id": staffID,
		"date":     date,
		"blocked":  blocked,
	})
}

// blockedFor loads the blocked intervals of a shop's staff member on date.
// On failure it returns the status to respond with.
func (h *QueueHandler) blockedFor(c echo.Context, shopID, staffID, date string) ([]model.BlockedInterval, int, error) {
	ctx := c.Request().Context()
	if _, err := h.Staff.GetByIDAndShop(ctx, staffID, shopID); err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return nil, http.StatusNotFound, errors.New("staff not found")
		}
		c.Logger().Errorf("availability: staff %s: %v", staffID, err)
		return nil, http.StatusInternalServerError, errors.New("failed to load staff")
	}
	bookings, err := h.Bookings.ListBookingsForStaff(ctx, staffID, date)
	if err != nil {
		c.Logger().Errorf("availability: bookings of %s on %s: %v", staffID, date, err)
		return nil, http.StatusInternalServerError, errors.New("failed to load bookings")
	}
	blocked, errs := scheduler.BlockedIntervals(bookings, h.Location)
	for _, e := range errs {
		c.Logger().Warnf("availability: skipped booking: %v", e)
	}
	return blocked, 0, nil
}
