package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-live-queue/internal/model"
	"github.com/iliyamo/salon-live-queue/internal/realtime"
)

// StaffFinder looks up one staff member of a shop.
type StaffFinder interface {
	GetByIDAndShop(ctx context.Context, id, shopID string) (*model.Staff, error)
}

// BookingFinder reads persisted bookings.
type BookingFinder interface {
	ListBookingsForStaff(ctx context.Context, staffID, date string) ([]model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
}

// QueueHandler serves the live-queue endpoints.  Rooms holds the per-shop
// broadcasters, Events routes booking mutations to them, and the finders
// back the conflict gate.
type QueueHandler struct {
	Rooms    *realtime.Manager
	Events   realtime.Publisher
	Staff    StaffFinder
	Bookings BookingFinder
	Location *time.Location
	// SubscriberBuffer is the outbound queue length of a live connection.
	SubscriberBuffer int
}

// NewQueueHandler wires a handler; loc defaults to UTC.
func NewQueueHandler(rooms *realtime.Manager, events realtime.Publisher, staff StaffFinder, bookings BookingFinder, loc *time.Location, buffer int) *QueueHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &QueueHandler{
		Rooms:            rooms,
		Events:           events,
		Staff:            staff,
		Bookings:         bookings,
		Location:         loc,
		SubscriberBuffer: buffer,
	}
}

// GetQueue handles GET /v1/shops/:id/queue and returns the shop's current
// snapshot: every active staff member's seat and wait estimate.
func (h *QueueHandler) GetQueue(c echo.Context) error {
	shopID := strings.TrimSpace(c.Param("id"))
	if shopID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing shop id"})
	}
	snap, err := h.Rooms.Snapshot(c.Request().Context(), shopID)
	if err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// roomError maps a room failure to a response.
func roomError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, realtime.ErrRoomClosed):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "shutting down"})
	case errors.Is(err, realtime.ErrInvalidEvent):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "queue busy, try again"})
	}
	c.Logger().Errorf("queue: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load queue"})
}
