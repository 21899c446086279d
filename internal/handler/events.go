package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-live-queue/internal/queue"
	"github.com/iliyamo/salon-live-queue/internal/repository"
)

// PostEvent handles POST /v1/internal/events, the synchronous entry point
// booking-management calls after persisting a booking change.  The body is
// the same BookingEvent that travels over RabbitMQ.  When the body omits
// the booking row it is read from the store so the room can route the
// event to the right staff member and day.
func (h *QueueHandler) PostEvent(c echo.Context) error {
	var ev queue.BookingEvent
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ev.BookingID = strings.TrimSpace(ev.BookingID)

	if ev.Booking == nil && ev.BookingID != "" && h.Bookings != nil {
		b, err := h.Bookings.GetByID(c.Request().Context(), ev.BookingID)
		switch {
		case err == nil:
			ev.Booking = b
		case errors.Is(err, repository.ErrBookingNotFound):
			// deleted rows still refresh the staff member named in the event
		default:
			c.Logger().Warnf("events: hydrate booking %s: %v", ev.BookingID, err)
		}
	}

	m := ev.Mutation()
	if err := m.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Events.Publish(c.Request().Context(), m); err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "accepted"})
}
