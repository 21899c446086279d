package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-live-queue/internal/handler"
	"github.com/iliyamo/salon-live-queue/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterQueue registers the live-queue API.
//
// Public endpoints serve queue displays and booking forms: the current
// snapshot, the WebSocket stream and the blocked intervals of a staff
// member.  Polled snapshots pass through cache.  The availability check
// is public too but passes through limiter, since it is the one endpoint
// that reads the store on every call.  Booking-management pushes mutation events through the internal
// group, which requires a JWT carrying one of the OWNER, STAFF or SERVICE
// roles.
func RegisterQueue(e *echo.Echo, h *handler.QueueHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	shops := e.Group("/v1/shops/:id")
	shops.GET("/queue", h.GetQueue, cache)
	shops.GET("/live", h.Live)
	shops.GET("/staff/:staffId/blocked", h.GetBlocked)
	shops.POST("/availability/check", h.CheckAvailability, limiter)

	internal := e.Group("/v1/internal")
	internal.Use(middleware.JWTAuth(jwtSecret))
	internal.Use(middleware.RequireRole("OWNER", "STAFF", "SERVICE"))
	internal.POST("/events", h.PostEvent)
}
