package middleware

// identity.go extracts caller identity for rate-limit keys.  Public queue
// endpoints are anonymous, so the client IP and the shop in the path are
// usually all there is.

import "github.com/labstack/echo/v4"

// callerID returns the JWT subject stored by JWTAuth, or "anon".
func callerID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

// shopID returns the :id path parameter, or "none" on routes without it.
func shopID(c echo.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return "none"
}

// clientIP returns the client address as Echo resolves it.
func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}
