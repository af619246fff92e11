package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "X-Session-Id"

	actorKey     = "actor"
	userIDKey    = "user_id"
	sessionIDKey = "session_id"

	// systemActor stamps requests that carry no user.
	systemActor = "System"
)

// ActorMiddleware resolves who is calling. Identity is asserted by the
// upstream gateway through headers; this service does no authentication.
func ActorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			sessionID := strings.TrimSpace(c.Request().Header.Get(HeaderSessionID))

			actor := userID
			if actor == "" {
				actor = systemActor
			}

			c.Set(actorKey, actor)
			c.Set(userIDKey, userID)
			c.Set(sessionIDKey, sessionID)
			return next(c)
		}
	}
}

func Actor(c echo.Context) string {
	if v, ok := c.Get(actorKey).(string); ok && v != "" {
		return v
	}
	return systemActor
}

func UserID(c echo.Context) string {
	v, _ := c.Get(userIDKey).(string)
	return v
}

func SessionID(c echo.Context) string {
	v, _ := c.Get(sessionIDKey).(string)
	return v
}
