package common

import (
	"net/http"
	"time"

	"github.com/jo-hoe/iconforge/internal/core"
	"github.com/labstack/echo/v4"
)

// SessionCookieName is the cookie carrying the browser's session id
const SessionCookieName = "iconforge_session"

// ResolveSession returns the caller's session, creating one and setting the cookie when needed
func ResolveSession(c echo.Context, store *core.SessionStore, ttl time.Duration) *core.Session {
	id := ""
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		id = cookie.Value
	}

	session := store.GetOrCreate(id)
	if session.ID != id {
		c.SetCookie(&http.Cookie{
			Name:     SessionCookieName,
			Value:    session.ID,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return session
}

// SetNoCache keeps browsers and the offline cache from storing the response
func SetNoCache(c echo.Context) {
	c.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Response().Header().Set("Pragma", "no-cache")
	c.Response().Header().Set("Expires", "0")
}
