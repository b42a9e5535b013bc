package auth

import (
	"context"
	"log/slog"
	"net/http"

	dom "taskhub/internal/domain"

	"github.com/gin-gonic/gin"
)

const sessionCookieName = "session_id"

const (
	contextKeyUserID   = "user_id"
	contextKeyUsername = "username"
	contextKeyUser     = "current_user"
)

// UserLookup resolves a user id to the full user record.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (dom.User, error)
}

// UserIDFromContext returns the current user ID set by the session gates.
// 0 if not set.
func UserIDFromContext(c *gin.Context) int64 {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0
	}
	id, ok := v.(int64)
	if !ok {
		return 0
	}
	return id
}

// UsernameFromContext returns the session's username, "" if anonymous.
func UsernameFromContext(c *gin.Context) string {
	v, ok := c.Get(contextKeyUsername)
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}

// UserFromContext returns the enriched user record attached by CurrentUser.
func UserFromContext(c *gin.Context) (dom.User, bool) {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return dom.User{}, false
	}
	u, ok := v.(dom.User)
	return u, ok
}

// CurrentUser runs on every request. If the request carries a valid session
// it resolves the user and attaches it to the context for page rendering.
// Every failure here is non-fatal: the request continues anonymous.
func CurrentUser(sessions Sessions, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(sessionCookieName)
		if err != nil || cookie == "" {
			c.Next()
			return
		}
		sess, ok := sessions.Get(c.Request.Context(), cookie)
		if !ok {
			c.Next()
			return
		}
		u, err := users.GetByID(c.Request.Context(), sess.UserID)
		if err != nil {
			// The user may have been removed after the session was issued.
			slog.Debug("session user lookup failed", "user_id", sess.UserID, "err", err)
			c.Next()
			return
		}
		c.Set(contextKeyUser, u)
		c.Next()
	}
}

// RequireLogin gates page routes: without a valid session the request is
// redirected to the login page instead of getting an error body.
func RequireLogin(sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFromRequest(c, sessions)
		if !ok {
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
			return
		}
		c.Set(contextKeyUserID, sess.UserID)
		c.Set(contextKeyUsername, sess.Username)
		c.Next()
	}
}

// RequireSession gates JSON API routes: without a valid session the request
// gets a 401, never a redirect.
func RequireSession(sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessionFromRequest(c, sessions)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Set(contextKeyUserID, sess.UserID)
		c.Set(contextKeyUsername, sess.Username)
		c.Next()
	}
}

func sessionFromRequest(c *gin.Context, sessions Sessions) (Session, bool) {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie == "" {
		return Session{}, false
	}
	return sessions.Get(c.Request.Context(), cookie)
}
