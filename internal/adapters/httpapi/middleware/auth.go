package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuthMiddleware.
const (
	UserIDKey    = "userID"
	SessionIDKey = "sessionID"
	TokenKey     = "token"
)

// AuthPath is where browsers without a session are sent, and TimelinePath
// where signed-in browsers land.
const (
	AuthPath     = "/auth"
	TimelinePath = "/timeline"
)

// SessionValidator resolves a bearer token to a signed-in user.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (userID, sessionID string, expiresAt time.Time, err error)
}

// JWTAuthMiddleware requires a valid session. Browser navigations without
// one are redirected to the sign-in page; API calls get 401.
func JWTAuthMiddleware(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			deny(c, "missing token")
			return
		}
		userID, sessionID, _, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			deny(c, "invalid or expired session")
			return
		}
		c.Set(UserIDKey, userID)
		c.Set(SessionIDKey, sessionID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// RedirectAuthenticated sends browsers that already hold a valid session
// from the sign-in page to the timeline.
func RedirectAuthenticated(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearer(c); token != "" && wantsHTML(c) {
			if _, _, _, err := sessions.Validate(c.Request.Context(), token); err == nil {
				c.Redirect(http.StatusFound, TimelinePath)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// bearer reads the token from the Authorization header, then from the
// session cookie browsers carry, then from the access_token query parameter
// EventSource clients use.
func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
		return ""
	}
	if t, err := c.Cookie("session"); err == nil && t != "" {
		return t
	}
	return c.Query("access_token")
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

func deny(c *gin.Context, msg string) {
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, AuthPath)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
