package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hcasc.cz/dagmar/security"
	"hcasc.cz/dagmar/web/common"
)

const sessionContextKey = "admin_session"

// AdminSessionConfig carries everything the session middlewares need.
type AdminSessionConfig struct {
	CookieName   string
	Secret       []byte
	MaxAge       time.Duration
	CookieSecure bool
	RotateCSRF   time.Duration
}

// AdminAuthentication decodes and validates the signed session cookie. Any
// failure is a plain 401; the cookie contents are never echoed back.
func AdminAuthentication(cfg AdminSessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(cfg.CookieName)
		if err != nil || value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse(common.CodeUnauthorized, "Not logged in"))
			return
		}
		payload, ok := security.DecodeSession(value, cfg.Secret)
		if !ok || payload.Expired(time.Now(), cfg.MaxAge) {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse(common.CodeUnauthorized, "Session expired"))
			return
		}
		c.Set(sessionContextKey, payload)
		c.Next()
	}
}

// SessionFromContext returns the decoded admin session payload.
func SessionFromContext(c *gin.Context) (security.SessionPayload, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return security.SessionPayload{}, false
	}
	payload, ok := value.(security.SessionPayload)
	return payload, ok
}
