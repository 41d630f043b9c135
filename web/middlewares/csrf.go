package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hcasc.cz/dagmar/security"
	"hcasc.cz/dagmar/web/common"
)

// CSRFGuard enforces the double-check on state-changing admin requests. The
// expected token lives inside the signed session payload; the client proves
// possession via the X-CSRF-Token header, the mirror cookie, or the
// csrf_token form field.
func CSRFGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		payload, ok := SessionFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse(common.CodeUnauthorized, "Not logged in"))
			return
		}

		provided := c.GetHeader(security.CSRFHeaderName)
		if provided == "" {
			if cookie, err := c.Cookie(security.CSRFCookieName); err == nil {
				provided = cookie
			}
		}
		if provided == "" {
			provided = c.PostForm(security.CSRFFormFieldName)
		}

		if !security.CheckCSRFToken(payload.CSRFToken, provided) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				common.NewErrorResponse(common.CodeCSRF, "CSRF validation failed"))
			return
		}
		c.Next()
	}
}
