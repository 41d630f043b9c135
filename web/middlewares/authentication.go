package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/web/common"
)

const instanceContextKey = "instance"

// InstanceAuthentication checks for a valid instance bearer token and puts
// the resolved instance into the request context.
func InstanceAuthentication(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse(common.CodeUnauthorized, "Missing bearer token"))
			return
		}

		inst, err := core.VerifyInstanceToken(db, parts[1])
		if err != nil {
			if errors.Is(err, core.ErrInstanceNotActive) {
				c.AbortWithStatusJSON(http.StatusForbidden,
					common.NewErrorResponse(common.CodeForbidden, "Instance is not active"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse(common.CodeUnauthorized, "Invalid token"))
			return
		}

		c.Set(instanceContextKey, inst)
		c.Next()
	}
}

// InstanceFromContext returns the authenticated instance set by
// InstanceAuthentication.
func InstanceFromContext(c *gin.Context) *model.Instance {
	value, ok := c.Get(instanceContextKey)
	if !ok {
		return nil
	}
	inst, _ := value.(*model.Instance)
	return inst
}
