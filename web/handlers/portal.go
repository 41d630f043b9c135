package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/web/common"
)

// PortalEndpoint serves email+password login and password reset for portal
// users.
type PortalEndpoint struct {
	db *gorm.DB
}

func RegisterPortalRoutes(r *gin.RouterGroup, db *gorm.DB, loginLimiter gin.HandlerFunc) {
	endpoint := &PortalEndpoint{db: db}
	r.POST("/portal/login", loginLimiter, endpoint.Login)
	r.POST("/portal/reset", loginLimiter, endpoint.Reset)
}

type PortalLoginDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges portal credentials for the linked instance's bearer token.
func (ep *PortalEndpoint) Login(c *gin.Context) {
	var dto PortalLoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	token, inst, err := core.PortalLogin(ep.db, dto.Email, dto.Password)
	if err != nil {
		if errors.Is(err, core.ErrLoginFailed) {
			c.JSON(http.StatusUnauthorized, common.NewErrorResponse(common.CodeUnauthorized, "Invalid credentials"))
			return
		}
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Login failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        token,
		"instance_id":  inst.ID,
		"display_name": inst.DisplayName,
	})
}

type PortalResetDTO struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// Reset consumes an emailed single-use token and sets the new password.
func (ep *PortalEndpoint) Reset(c *gin.Context) {
	var dto PortalResetDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	if err := core.ConsumeResetToken(ep.db, dto.Token, dto.Password); err != nil {
		if errors.Is(err, core.ErrInvalidResetToken) {
			c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, "Invalid or expired reset token"))
			return
		}
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Reset failed"))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}
