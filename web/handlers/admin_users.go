package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/infrastructure/communication"
	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/web/common"
)

// AdminUsersEndpoint serves portal user management.
type AdminUsersEndpoint struct {
	db            *gorm.DB
	secret        []byte
	publicBaseURL string
	logger        *zap.Logger
}

func RegisterAdminUserRoutes(r *gin.RouterGroup, db *gorm.DB, appSecret []byte, publicBaseURL string, logger *zap.Logger) {
	endpoint := &AdminUsersEndpoint{db: db, secret: appSecret, publicBaseURL: publicBaseURL, logger: logger}
	r.GET("/admin/users", endpoint.List)
	r.POST("/admin/users", endpoint.Create)
	r.PUT("/admin/users/:id", endpoint.Update)
	r.DELETE("/admin/users/:id", endpoint.Delete)
	r.POST("/admin/users/:id/send-reset", endpoint.SendReset)
}

type PortalUserDTO struct {
	ID          uint    `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Phone       *string `json:"phone"`
	Role        string  `json:"role"`
	IsActive    bool    `json:"is_active"`
	InstanceID  *string `json:"instance_id"`
	HasPassword bool    `json:"has_password"`
}

func toPortalUserDTO(u *model.PortalUser) PortalUserDTO {
	return PortalUserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		Role:        string(u.Role),
		IsActive:    u.IsActive,
		InstanceID:  u.InstanceID,
		HasPassword: u.PasswordHash != nil,
	}
}

type PortalUserWriteDTO struct {
	Email      string  `json:"email" binding:"required,email"`
	Name       string  `json:"name" binding:"required,min=1,max=160"`
	Phone      *string `json:"phone"`
	Role       string  `json:"role" binding:"required,oneof=employee"`
	IsActive   *bool   `json:"is_active"`
	InstanceID *string `json:"instance_id"`
}

func (dto PortalUserWriteDTO) toInput() (core.PortalUserInput, error) {
	role, err := model.ParsePortalUserRole(dto.Role)
	if err != nil {
		return core.PortalUserInput{}, err
	}
	return core.PortalUserInput{
		Email:      dto.Email,
		Name:       dto.Name,
		Phone:      dto.Phone,
		Role:       role,
		IsActive:   dto.IsActive,
		InstanceID: dto.InstanceID,
	}, nil
}

func (ep *AdminUsersEndpoint) List(c *gin.Context) {
	users, err := core.ListPortalUsers(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Listing failed"))
		return
	}
	out := make([]PortalUserDTO, 0, len(users))
	for i := range users {
		out = append(out, toPortalUserDTO(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

func (ep *AdminUsersEndpoint) Create(c *gin.Context) {
	var dto PortalUserWriteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	input, err := dto.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}
	user, err := core.CreatePortalUser(ep.db, input)
	if err != nil {
		ep.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPortalUserDTO(user))
}

func (ep *AdminUsersEndpoint) Update(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	var dto PortalUserWriteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	input, err := dto.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}
	user, err := core.UpdatePortalUser(ep.db, id, input)
	if err != nil {
		ep.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPortalUserDTO(user))
}

func (ep *AdminUsersEndpoint) Delete(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	if err := core.DeletePortalUser(ep.db, id); err != nil {
		ep.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

// SendReset issues a single-use reset token and emails the link. SMTP
// problems come back as 400 with the reason so the admin can fix the
// configuration.
func (ep *AdminUsersEndpoint) SendReset(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	user, err := core.GetPortalUser(ep.db, id)
	if err != nil {
		ep.respondUserError(c, err)
		return
	}

	settings, err := core.GetOrCreateAppSettings(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Sending reset failed"))
		return
	}
	mailer, err := communication.NewMailer(settings, ep.secret)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeSMTPNotAvailable, err.Error()))
		return
	}

	token, err := core.CreateResetToken(ep.db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Sending reset failed"))
		return
	}
	resetURL := fmt.Sprintf("%s/portal/reset?token=%s", ep.publicBaseURL, token)
	if err := mailer.SendPasswordReset(user.Email, user.Name, resetURL); err != nil {
		ep.logger.Warn("reset mail failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeSMTPNotAvailable, err.Error()))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

func parseUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, "Invalid id"))
		return 0, false
	}
	return uint(id), true
}

func (ep *AdminUsersEndpoint) respondUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrUserNotFound), errors.Is(err, core.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Not found"))
	case errors.Is(err, core.ErrEmailTaken):
		c.JSON(http.StatusConflict, common.NewErrorResponse(common.CodeConflict, "Email already registered"))
	default:
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Operation failed"))
	}
}
