package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/utils"
	"hcasc.cz/dagmar/web/common"
)

// InstanceEndpoint serves the public device-facing identity routes.
type InstanceEndpoint struct {
	db *gorm.DB
}

func RegisterInstanceRoutes(r *gin.RouterGroup, db *gorm.DB, claimLimiter, statusLimiter gin.HandlerFunc) {
	endpoint := &InstanceEndpoint{db: db}
	r.POST("/instances/register", endpoint.Register)
	r.GET("/instances/:id/status", statusLimiter, endpoint.Status)
	r.POST("/instances/:id/claim-token", claimLimiter, endpoint.ClaimToken)
}

type RegisterInstanceDTO struct {
	ClientType        string  `json:"client_type" binding:"required,oneof=ANDROID WEB"`
	DeviceFingerprint string  `json:"device_fingerprint" binding:"required,min=8,max=128"`
	DisplayName       string  `json:"display_name" binding:"required,min=1,max=128"`
	DeviceInfo        *string `json:"device_info,omitempty"`
}

func (ep *InstanceEndpoint) Register(c *gin.Context) {
	var dto RegisterInstanceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	clientType, err := model.ParseClientType(dto.ClientType)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}

	inst, err := core.RegisterInstance(ep.db, core.RegisterInput{
		ClientType:        clientType,
		DeviceFingerprint: dto.DeviceFingerprint,
		DisplayName:       dto.DisplayName,
		DeviceInfoJSON:    dto.DeviceInfo,
	})
	if err != nil {
		if errors.Is(err, core.ErrInstanceDeactivated) {
			c.JSON(http.StatusForbidden, common.NewErrorResponse(common.CodeForbidden, "Instance is deactivated"))
			return
		}
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Registration failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instance_id": inst.ID,
		"status":      inst.Status,
	})
}

func (ep *InstanceEndpoint) Status(c *gin.Context) {
	inst, err := core.GetInstance(ep.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Status check failed"))
		return
	}
	if err := core.TouchLastSeen(ep.db, inst); err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Status check failed"))
		return
	}

	body := gin.H{
		"instance_id":  inst.ID,
		"status":       inst.Status,
		"display_name": inst.DisplayName,
	}
	if inst.Status == model.StatusActive {
		settings, err := core.GetOrCreateAppSettings(ep.db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Status check failed"))
			return
		}
		body["employment_template"] = inst.EmploymentTemplate
		body["afternoon_cutoff"] = utils.MinutesToHHMM(settings.AfternoonCutoffMinutes)
	}
	c.JSON(http.StatusOK, body)
}

func (ep *InstanceEndpoint) ClaimToken(c *gin.Context) {
	token, err := core.ClaimToken(ep.db, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInstanceNotFound):
			c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
		case errors.Is(err, core.ErrInstanceNotActive):
			c.JSON(http.StatusForbidden, common.NewErrorResponse(common.CodeForbidden, "Instance is not active"))
		case errors.Is(err, core.ErrDisplayNameMissing):
			c.JSON(http.StatusConflict, common.NewErrorResponse(common.CodeConflict, "Instance has no display name"))
		default:
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Token claim failed"))
		}
		return
	}
	inst, err := core.GetInstance(ep.db, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Token claim failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        token,
		"display_name": inst.DisplayName,
	})
}
