package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/web/common"
)

// AdminInstanceEndpoint serves instance lifecycle management.
type AdminInstanceEndpoint struct {
	db     *gorm.DB
	logger *zap.Logger
}

func RegisterAdminInstanceRoutes(r *gin.RouterGroup, db *gorm.DB, logger *zap.Logger) {
	endpoint := &AdminInstanceEndpoint{db: db, logger: logger}
	r.GET("/admin/instances", endpoint.List)
	r.POST("/admin/instances/:id/activate", endpoint.Activate)
	r.POST("/admin/instances/:id/rename", endpoint.Rename)
	r.POST("/admin/instances/:id/set-template", endpoint.SetTemplate)
	r.POST("/admin/instances/:id/revoke", endpoint.Revoke)
	r.POST("/admin/instances/:id/deactivate", endpoint.Deactivate)
	r.POST("/admin/instances/merge", endpoint.Merge)
	r.DELETE("/admin/instances/pending", endpoint.DeletePending)
	r.DELETE("/admin/instances/:id", endpoint.Delete)
}

type InstanceDTO struct {
	ID                 string  `json:"id"`
	ClientType         string  `json:"client_type"`
	Status             string  `json:"status"`
	DisplayName        *string `json:"display_name"`
	EmploymentTemplate string  `json:"employment_template"`
	ProfileInstanceID  *string `json:"profile_instance_id"`
	HasToken           bool    `json:"has_token"`
	CreatedAt          string  `json:"created_at"`
	LastSeenAt         *string `json:"last_seen_at"`
	ActivatedAt        *string `json:"activated_at"`
}

func toInstanceDTO(inst *model.Instance) InstanceDTO {
	dto := InstanceDTO{
		ID:                 inst.ID,
		ClientType:         string(inst.ClientType),
		Status:             string(inst.Status),
		DisplayName:        inst.DisplayName,
		EmploymentTemplate: string(inst.EmploymentTemplate),
		ProfileInstanceID:  inst.ProfileInstanceID,
		HasToken:           inst.TokenHash != nil,
		CreatedAt:          inst.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if inst.LastSeenAt != nil {
		s := inst.LastSeenAt.Format("2006-01-02T15:04:05Z07:00")
		dto.LastSeenAt = &s
	}
	if inst.ActivatedAt != nil {
		s := inst.ActivatedAt.Format("2006-01-02T15:04:05Z07:00")
		dto.ActivatedAt = &s
	}
	return dto
}

func (ep *AdminInstanceEndpoint) List(c *gin.Context) {
	instances, err := core.ListInstances(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Listing failed"))
		return
	}
	out := make([]InstanceDTO, 0, len(instances))
	for i := range instances {
		out = append(out, toInstanceDTO(&instances[i]))
	}
	c.JSON(http.StatusOK, gin.H{"instances": out})
}

type ActivateInstanceDTO struct {
	DisplayName        *string `json:"display_name,omitempty"`
	EmploymentTemplate *string `json:"employment_template,omitempty"`
}

func (ep *AdminInstanceEndpoint) Activate(c *gin.Context) {
	var dto ActivateInstanceDTO
	if err := c.ShouldBindJSON(&dto); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	input := core.ActivateInput{DisplayName: dto.DisplayName}
	if dto.EmploymentTemplate != nil {
		tpl, err := model.ParseEmploymentTemplate(*dto.EmploymentTemplate)
		if err != nil {
			c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
			return
		}
		input.EmploymentTemplate = &tpl
	}

	inst, err := core.ActivateInstance(ep.db, c.Param("id"), input)
	if err != nil {
		ep.respondLifecycleError(c, err)
		return
	}
	ep.logger.Info("instance activated", zap.String("instance_id", inst.ID))
	c.JSON(http.StatusOK, toInstanceDTO(inst))
}

type RenameInstanceDTO struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=128"`
}

func (ep *AdminInstanceEndpoint) Rename(c *gin.Context) {
	var dto RenameInstanceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	inst, err := core.RenameInstance(ep.db, c.Param("id"), dto.DisplayName)
	if err != nil {
		ep.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInstanceDTO(inst))
}

type SetTemplateDTO struct {
	EmploymentTemplate string `json:"employment_template" binding:"required,oneof=DPP_DPC HPP"`
}

func (ep *AdminInstanceEndpoint) SetTemplate(c *gin.Context) {
	var dto SetTemplateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	tpl, err := model.ParseEmploymentTemplate(dto.EmploymentTemplate)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}
	inst, err := core.SetEmploymentTemplate(ep.db, c.Param("id"), tpl)
	if err != nil {
		ep.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInstanceDTO(inst))
}

func (ep *AdminInstanceEndpoint) Revoke(c *gin.Context) {
	inst, err := core.RevokeInstance(ep.db, c.Param("id"))
	if err != nil {
		ep.respondLifecycleError(c, err)
		return
	}
	ep.logger.Info("instance revoked", zap.String("instance_id", inst.ID))
	c.JSON(http.StatusOK, toInstanceDTO(inst))
}

func (ep *AdminInstanceEndpoint) Deactivate(c *gin.Context) {
	inst, err := core.DeactivateInstance(ep.db, c.Param("id"))
	if err != nil {
		ep.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInstanceDTO(inst))
}

type MergeInstancesDTO struct {
	TargetID  string   `json:"target_id" binding:"required"`
	SourceIDs []string `json:"source_ids" binding:"required,min=1"`
}

func (ep *AdminInstanceEndpoint) Merge(c *gin.Context) {
	var dto MergeInstancesDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	if err := core.MergeInstances(ep.db, dto.TargetID, dto.SourceIDs); err != nil {
		switch {
		case errors.Is(err, core.ErrInstanceNotFound):
			c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
		case errors.Is(err, core.ErrMergeTarget), errors.Is(err, core.ErrMergeSource):
			c.JSON(http.StatusConflict, common.NewErrorResponse(common.CodeConflict, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Merge failed"))
		}
		return
	}
	ep.logger.Info("instances merged",
		zap.String("target_id", dto.TargetID),
		zap.Strings("source_ids", dto.SourceIDs))
	c.JSON(http.StatusOK, common.NewOKResponse())
}

func (ep *AdminInstanceEndpoint) Delete(c *gin.Context) {
	if err := core.DeleteInstance(ep.db, c.Param("id")); err != nil {
		ep.respondLifecycleError(c, err)
		return
	}
	ep.logger.Info("instance deleted", zap.String("instance_id", c.Param("id")))
	c.JSON(http.StatusOK, common.NewOKResponse())
}

func (ep *AdminInstanceEndpoint) DeletePending(c *gin.Context) {
	deleted, err := core.DeletePendingInstances(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Delete failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (ep *AdminInstanceEndpoint) respondLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
	case errors.Is(err, core.ErrInstanceRevoked):
		c.JSON(http.StatusConflict, common.NewErrorResponse(common.CodeConflict, "Instance is revoked"))
	case errors.Is(err, core.ErrInstanceNotActive):
		c.JSON(http.StatusConflict, common.NewErrorResponse(common.CodeConflict, "Instance is not active"))
	case errors.Is(err, core.ErrInvalidTransition):
		c.JSON(http.StatusConflict, common.NewErrorResponse(common.CodeConflict, "Invalid status transition"))
	default:
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Operation failed"))
	}
}
