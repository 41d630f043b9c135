package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/utils"
	"hcasc.cz/dagmar/web/common"
)

// AdminShiftPlanEndpoint serves the shift planning grid.
type AdminShiftPlanEndpoint struct {
	db *gorm.DB
}

func RegisterAdminShiftPlanRoutes(r *gin.RouterGroup, db *gorm.DB) {
	endpoint := &AdminShiftPlanEndpoint{db: db}
	r.GET("/admin/shift-plan", endpoint.GetMonth)
	r.PUT("/admin/shift-plan", endpoint.PutDay)
	r.PUT("/admin/shift-plan/selection", endpoint.PutSelection)
}

func (ep *AdminShiftPlanEndpoint) GetMonth(c *gin.Context) {
	year, month, err := utils.ParseMonth(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}
	selection, err := core.GetMonthSelection(ep.db, year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading shift plan failed"))
		return
	}

	plans := make(map[string][]core.DayEntry, len(selection))
	for _, instanceID := range selection {
		entries, err := core.MonthAttendance(ep.db, instanceID, year, month)
		if err != nil {
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading shift plan failed"))
			return
		}
		plans[instanceID] = entries
	}
	c.JSON(http.StatusOK, gin.H{
		"month":     c.Query("month"),
		"selection": selection,
		"plans":     plans,
	})
}

type ShiftPlanDayDTO struct {
	InstanceID string `json:"instance_id" binding:"required"`
	AttendanceDayDTO
}

func (ep *AdminShiftPlanEndpoint) PutDay(c *gin.Context) {
	var dto ShiftPlanDayDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	date, arrival, departure, err := parseDayInput(dto.AttendanceDayDTO)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}
	if _, err := core.GetInstance(ep.db, dto.InstanceID); err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
		return
	}

	if err := core.UpsertShiftPlan(ep.db, dto.InstanceID, date, arrival, departure); err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving shift plan failed"))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

type MonthSelectionDTO struct {
	Month       string   `json:"month" binding:"required"`
	InstanceIDs []string `json:"instance_ids" binding:"required"`
}

func (ep *AdminShiftPlanEndpoint) PutSelection(c *gin.Context) {
	var dto MonthSelectionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	year, month, err := utils.ParseMonth(dto.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}

	if err := core.SetMonthSelection(ep.db, year, month, dto.InstanceIDs); err != nil {
		switch {
		case errors.Is(err, core.ErrInstanceNotFound):
			c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
		case errors.Is(err, core.ErrInstanceNotActive):
			c.JSON(http.StatusConflict, common.NewErrorResponse(common.CodeConflict, "Selection contains an inactive instance"))
		default:
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving selection failed"))
		}
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}
