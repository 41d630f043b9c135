package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/utils"
	"hcasc.cz/dagmar/web/common"
	"hcasc.cz/dagmar/web/middlewares"
)

// AttendanceEndpoint serves the bearer-authenticated attendance routes.
type AttendanceEndpoint struct {
	db *gorm.DB
}

func RegisterAttendanceRoutes(r *gin.RouterGroup, db *gorm.DB) {
	endpoint := &AttendanceEndpoint{db: db}
	r.GET("/attendance", endpoint.GetMonth)
	r.PUT("/attendance", endpoint.PutDay)
}

func (ep *AttendanceEndpoint) GetMonth(c *gin.Context) {
	inst := middlewares.InstanceFromContext(c)
	if inst == nil {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse(common.CodeUnauthorized, "Not authenticated"))
		return
	}
	year, month, err := utils.ParseMonth(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}

	owner, err := core.ResolveProfileInstance(ep.db, inst)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading attendance failed"))
		return
	}
	// A locked month is closed for the device entirely, viewing included.
	locked, err := core.IsMonthLocked(ep.db, owner.ID, year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading attendance failed"))
		return
	}
	if locked {
		c.JSON(http.StatusLocked, common.NewErrorResponse(common.CodeMonthLocked, "Month is locked"))
		return
	}
	entries, err := core.MonthAttendance(ep.db, owner.ID, year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading attendance failed"))
		return
	}
	displayName := "Zařízení " + owner.ID[:8]
	if owner.DisplayName != nil && *owner.DisplayName != "" {
		displayName = *owner.DisplayName
	}
	c.JSON(http.StatusOK, gin.H{
		"month":                 c.Query("month"),
		"instance_display_name": displayName,
		"days":                  entries,
	})
}

type AttendanceDayDTO struct {
	Date          string  `json:"date" binding:"required"`
	ArrivalTime   *string `json:"arrival_time"`
	DepartureTime *string `json:"departure_time"`
}

func (ep *AttendanceEndpoint) PutDay(c *gin.Context) {
	inst := middlewares.InstanceFromContext(c)
	if inst == nil {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse(common.CodeUnauthorized, "Not authenticated"))
		return
	}
	var dto AttendanceDayDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	date, arrival, departure, err := parseDayInput(dto)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}

	owner, err := core.ResolveProfileInstance(ep.db, inst)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving attendance failed"))
		return
	}
	if err := core.UpsertAttendance(ep.db, owner.ID, date, arrival, departure); err != nil {
		if errors.Is(err, core.ErrMonthLocked) {
			c.JSON(http.StatusLocked, common.NewErrorResponse(common.CodeMonthLocked, "Month is locked"))
			return
		}
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving attendance failed"))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}
