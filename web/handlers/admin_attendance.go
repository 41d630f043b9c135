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

// AdminAttendanceEndpoint serves attendance editing and month locks.
type AdminAttendanceEndpoint struct {
	db *gorm.DB
}

func RegisterAdminAttendanceRoutes(r *gin.RouterGroup, db *gorm.DB) {
	endpoint := &AdminAttendanceEndpoint{db: db}
	r.GET("/admin/attendance", endpoint.GetMonth)
	r.PUT("/admin/attendance", endpoint.PutDay)
	r.POST("/admin/attendance/lock", endpoint.Lock)
	r.POST("/admin/attendance/unlock", endpoint.Unlock)
}

func (ep *AdminAttendanceEndpoint) GetMonth(c *gin.Context) {
	instanceID := c.Query("instance_id")
	if instanceID == "" {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, "instance_id is required"))
		return
	}
	year, month, err := utils.ParseMonth(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}
	if _, err := core.GetInstance(ep.db, instanceID); err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
		return
	}

	entries, err := core.MonthAttendance(ep.db, instanceID, year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading attendance failed"))
		return
	}
	locked, err := core.IsMonthLocked(ep.db, instanceID, year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading attendance failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instance_id": instanceID,
		"month":       c.Query("month"),
		"locked":      locked,
		"days":        entries,
	})
}

type AdminAttendanceDayDTO struct {
	InstanceID string `json:"instance_id" binding:"required"`
	AttendanceDayDTO
}

func (ep *AdminAttendanceEndpoint) PutDay(c *gin.Context) {
	var dto AdminAttendanceDayDTO
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

	if err := core.UpsertAttendance(ep.db, dto.InstanceID, date, arrival, departure); err != nil {
		if errors.Is(err, core.ErrMonthLocked) {
			c.JSON(http.StatusLocked, common.NewErrorResponse(common.CodeMonthLocked, "Month is locked"))
			return
		}
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving attendance failed"))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

type MonthLockDTO struct {
	InstanceID string `json:"instance_id" binding:"required"`
	Month      string `json:"month" binding:"required"`
}

func (ep *AdminAttendanceEndpoint) Lock(c *gin.Context) {
	dto, year, month, ok := ep.bindLockInput(c)
	if !ok {
		return
	}
	payload, _ := middlewares.SessionFromContext(c)
	var lockedBy *string
	if payload.Username != "" {
		lockedBy = &payload.Username
	}
	if err := core.LockMonth(ep.db, dto.InstanceID, year, month, lockedBy); err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Lock failed"))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

func (ep *AdminAttendanceEndpoint) Unlock(c *gin.Context) {
	dto, year, month, ok := ep.bindLockInput(c)
	if !ok {
		return
	}
	if err := core.UnlockMonth(ep.db, dto.InstanceID, year, month); err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Unlock failed"))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

func (ep *AdminAttendanceEndpoint) bindLockInput(c *gin.Context) (MonthLockDTO, int, int, bool) {
	var dto MonthLockDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return dto, 0, 0, false
	}
	year, month, err := utils.ParseMonth(dto.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return dto, 0, 0, false
	}
	if _, err := core.GetInstance(ep.db, dto.InstanceID); err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
		return dto, 0, 0, false
	}
	return dto, year, month, true
}
