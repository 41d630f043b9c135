package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/utils"
	"hcasc.cz/dagmar/web/common"
)

// AdminExportEndpoint serves month exports: single CSV or XLSX per instance,
// bulk ZIP for everyone.
type AdminExportEndpoint struct {
	db *gorm.DB
}

func RegisterAdminExportRoutes(r *gin.RouterGroup, db *gorm.DB) {
	endpoint := &AdminExportEndpoint{db: db}
	r.GET("/admin/export", endpoint.Export)
}

func (ep *AdminExportEndpoint) Export(c *gin.Context) {
	monthParam := c.Query("month")
	year, month, err := utils.ParseMonth(monthParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}

	if c.Query("bulk") == "true" {
		data, err := core.ExportMonthZIP(ep.db, year, month)
		if err != nil {
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Export failed"))
			return
		}
		filename := fmt.Sprintf("export_%s.zip", monthParam)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, "application/zip", data)
		return
	}

	instanceID := c.Query("instance_id")
	if instanceID == "" {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, "instance_id or bulk=true is required"))
		return
	}
	inst, err := core.GetInstance(ep.db, instanceID)
	if err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.CodeNotFound, "Instance not found"))
		return
	}
	name := ""
	if inst.DisplayName != nil {
		name = *inst.DisplayName
	}
	slug := utils.Slugify(name)

	if c.Query("format") == "xlsx" {
		data, err := core.ExportMonthXLSX(ep.db, instanceID, year, month)
		if err != nil {
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Export failed"))
			return
		}
		filename := fmt.Sprintf("%s_%s.xlsx", slug, monthParam)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		return
	}

	data, err := core.ExportMonthCSV(ep.db, instanceID, year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Export failed"))
		return
	}
	filename := fmt.Sprintf("%s_%s.csv", slug, monthParam)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
