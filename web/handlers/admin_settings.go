package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/security"
	"hcasc.cz/dagmar/utils"
	"hcasc.cz/dagmar/web/common"
)

// AdminSettingsEndpoint serves app settings and the SMTP configuration.
type AdminSettingsEndpoint struct {
	db     *gorm.DB
	secret []byte
}

func RegisterAdminSettingsRoutes(r *gin.RouterGroup, db *gorm.DB, appSecret []byte) {
	endpoint := &AdminSettingsEndpoint{db: db, secret: appSecret}
	r.GET("/admin/settings", endpoint.GetSettings)
	r.PUT("/admin/settings", endpoint.PutSettings)
	r.GET("/admin/smtp", endpoint.GetSMTP)
	r.PUT("/admin/smtp", endpoint.PutSMTP)
}

func (ep *AdminSettingsEndpoint) GetSettings(c *gin.Context) {
	settings, err := core.GetOrCreateAppSettings(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading settings failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"afternoon_cutoff": utils.MinutesToHHMM(settings.AfternoonCutoffMinutes),
	})
}

type AppSettingsDTO struct {
	AfternoonCutoff string `json:"afternoon_cutoff" binding:"required"`
}

func (ep *AdminSettingsEndpoint) PutSettings(c *gin.Context) {
	var dto AppSettingsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	minutes, err := utils.HHMMToMinutes(dto.AfternoonCutoff)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, err.Error()))
		return
	}

	settings, err := core.GetOrCreateAppSettings(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving settings failed"))
		return
	}
	if err := ep.db.Model(settings).Update("afternoon_cutoff_minutes", minutes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving settings failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"afternoon_cutoff": utils.MinutesToHHMM(minutes),
	})
}

// GetSMTP never returns the stored password, only whether one is set.
func (ep *AdminSettingsEndpoint) GetSMTP(c *gin.Context) {
	settings, err := core.GetOrCreateAppSettings(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Loading settings failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"host":         settings.SMTPHost,
		"port":         settings.SMTPPort,
		"username":     settings.SMTPUsername,
		"password_set": settings.SMTPPassword != nil && *settings.SMTPPassword != "",
		"security":     settings.SMTPSecurity,
		"from_email":   settings.SMTPFromEmail,
		"from_name":    settings.SMTPFromName,
		"updated_at":   settings.SMTPUpdatedAt,
	})
}

type SMTPSettingsDTO struct {
	Host      *string `json:"host"`
	Port      *int    `json:"port"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	Security  *string `json:"security" binding:"omitempty,oneof=ssl starttls none"`
	FromEmail *string `json:"from_email" binding:"omitempty,email"`
	FromName  *string `json:"from_name"`
}

// PutSMTP updates the SMTP configuration. The password is write-only: an
// omitted or empty password keeps the stored one.
func (ep *AdminSettingsEndpoint) PutSMTP(c *gin.Context) {
	var dto SMTPSettingsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	settings, err := core.GetOrCreateAppSettings(ep.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving settings failed"))
		return
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"smtp_host":       dto.Host,
		"smtp_port":       dto.Port,
		"smtp_username":   dto.Username,
		"smtp_security":   dto.Security,
		"smtp_from_email": dto.FromEmail,
		"smtp_from_name":  dto.FromName,
		"smtp_updated_at": now,
	}
	if dto.Password != nil && *dto.Password != "" {
		encrypted, err := security.EncryptSecret(*dto.Password, ep.secret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving settings failed"))
			return
		}
		updates["smtp_password"] = encrypted
	}
	if err := ep.db.Model(settings).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Saving settings failed"))
		return
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}
