package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/infrastructure/communication"
	"hcasc.cz/dagmar/security"
	"hcasc.cz/dagmar/web/common"
	"hcasc.cz/dagmar/web/middlewares"
)

// AdminAuthEndpoint serves console login, logout and session introspection.
type AdminAuthEndpoint struct {
	db     *gorm.DB
	cfg    middlewares.AdminSessionConfig
	secret []byte
	logger *zap.Logger
}

func RegisterAdminAuthRoutes(r *gin.RouterGroup, db *gorm.DB, cfg middlewares.AdminSessionConfig, appSecret []byte, logger *zap.Logger, loginLimiter gin.HandlerFunc) {
	endpoint := &AdminAuthEndpoint{db: db, cfg: cfg, secret: appSecret, logger: logger}
	r.POST("/admin/login", loginLimiter, endpoint.Login)
	r.POST("/admin/forgot-password", loginLimiter, endpoint.ForgotPassword)

	authed := r.Group("", middlewares.AdminAuthentication(cfg))
	authed.POST("/admin/logout", endpoint.Logout)
	authed.GET("/admin/me", endpoint.Me)
	authed.GET("/admin/csrf", endpoint.CSRF)
}

type AdminLoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ep *AdminAuthEndpoint) Login(c *gin.Context) {
	var dto AdminLoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeValidation, common.FormatBindingError(err)))
		return
	}
	if !core.CheckAdminLogin(ep.db, dto.Username, dto.Password) {
		// Uniform response: no hint whether username or password failed.
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse(common.CodeUnauthorized, "Invalid credentials"))
		return
	}

	now := time.Now()
	payload := security.SessionPayload{Username: dto.Username, IssuedAt: now.Unix()}
	csrfToken, _, err := security.EnsureCSRFToken(&payload, now, ep.cfg.RotateCSRF)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Login failed"))
		return
	}
	if err := ep.issueCookies(c, payload, csrfToken); err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "Login failed"))
		return
	}
	ep.logger.Info("admin login", zap.String("username", dto.Username), zap.String("ip", middlewares.ClientIP(c)))
	c.JSON(http.StatusOK, gin.H{"username": dto.Username, "csrf_token": csrfToken})
}

func (ep *AdminAuthEndpoint) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ep.cfg.CookieName, "", -1, "/", "", ep.cfg.CookieSecure, true)
	c.SetCookie(security.CSRFCookieName, "", -1, "/", "", ep.cfg.CookieSecure, false)
	c.JSON(http.StatusOK, common.NewOKResponse())
}

func (ep *AdminAuthEndpoint) Me(c *gin.Context) {
	payload, ok := middlewares.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse(common.CodeUnauthorized, "Not logged in"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"username":  payload.Username,
		"issued_at": payload.IssuedAt,
	})
}

// CSRF returns the current token, rotating it when stale. The session cookie
// is re-issued whenever the embedded token changes.
func (ep *AdminAuthEndpoint) CSRF(c *gin.Context) {
	payload, ok := middlewares.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse(common.CodeUnauthorized, "Not logged in"))
		return
	}
	token, changed, err := security.EnsureCSRFToken(&payload, time.Now(), ep.cfg.RotateCSRF)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "CSRF issue failed"))
		return
	}
	if changed {
		if err := ep.issueCookies(c, payload, token); err != nil {
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse(common.CodeInternal, "CSRF issue failed"))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"csrf_token": token})
}

// ForgotPassword mails the operator mailbox. The response never reveals
// whether mail went out.
func (ep *AdminAuthEndpoint) ForgotPassword(c *gin.Context) {
	settings, err := core.GetOrCreateAppSettings(ep.db)
	if err == nil {
		mailer, merr := communication.NewMailer(settings, ep.secret)
		if merr == nil && settings.SMTPFromEmail != nil {
			if serr := mailer.SendAdminHelp(*settings.SMTPFromEmail, middlewares.ClientIP(c)); serr != nil {
				ep.logger.Warn("admin help mail failed", zap.Error(serr))
			}
		}
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

func (ep *AdminAuthEndpoint) issueCookies(c *gin.Context, payload security.SessionPayload, csrfToken string) error {
	encoded, err := security.EncodeSession(payload, ep.cfg.Secret)
	if err != nil {
		return err
	}
	maxAge := int(ep.cfg.MaxAge.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ep.cfg.CookieName, encoded, maxAge, "/", "", ep.cfg.CookieSecure, true)
	c.SetCookie(security.CSRFCookieName, csrfToken, maxAge, "/", "", ep.cfg.CookieSecure, false)
	return nil
}
