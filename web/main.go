package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hcasc.cz/dagmar/config"
	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/web/handlers"
	"hcasc.cz/dagmar/web/middlewares"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	dm, err := core.New(cfg.DSN, 10, core.LogLevelWarn)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer dm.Close()

	if err := dm.AutoMigrate(); err != nil {
		logger.Fatal("migrating schema", zap.Error(err))
	}
	if err := core.SeedAdminUser(dm.DB, cfg.AdminUsername, cfg.AdminPasswordHash); err != nil {
		logger.Fatal("seeding admin user", zap.Error(err))
	}
	if _, err := core.GetOrCreateAppSettings(dm.DB); err != nil {
		logger.Fatal("initializing app settings", zap.Error(err))
	}

	sessionCfg := middlewares.AdminSessionConfig{
		CookieName:   cfg.SessionCookieName,
		Secret:       []byte(cfg.SessionSecret),
		MaxAge:       cfg.SessionMaxAge,
		CookieSecure: cfg.CookieSecure,
		RotateCSRF:   cfg.CSRFRotateAfter,
	}
	appSecret := []byte(cfg.SessionSecret)

	loginLimiter := middlewares.NewRateLimiter(cfg.RateLimitAdminLogin).Middleware()
	statusLimiter := middlewares.NewRateLimiter(cfg.RateLimitStatus).Middleware()
	claimLimiter := middlewares.NewRateLimiter(cfg.RateLimitClaim).Middleware()
	defaultLimiter := middlewares.NewRateLimiter(cfg.RateLimitDefault).Middleware()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogging(logger))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/api/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"deploy_tag": cfg.DeployTag})
	})

	v1 := r.Group("/api/v1", defaultLimiter)

	handlers.RegisterInstanceRoutes(v1, dm.DB, claimLimiter, statusLimiter)
	handlers.RegisterPortalRoutes(v1, dm.DB, loginLimiter)
	handlers.RegisterWhatsAppRoutes(v1,
		cfg.WhatsAppVerifyToken, cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneID,
		cfg.GeminiAPIKey, logger)

	bearer := v1.Group("", middlewares.InstanceAuthentication(dm.DB))
	handlers.RegisterAttendanceRoutes(bearer, dm.DB)

	handlers.RegisterAdminAuthRoutes(v1, dm.DB, sessionCfg, appSecret, logger, loginLimiter)

	admin := v1.Group("", middlewares.AdminAuthentication(sessionCfg), middlewares.CSRFGuard())
	handlers.RegisterAdminInstanceRoutes(admin, dm.DB, logger)
	handlers.RegisterAdminAttendanceRoutes(admin, dm.DB)
	handlers.RegisterAdminShiftPlanRoutes(admin, dm.DB)
	handlers.RegisterAdminExportRoutes(admin, dm.DB)
	handlers.RegisterAdminSettingsRoutes(admin, dm.DB, appSecret)
	handlers.RegisterAdminUserRoutes(admin, dm.DB, appSecret, cfg.PublicBaseURL, logger)

	logger.Info("listening", zap.String("addr", cfg.BindAddr), zap.String("deploy_tag", cfg.DeployTag))
	if err := r.Run(cfg.BindAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(parsed)
	return zapCfg.Build()
}
