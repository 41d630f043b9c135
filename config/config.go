package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the process needs. It is built once in main and
// passed down; packages never reach for globals.
type Config struct {
	BindAddr string
	DSN      string

	SessionSecret     string
	SessionCookieName string
	SessionMaxAge     time.Duration
	CookieSecure      bool

	CSRFRotateAfter time.Duration

	AdminUsername     string
	AdminPasswordHash string

	// Requests per minute, per client IP, per bucket.
	RateLimitAdminLogin int
	RateLimitStatus     int
	RateLimitClaim      int
	RateLimitDefault    int

	PublicBaseURL string
	DeployTag     string
	LogLevel      string

	WhatsAppVerifyToken string
	WhatsAppAccessToken string
	WhatsAppPhoneID     string
	GeminiAPIKey        string
}

// Load reads config.yaml (optional) plus DAGMAR_* environment overrides.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dagmar")
	v.SetEnvPrefix("dagmar")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("bind_addr", ":8080")
	v.SetDefault("session.cookie_name", "dagmar_admin_session")
	v.SetDefault("session.max_age_hours", 12)
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("csrf.rotate_minutes", 120)
	v.SetDefault("ratelimit.admin_login_per_min", 10)
	v.SetDefault("ratelimit.status_per_min", 60)
	v.SetDefault("ratelimit.claim_per_min", 30)
	v.SetDefault("ratelimit.default_per_min", 120)
	v.SetDefault("log_level", "info")
	v.SetDefault("deploy_tag", "dev")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Config{
		BindAddr:            v.GetString("bind_addr"),
		DSN:                 v.GetString("database.dsn"),
		SessionSecret:       v.GetString("session.secret"),
		SessionCookieName:   v.GetString("session.cookie_name"),
		SessionMaxAge:       time.Duration(v.GetInt("session.max_age_hours")) * time.Hour,
		CookieSecure:        v.GetBool("session.cookie_secure"),
		CSRFRotateAfter:     time.Duration(v.GetInt("csrf.rotate_minutes")) * time.Minute,
		AdminUsername:       v.GetString("admin.username"),
		AdminPasswordHash:   v.GetString("admin.password_hash"),
		RateLimitAdminLogin: v.GetInt("ratelimit.admin_login_per_min"),
		RateLimitStatus:     v.GetInt("ratelimit.status_per_min"),
		RateLimitClaim:      v.GetInt("ratelimit.claim_per_min"),
		RateLimitDefault:    v.GetInt("ratelimit.default_per_min"),
		PublicBaseURL:       strings.TrimRight(v.GetString("public_base_url"), "/"),
		DeployTag:           v.GetString("deploy_tag"),
		LogLevel:            v.GetString("log_level"),
		WhatsAppVerifyToken: v.GetString("whatsapp.verify_token"),
		WhatsAppAccessToken: v.GetString("whatsapp.access_token"),
		WhatsAppPhoneID:     v.GetString("whatsapp.phone_id"),
		GeminiAPIKey:        v.GetString("gemini.api_key"),
	}

	if cfg.DSN == "" {
		return Config{}, fmt.Errorf("database.dsn is required")
	}
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("session.secret is required")
	}
	if cfg.AdminUsername == "" || cfg.AdminPasswordHash == "" {
		return Config{}, fmt.Errorf("admin.username and admin.password_hash are required")
	}
	return cfg, nil
}
