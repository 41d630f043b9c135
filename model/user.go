package model

import (
	"fmt"
	"time"
)

type PortalUserRole string

const (
	RoleEmployee PortalUserRole = "employee"
)

func ParsePortalUserRole(s string) (PortalUserRole, error) {
	switch PortalUserRole(s) {
	case RoleEmployee:
		return RoleEmployee, nil
	}
	return "", fmt.Errorf("unknown portal user role %q", s)
}

// AdminUser backs the single admin account. Kept as a table so the seed
// script can update credentials deterministically.
type AdminUser struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Username     string    `gorm:"column:username;size:64;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}

// PortalUser is an email-identified human profile, optionally linked to the
// Instance that carries their attendance.
type PortalUser struct {
	ID           uint           `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string         `gorm:"column:email;size:160;not null;uniqueIndex"`
	Name         string         `gorm:"column:name;size:160;not null"`
	Phone        *string        `gorm:"column:phone;size:32"`
	Role         PortalUserRole `gorm:"column:role;size:32;not null"`
	PasswordHash *string        `gorm:"column:password_hash;size:255"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`

	InstanceID *string   `gorm:"column:instance_id;size:36"`
	Instance   *Instance `gorm:"foreignKey:InstanceID;references:ID"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (PortalUser) TableName() string {
	return "portal_users"
}

// PortalUserResetToken is a hashed, single-use, time-limited password reset
// credential. Plaintext is only ever in the emailed link.
type PortalUserResetToken struct {
	ID        uint       `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uint       `gorm:"column:user_id;not null;index"`
	User      PortalUser `gorm:"foreignKey:UserID;references:ID"`
	TokenHash string     `gorm:"column:token_hash;size:128;not null;index"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
}

func (PortalUserResetToken) TableName() string {
	return "portal_user_reset_tokens"
}

// AppSettings is a single-row (id=1) table for admin-managed runtime settings.
// The SMTP password is encrypted at rest (enc:v1: prefix).
type AppSettings struct {
	ID uint `gorm:"column:id;primaryKey"`

	AfternoonCutoffMinutes int `gorm:"column:afternoon_cutoff_minutes;not null;default:1020"`

	SMTPHost      *string    `gorm:"column:smtp_host;size:255"`
	SMTPPort      *int       `gorm:"column:smtp_port"`
	SMTPUsername  *string    `gorm:"column:smtp_username;size:255"`
	SMTPPassword  *string    `gorm:"column:smtp_password;type:text"`
	SMTPSecurity  *string    `gorm:"column:smtp_security;size:16"`
	SMTPFromEmail *string    `gorm:"column:smtp_from_email;size:255"`
	SMTPFromName  *string    `gorm:"column:smtp_from_name;size:255"`
	SMTPUpdatedAt *time.Time `gorm:"column:smtp_updated_at"`
}

func (AppSettings) TableName() string {
	return "app_settings"
}
