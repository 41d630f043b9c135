package model

import (
	"fmt"
	"time"
)

type InstanceStatus string

const (
	StatusPending     InstanceStatus = "PENDING"
	StatusActive      InstanceStatus = "ACTIVE"
	StatusRevoked     InstanceStatus = "REVOKED"
	StatusDeactivated InstanceStatus = "DEACTIVATED"
)

func (s InstanceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusRevoked, StatusDeactivated:
		return true
	}
	return false
}

type ClientType string

const (
	ClientAndroid ClientType = "ANDROID"
	ClientWeb     ClientType = "WEB"
)

func ParseClientType(s string) (ClientType, error) {
	switch ClientType(s) {
	case ClientAndroid:
		return ClientAndroid, nil
	case ClientWeb:
		return ClientWeb, nil
	}
	return "", fmt.Errorf("unknown client type %q", s)
}

type EmploymentTemplate string

const (
	TemplateDppDpc EmploymentTemplate = "DPP_DPC"
	TemplateHpp    EmploymentTemplate = "HPP"
)

func ParseEmploymentTemplate(s string) (EmploymentTemplate, error) {
	switch EmploymentTemplate(s) {
	case TemplateDppDpc:
		return TemplateDppDpc, nil
	case TemplateHpp:
		return TemplateHpp, nil
	}
	return "", fmt.Errorf("unknown employment template %q", s)
}

// Instance is a registered client device or a portal-derived identity.
// It owns attendance data and carries at most one hashed bearer token.
type Instance struct {
	ID string `gorm:"column:id;primaryKey;size:36"`

	ClientType        ClientType `gorm:"column:client_type;size:16;not null"`
	DeviceFingerprint string     `gorm:"column:device_fingerprint;size:128;not null"`
	DeviceInfoJSON    *string    `gorm:"column:device_info_json;type:text"`

	Status      InstanceStatus `gorm:"column:status;size:16;not null;default:PENDING;index"`
	DisplayName *string        `gorm:"column:display_name;size:128"`

	// Optional merge target. Must point at an ACTIVE instance that is not
	// itself merged; never chains.
	ProfileInstanceID *string `gorm:"column:profile_instance_id;size:36;index"`

	EmploymentTemplate EmploymentTemplate `gorm:"column:employment_template;size:16;not null;default:DPP_DPC"`

	// Token is stored hashed only. TokenPrefix is a non-secret sha256-derived
	// lookup key used to narrow verification.
	TokenHash     *string    `gorm:"column:token_hash;size:255"`
	TokenPrefix   *string    `gorm:"column:token_prefix;size:12;index"`
	TokenIssuedAt *time.Time `gorm:"column:token_issued_at"`

	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	LastSeenAt    *time.Time `gorm:"column:last_seen_at;index"`
	ActivatedAt   *time.Time `gorm:"column:activated_at"`
	RevokedAt     *time.Time `gorm:"column:revoked_at"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at"`
}

func (Instance) TableName() string {
	return "instances"
}

// CanTransition reports whether the admin-driven status change is allowed.
// REVOKED is terminal; everything else follows the lifecycle table.
func (i *Instance) CanTransition(to InstanceStatus) bool {
	switch to {
	case StatusActive:
		return i.Status != StatusRevoked
	case StatusRevoked:
		return i.Status != StatusRevoked
	case StatusDeactivated:
		return true
	case StatusPending:
		return false
	}
	return false
}

// ClearToken drops the stored credential. Called on every transition that
// leaves ACTIVE so a client holding the old plaintext is locked out at once.
func (i *Instance) ClearToken() {
	i.TokenHash = nil
	i.TokenPrefix = nil
	i.TokenIssuedAt = nil
}
