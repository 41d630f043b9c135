package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/security"
)

const resetTokenTTL = 24 * time.Hour

var (
	ErrUserNotFound      = errors.New("portal user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrLoginFailed       = errors.New("invalid credentials")
)

// SeedAdminUser upserts the configured admin account at startup so console
// credentials always match deployment config.
func SeedAdminUser(db *gorm.DB, username, passwordHash string) error {
	now := time.Now().UTC()
	var admin model.AdminUser
	err := db.First(&admin, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		admin = model.AdminUser{
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return db.Create(&admin).Error
	}
	if err != nil {
		return fmt.Errorf("loading admin user: %w", err)
	}
	if admin.PasswordHash == passwordHash {
		return nil
	}
	return db.Model(&admin).Updates(map[string]any{
		"password_hash": passwordHash,
		"updated_at":    now,
	}).Error
}

// CheckAdminLogin verifies console credentials. Unknown usernames still run
// a hash verification so timing does not reveal which part failed.
func CheckAdminLogin(db *gorm.DB, username, password string) bool {
	var admin model.AdminUser
	err := db.First(&admin, "username = ?", username).Error
	if err != nil {
		security.VerifyPassword(password, "")
		return false
	}
	return security.VerifyPassword(password, admin.PasswordHash)
}

type PortalUserInput struct {
	Email      string
	Name       string
	Phone      *string
	Role       model.PortalUserRole
	IsActive   *bool
	InstanceID *string
}

// CreatePortalUser registers a new portal profile.
func CreatePortalUser(db *gorm.DB, in PortalUserInput) (*model.PortalUser, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	var count int64
	if err := db.Model(&model.PortalUser{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	if in.InstanceID != nil {
		if _, err := GetInstance(db, *in.InstanceID); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	user := &model.PortalUser{
		Email:      email,
		Name:       in.Name,
		Phone:      in.Phone,
		Role:       in.Role,
		IsActive:   true,
		InstanceID: in.InstanceID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("creating portal user: %w", err)
	}
	return user, nil
}

// GetPortalUser loads one portal user by ID.
func GetPortalUser(db *gorm.DB, id uint) (*model.PortalUser, error) {
	var user model.PortalUser
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading portal user: %w", err)
	}
	return &user, nil
}

// UpdatePortalUser applies an admin edit.
func UpdatePortalUser(db *gorm.DB, id uint, in PortalUserInput) (*model.PortalUser, error) {
	user, err := GetPortalUser(db, id)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != user.Email {
		var count int64
		if err := db.Model(&model.PortalUser{}).Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("checking email: %w", err)
		}
		if count > 0 {
			return nil, ErrEmailTaken
		}
	}
	if in.InstanceID != nil {
		if _, err := GetInstance(db, *in.InstanceID); err != nil {
			return nil, err
		}
	}
	user.Email = email
	user.Name = in.Name
	user.Phone = in.Phone
	user.Role = in.Role
	user.InstanceID = in.InstanceID
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	user.UpdatedAt = time.Now().UTC()
	if err := db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("updating portal user: %w", err)
	}
	return user, nil
}

// ListPortalUsers returns every portal profile, newest first.
func ListPortalUsers(db *gorm.DB) ([]model.PortalUser, error) {
	var out []model.PortalUser
	if err := db.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing portal users: %w", err)
	}
	return out, nil
}

// DeletePortalUser removes a profile and its outstanding reset tokens.
func DeletePortalUser(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetPortalUser(tx, id); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.PortalUserResetToken{}).Error; err != nil {
			return fmt.Errorf("deleting reset tokens: %w", err)
		}
		if err := tx.Delete(&model.PortalUser{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting portal user: %w", err)
		}
		return nil
	})
}

// CreateResetToken issues a single-use reset credential valid for 24 hours
// and returns the plaintext for the email link. Only the sha256 digest is
// stored.
func CreateResetToken(db *gorm.DB, userID uint) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(token))
	row := model.PortalUserResetToken{
		UserID:    userID,
		TokenHash: hex.EncodeToString(digest[:]),
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}
	return token, nil
}

// ConsumeResetToken validates a reset token and sets the new password. The
// token is burned on success.
func ConsumeResetToken(db *gorm.DB, token, newPassword string) error {
	digest := sha256.Sum256([]byte(token))
	hash := hex.EncodeToString(digest[:])
	now := time.Now().UTC()

	return db.Transaction(func(tx *gorm.DB) error {
		var row model.PortalUserResetToken
		err := tx.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hash, now).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("loading reset token: %w", err)
		}
		passwordHash, err := security.HashPassword(newPassword)
		if err != nil {
			return err
		}
		err = tx.Model(&model.PortalUser{}).Where("id = ?", row.UserID).Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_at":    now,
		}).Error
		if err != nil {
			return fmt.Errorf("setting password: %w", err)
		}
		if err := tx.Model(&row).Update("used_at", now).Error; err != nil {
			return fmt.Errorf("burning reset token: %w", err)
		}
		return nil
	})
}

// PortalLogin verifies portal credentials and issues a bearer token for the
// user's linked instance. Failures are uniform: callers cannot tell a bad
// password from a missing or unlinked account.
func PortalLogin(db *gorm.DB, email, password string) (string, *model.Instance, error) {
	var user model.PortalUser
	err := db.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		security.VerifyPassword(password, "")
		return "", nil, ErrLoginFailed
	}
	if !user.IsActive || user.PasswordHash == nil || !security.VerifyPassword(password, *user.PasswordHash) {
		return "", nil, ErrLoginFailed
	}
	if user.InstanceID == nil {
		return "", nil, ErrLoginFailed
	}
	token, err := ClaimToken(db, *user.InstanceID)
	if err != nil {
		if errors.Is(err, ErrInstanceNotActive) || errors.Is(err, ErrDisplayNameMissing) || errors.Is(err, ErrInstanceNotFound) {
			return "", nil, ErrLoginFailed
		}
		return "", nil, err
	}
	inst, err := GetInstance(db, *user.InstanceID)
	if err != nil {
		return "", nil, err
	}
	return token, inst, nil
}
