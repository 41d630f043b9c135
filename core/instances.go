package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/security"
)

var (
	ErrInstanceNotFound    = errors.New("instance not found")
	ErrInstanceDeactivated = errors.New("a deactivated instance exists for this device")
	ErrInstanceRevoked     = errors.New("instance is revoked")
	ErrInstanceNotActive   = errors.New("instance is not active")
	ErrDisplayNameMissing  = errors.New("instance has no display name")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrMergeTarget         = errors.New("merge target must be active and unmerged")
	ErrMergeSource         = errors.New("merge source must be active and unmerged")
)

type RegisterInput struct {
	ClientType        model.ClientType
	DeviceFingerprint string
	DisplayName       string
	DeviceInfoJSON    *string
}

// RegisterInstance creates a PENDING instance, or refreshes and returns the
// existing PENDING/ACTIVE row for the same device so repeated registrations
// are idempotent. A DEACTIVATED row for the device blocks re-registration
// until an admin resolves it.
func RegisterInstance(db *gorm.DB, in RegisterInput) (*model.Instance, error) {
	var existing []model.Instance
	err := db.Where("client_type = ? AND device_fingerprint = ?", in.ClientType, in.DeviceFingerprint).
		Order("created_at DESC").Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("looking up device registrations: %w", err)
	}
	for i := range existing {
		if existing[i].Status == model.StatusDeactivated {
			return nil, ErrInstanceDeactivated
		}
	}
	for i := range existing {
		if existing[i].Status == model.StatusPending || existing[i].Status == model.StatusActive {
			return refreshRegistration(db, &existing[i], in)
		}
	}

	now := time.Now().UTC()
	inst := &model.Instance{
		ID:                 uuid.NewString(),
		ClientType:         in.ClientType,
		DeviceFingerprint:  in.DeviceFingerprint,
		DeviceInfoJSON:     in.DeviceInfoJSON,
		Status:             model.StatusPending,
		DisplayName:        &in.DisplayName,
		EmploymentTemplate: model.TemplateDppDpc,
		CreatedAt:          now,
		LastSeenAt:         &now,
	}
	if err := db.Create(inst).Error; err != nil {
		return nil, fmt.Errorf("creating instance: %w", err)
	}
	return inst, nil
}

// refreshRegistration updates a reused row with what the client just sent:
// the user may have corrected the name or changed devices, and last_seen_at
// must reflect this contact.
func refreshRegistration(db *gorm.DB, inst *model.Instance, in RegisterInput) (*model.Instance, error) {
	now := time.Now().UTC()
	inst.LastSeenAt = &now
	updates := map[string]any{"last_seen_at": now}
	if in.DisplayName != "" {
		inst.DisplayName = &in.DisplayName
		updates["display_name"] = in.DisplayName
	}
	if in.DeviceInfoJSON != nil {
		inst.DeviceInfoJSON = in.DeviceInfoJSON
		updates["device_info_json"] = *in.DeviceInfoJSON
	}
	if inst.EmploymentTemplate == "" {
		inst.EmploymentTemplate = model.TemplateDppDpc
		updates["employment_template"] = model.TemplateDppDpc
	}
	if err := db.Model(inst).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("refreshing registration: %w", err)
	}
	return inst, nil
}

// GetInstance loads one instance by ID.
func GetInstance(db *gorm.DB, id string) (*model.Instance, error) {
	var inst model.Instance
	if err := db.First(&inst, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("loading instance: %w", err)
	}
	return &inst, nil
}

// TouchLastSeen records client activity. Also backfills a display name on
// ACTIVE rows that lost it, so admin views never show a nameless worker.
func TouchLastSeen(db *gorm.DB, inst *model.Instance) error {
	now := time.Now().UTC()
	inst.LastSeenAt = &now
	if inst.Status == model.StatusActive && (inst.DisplayName == nil || *inst.DisplayName == "") {
		fallback := "Zařízení " + inst.ID[:8]
		inst.DisplayName = &fallback
	}
	return db.Model(inst).Updates(map[string]any{
		"last_seen_at": inst.LastSeenAt,
		"display_name": inst.DisplayName,
	}).Error
}

type ActivateInput struct {
	DisplayName        *string
	EmploymentTemplate *model.EmploymentTemplate
}

// ActivateInstance flips a row to ACTIVE. REVOKED rows stay revoked.
func ActivateInstance(db *gorm.DB, id string, in ActivateInput) (*model.Instance, error) {
	inst, err := GetInstance(db, id)
	if err != nil {
		return nil, err
	}
	if !inst.CanTransition(model.StatusActive) {
		return nil, ErrInstanceRevoked
	}
	now := time.Now().UTC()
	inst.Status = model.StatusActive
	inst.ActivatedAt = &now
	inst.DeactivatedAt = nil
	if in.DisplayName != nil && *in.DisplayName != "" {
		inst.DisplayName = in.DisplayName
	}
	if in.EmploymentTemplate != nil {
		inst.EmploymentTemplate = *in.EmploymentTemplate
	}
	if err := db.Save(inst).Error; err != nil {
		return nil, fmt.Errorf("activating instance: %w", err)
	}
	return inst, nil
}

// RenameInstance changes the display name of an ACTIVE instance.
func RenameInstance(db *gorm.DB, id, displayName string) (*model.Instance, error) {
	inst, err := GetInstance(db, id)
	if err != nil {
		return nil, err
	}
	if inst.Status != model.StatusActive {
		return nil, ErrInstanceNotActive
	}
	inst.DisplayName = &displayName
	if err := db.Model(inst).Update("display_name", displayName).Error; err != nil {
		return nil, fmt.Errorf("renaming instance: %w", err)
	}
	return inst, nil
}

// SetEmploymentTemplate updates the wage-template flag on an instance.
func SetEmploymentTemplate(db *gorm.DB, id string, tpl model.EmploymentTemplate) (*model.Instance, error) {
	inst, err := GetInstance(db, id)
	if err != nil {
		return nil, err
	}
	inst.EmploymentTemplate = tpl
	if err := db.Model(inst).Update("employment_template", tpl).Error; err != nil {
		return nil, fmt.Errorf("updating employment template: %w", err)
	}
	return inst, nil
}

// RevokeInstance is the terminal ban. The stored token is cleared so the
// client is locked out on its next request.
func RevokeInstance(db *gorm.DB, id string) (*model.Instance, error) {
	inst, err := GetInstance(db, id)
	if err != nil {
		return nil, err
	}
	if !inst.CanTransition(model.StatusRevoked) {
		return inst, nil // already revoked, idempotent
	}
	now := time.Now().UTC()
	inst.Status = model.StatusRevoked
	inst.RevokedAt = &now
	inst.ClearToken()
	if err := db.Save(inst).Error; err != nil {
		return nil, fmt.Errorf("revoking instance: %w", err)
	}
	return inst, nil
}

// DeactivateInstance parks an instance. Credentials are cleared; an admin can
// re-activate later.
func DeactivateInstance(db *gorm.DB, id string) (*model.Instance, error) {
	inst, err := GetInstance(db, id)
	if err != nil {
		return nil, err
	}
	if !inst.CanTransition(model.StatusDeactivated) {
		return nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	inst.Status = model.StatusDeactivated
	inst.DeactivatedAt = &now
	inst.ClearToken()
	if err := db.Save(inst).Error; err != nil {
		return nil, fmt.Errorf("deactivating instance: %w", err)
	}
	return inst, nil
}

// MergeInstances points each source at the target and moves attendance,
// shift-plan, month-selection and lock rows over, skipping rows the target
// already has. Runs in one transaction.
func MergeInstances(db *gorm.DB, targetID string, sourceIDs []string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		target, err := GetInstance(tx, targetID)
		if err != nil {
			return err
		}
		if target.Status != model.StatusActive || target.ProfileInstanceID != nil {
			return ErrMergeTarget
		}

		for _, sourceID := range sourceIDs {
			if sourceID == targetID {
				return fmt.Errorf("%w: cannot merge an instance into itself", ErrMergeSource)
			}
			source, err := GetInstance(tx, sourceID)
			if err != nil {
				return err
			}
			if source.Status != model.StatusActive {
				return ErrMergeSource
			}
			if source.ProfileInstanceID != nil {
				if *source.ProfileInstanceID == targetID {
					continue // already merged here
				}
				return ErrMergeSource
			}

			if err := moveAttendanceRows(tx, sourceID, targetID); err != nil {
				return err
			}
			if err := moveShiftPlanRows(tx, sourceID, targetID); err != nil {
				return err
			}
			if err := moveMonthSelections(tx, sourceID, targetID); err != nil {
				return err
			}
			if err := moveLocks(tx, sourceID, targetID); err != nil {
				return err
			}
			if err := tx.Model(source).Update("profile_instance_id", targetID).Error; err != nil {
				return fmt.Errorf("linking source to target: %w", err)
			}
		}
		return nil
	})
}

func moveAttendanceRows(tx *gorm.DB, sourceID, targetID string) error {
	err := tx.Model(&model.Attendance{}).
		Where("instance_id = ?", sourceID).
		Where("date NOT IN (?)", tx.Model(&model.Attendance{}).Select("date").Where("instance_id = ?", targetID)).
		Update("instance_id", targetID).Error
	if err != nil {
		return fmt.Errorf("moving attendance rows: %w", err)
	}
	return nil
}

func moveShiftPlanRows(tx *gorm.DB, sourceID, targetID string) error {
	err := tx.Model(&model.ShiftPlan{}).
		Where("instance_id = ?", sourceID).
		Where("date NOT IN (?)", tx.Model(&model.ShiftPlan{}).Select("date").Where("instance_id = ?", targetID)).
		Update("instance_id", targetID).Error
	if err != nil {
		return fmt.Errorf("moving shift plan rows: %w", err)
	}
	return nil
}

func moveMonthSelections(tx *gorm.DB, sourceID, targetID string) error {
	var rows []model.ShiftPlanMonthInstance
	if err := tx.Where("instance_id = ?", sourceID).Find(&rows).Error; err != nil {
		return fmt.Errorf("loading month selections: %w", err)
	}
	for _, row := range rows {
		var count int64
		err := tx.Model(&model.ShiftPlanMonthInstance{}).
			Where("year = ? AND month = ? AND instance_id = ?", row.Year, row.Month, targetID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("checking month selection: %w", err)
		}
		if count > 0 {
			if err := tx.Delete(&model.ShiftPlanMonthInstance{}, row.ID).Error; err != nil {
				return fmt.Errorf("dropping duplicate month selection: %w", err)
			}
			continue
		}
		if err := tx.Model(&model.ShiftPlanMonthInstance{}).Where("id = ?", row.ID).
			Update("instance_id", targetID).Error; err != nil {
			return fmt.Errorf("moving month selection: %w", err)
		}
	}
	return nil
}

func moveLocks(tx *gorm.DB, sourceID, targetID string) error {
	var rows []model.AttendanceLock
	if err := tx.Where("instance_id = ?", sourceID).Find(&rows).Error; err != nil {
		return fmt.Errorf("loading locks: %w", err)
	}
	for _, row := range rows {
		var count int64
		err := tx.Model(&model.AttendanceLock{}).
			Where("instance_id = ? AND year = ? AND month = ?", targetID, row.Year, row.Month).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("checking lock: %w", err)
		}
		if count > 0 {
			if err := tx.Delete(&model.AttendanceLock{}, row.ID).Error; err != nil {
				return fmt.Errorf("dropping duplicate lock: %w", err)
			}
			continue
		}
		if err := tx.Model(&model.AttendanceLock{}).Where("id = ?", row.ID).
			Update("instance_id", targetID).Error; err != nil {
			return fmt.Errorf("moving lock: %w", err)
		}
	}
	return nil
}

// DeleteInstance removes an instance and all its data. The row is revoked
// first so the credential dies even if the delete half fails.
func DeleteInstance(db *gorm.DB, id string) error {
	if _, err := RevokeInstance(db, id); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&model.Attendance{}, &model.ShiftPlan{},
			&model.ShiftPlanMonthInstance{}, &model.AttendanceLock{},
		} {
			if err := tx.Where("instance_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("deleting instance data: %w", err)
			}
		}
		if err := tx.Model(&model.Instance{}).Where("profile_instance_id = ?", id).
			Update("profile_instance_id", nil).Error; err != nil {
			return fmt.Errorf("unlinking merged sources: %w", err)
		}
		if err := tx.Model(&model.PortalUser{}).Where("instance_id = ?", id).
			Update("instance_id", nil).Error; err != nil {
			return fmt.Errorf("unlinking portal users: %w", err)
		}
		if err := tx.Delete(&model.Instance{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting instance: %w", err)
		}
		return nil
	})
}

// DeletePendingInstances drops all PENDING rows and returns how many went.
func DeletePendingInstances(db *gorm.DB) (int64, error) {
	res := db.Where("status = ?", model.StatusPending).Delete(&model.Instance{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting pending instances: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ClaimToken issues a bearer token for an ACTIVE, named instance. Claiming
// again rotates: the previous token stops working, so a client that lost its
// copy can always recover. Every claim attempt counts as client contact and
// refreshes last_seen_at, whatever the outcome.
func ClaimToken(db *gorm.DB, id string) (string, error) {
	inst, err := GetInstance(db, id)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	if err := db.Model(inst).Update("last_seen_at", now).Error; err != nil {
		return "", fmt.Errorf("recording claim contact: %w", err)
	}
	inst.LastSeenAt = &now
	if inst.Status != model.StatusActive {
		return "", ErrInstanceNotActive
	}
	if inst.DisplayName == nil || *inst.DisplayName == "" {
		return "", ErrDisplayNameMissing
	}
	token, err := security.GenerateInstanceToken()
	if err != nil {
		return "", err
	}
	rec, err := security.MakeTokenRecord(token)
	if err != nil {
		return "", err
	}
	err = db.Model(inst).Updates(map[string]any{
		"token_hash":      rec.Hash,
		"token_prefix":    rec.Prefix,
		"token_issued_at": now,
	}).Error
	if err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return token, nil
}

// VerifyInstanceToken resolves a bearer token to its ACTIVE instance.
// The sha256-derived prefix narrows the candidate set before the expensive
// argon2 verification; absent an index hit it falls back to scanning every
// credentialed row.
func VerifyInstanceToken(db *gorm.DB, token string) (*model.Instance, error) {
	if !security.ValidTokenFormat(token) {
		return nil, ErrInstanceNotFound
	}
	prefix := security.TokenPrefix(token)

	var candidates []model.Instance
	err := db.Where("token_hash IS NOT NULL AND token_prefix = ?", prefix).Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("loading token candidates: %w", err)
	}
	if len(candidates) == 0 {
		err = db.Where("token_hash IS NOT NULL AND token_prefix IS NULL").Find(&candidates).Error
		if err != nil {
			return nil, fmt.Errorf("loading token candidates: %w", err)
		}
	}
	for i := range candidates {
		if candidates[i].TokenHash == nil {
			continue
		}
		if security.VerifyToken(token, *candidates[i].TokenHash) {
			if candidates[i].Status != model.StatusActive {
				return nil, ErrInstanceNotActive
			}
			return &candidates[i], nil
		}
	}
	return nil, ErrInstanceNotFound
}

// ResolveProfileInstance follows a merge link one hop: attendance always
// lands on the merge target when one is set.
func ResolveProfileInstance(db *gorm.DB, inst *model.Instance) (*model.Instance, error) {
	if inst.ProfileInstanceID == nil {
		return inst, nil
	}
	return GetInstance(db, *inst.ProfileInstanceID)
}

// ListInstances returns all rows for the admin console, newest first.
func ListInstances(db *gorm.DB) ([]model.Instance, error) {
	var out []model.Instance
	if err := db.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	return out, nil
}

// GetOrCreateAppSettings returns the single settings row, creating it with
// defaults on first access.
func GetOrCreateAppSettings(db *gorm.DB) (*model.AppSettings, error) {
	var s model.AppSettings
	err := db.First(&s, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s = model.AppSettings{ID: 1, AfternoonCutoffMinutes: 17 * 60}
		if err := db.Create(&s).Error; err != nil {
			return nil, fmt.Errorf("creating app settings: %w", err)
		}
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading app settings: %w", err)
	}
	return &s, nil
}
