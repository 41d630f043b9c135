package core

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/utils"
)

var ErrMonthLocked = errors.New("attendance month is locked")

// DayEntry is one calendar day in a month view: reported times merged with
// the planned shift for that day. Untouched days carry nulls.
type DayEntry struct {
	Date             string  `json:"date"`
	ArrivalTime      *string `json:"arrival_time"`
	DepartureTime    *string `json:"departure_time"`
	PlannedArrival   *string `json:"planned_arrival_time"`
	PlannedDeparture *string `json:"planned_departure_time"`
}

// IsMonthLocked reports whether the instance's month is frozen.
func IsMonthLocked(db *gorm.DB, instanceID string, year, month int) (bool, error) {
	var count int64
	err := db.Model(&model.AttendanceLock{}).
		Where("instance_id = ? AND year = ? AND month = ?", instanceID, year, month).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking month lock: %w", err)
	}
	return count > 0, nil
}

// LockMonth freezes an instance's month. Locking a locked month is a no-op.
func LockMonth(db *gorm.DB, instanceID string, year, month int, lockedBy *string) error {
	locked, err := IsMonthLocked(db, instanceID, year, month)
	if err != nil {
		return err
	}
	if locked {
		return nil
	}
	lock := model.AttendanceLock{
		InstanceID: instanceID,
		Year:       year,
		Month:      month,
		LockedAt:   time.Now().UTC(),
		LockedBy:   lockedBy,
	}
	if err := db.Create(&lock).Error; err != nil {
		return fmt.Errorf("creating month lock: %w", err)
	}
	return nil
}

// UnlockMonth removes the freeze. Unlocking an unlocked month is a no-op.
func UnlockMonth(db *gorm.DB, instanceID string, year, month int) error {
	err := db.Where("instance_id = ? AND year = ? AND month = ?", instanceID, year, month).
		Delete(&model.AttendanceLock{}).Error
	if err != nil {
		return fmt.Errorf("removing month lock: %w", err)
	}
	return nil
}

// MonthAttendance builds the merged month view for one instance. Every
// calendar day of the month is present so clients can render the grid
// without filling gaps themselves.
func MonthAttendance(db *gorm.DB, instanceID string, year, month int) ([]DayEntry, error) {
	start, end := utils.MonthRange(year, month)

	var attendance []model.Attendance
	err := db.Where("instance_id = ? AND date >= ? AND date < ?", instanceID, start, end).
		Order("date").Find(&attendance).Error
	if err != nil {
		return nil, fmt.Errorf("loading attendance: %w", err)
	}
	var plans []model.ShiftPlan
	err = db.Where("instance_id = ? AND date >= ? AND date < ?", instanceID, start, end).
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("loading shift plan: %w", err)
	}

	attByDate := make(map[string]*model.Attendance, len(attendance))
	for i := range attendance {
		attByDate[attendance[i].Date.Format("2006-01-02")] = &attendance[i]
	}
	planByDate := make(map[string]*model.ShiftPlan, len(plans))
	for i := range plans {
		planByDate[plans[i].Date.Format("2006-01-02")] = &plans[i]
	}

	out := make([]DayEntry, 0, 31)
	for cur := start; cur.Before(end); cur = cur.AddDate(0, 0, 1) {
		key := cur.Format("2006-01-02")
		e := DayEntry{Date: key}
		if a, ok := attByDate[key]; ok {
			e.ArrivalTime = a.ArrivalTime
			e.DepartureTime = a.DepartureTime
		}
		if p, ok := planByDate[key]; ok {
			e.PlannedArrival = p.ArrivalTime
			e.PlannedDeparture = p.DepartureTime
		}
		out = append(out, e)
	}
	return out, nil
}

// UpsertAttendance writes one day of reported times. The row survives even
// when both times are cleared: a touched day stays visible. Locked months
// reject the write.
func UpsertAttendance(db *gorm.DB, instanceID string, date time.Time, arrival, departure *string) error {
	locked, err := IsMonthLocked(db, instanceID, date.Year(), int(date.Month()))
	if err != nil {
		return err
	}
	if locked {
		return ErrMonthLocked
	}

	now := time.Now().UTC()
	var row model.Attendance
	err = db.Where("instance_id = ? AND date = ?", instanceID, date).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = model.Attendance{
			InstanceID:    instanceID,
			Date:          date,
			ArrivalTime:   arrival,
			DepartureTime: departure,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := db.Create(&row).Error; err != nil {
			return fmt.Errorf("creating attendance row: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading attendance row: %w", err)
	}
	err = db.Model(&row).Updates(map[string]any{
		"arrival_time":   arrival,
		"departure_time": departure,
		"updated_at":     now,
	}).Error
	if err != nil {
		return fmt.Errorf("updating attendance row: %w", err)
	}
	return nil
}

// UpsertShiftPlan writes one planned day. Clearing both times deletes the
// row: plan row existence means "a shift is planned".
func UpsertShiftPlan(db *gorm.DB, instanceID string, date time.Time, arrival, departure *string) error {
	if arrival == nil && departure == nil {
		err := db.Where("instance_id = ? AND date = ?", instanceID, date).
			Delete(&model.ShiftPlan{}).Error
		if err != nil {
			return fmt.Errorf("deleting shift plan row: %w", err)
		}
		return nil
	}

	now := time.Now().UTC()
	var row model.ShiftPlan
	err := db.Where("instance_id = ? AND date = ?", instanceID, date).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = model.ShiftPlan{
			InstanceID:    instanceID,
			Date:          date,
			ArrivalTime:   arrival,
			DepartureTime: departure,
			CreatedAt:     now,
		}
		if err := db.Create(&row).Error; err != nil {
			return fmt.Errorf("creating shift plan row: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading shift plan row: %w", err)
	}
	err = db.Model(&row).Updates(map[string]any{
		"arrival_time":   arrival,
		"departure_time": departure,
		"updated_at":     now,
	}).Error
	if err != nil {
		return fmt.Errorf("updating shift plan row: %w", err)
	}
	return nil
}

// GetMonthSelection returns the instance IDs the admin placed on the plan
// grid for a month.
func GetMonthSelection(db *gorm.DB, year, month int) ([]string, error) {
	var rows []model.ShiftPlanMonthInstance
	err := db.Where("year = ? AND month = ?", year, month).
		Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading month selection: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.InstanceID)
	}
	return ids, nil
}

// SetMonthSelection replaces the month's plan-grid membership. Every ID must
// reference an ACTIVE instance.
func SetMonthSelection(db *gorm.DB, year, month int, instanceIDs []string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, id := range instanceIDs {
			inst, err := GetInstance(tx, id)
			if err != nil {
				return err
			}
			if inst.Status != model.StatusActive {
				return fmt.Errorf("%w: %s", ErrInstanceNotActive, id)
			}
		}
		err := tx.Where("year = ? AND month = ?", year, month).
			Delete(&model.ShiftPlanMonthInstance{}).Error
		if err != nil {
			return fmt.Errorf("clearing month selection: %w", err)
		}
		now := time.Now().UTC()
		for _, id := range instanceIDs {
			row := model.ShiftPlanMonthInstance{
				Year:       year,
				Month:      month,
				InstanceID: id,
				CreatedAt:  now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("storing month selection: %w", err)
			}
		}
		return nil
	})
}
