package model

import "time"

// Attendance holds one day of self-reported times for an instance.
// Times are stored as "HH:MM" strings or NULL; validation happens at the API
// layer. A row with both times NULL is kept (the day was touched).
type Attendance struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`

	InstanceID string    `gorm:"column:instance_id;size:36;not null;uniqueIndex:uq_attendance_instance_date"`
	Date       time.Time `gorm:"column:date;type:date;not null;uniqueIndex:uq_attendance_instance_date"`

	ArrivalTime   *string `gorm:"column:arrival_time;size:5"`
	DepartureTime *string `gorm:"column:departure_time;size:5"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Attendance) TableName() string {
	return "attendance"
}

// ShiftPlan mirrors Attendance for planned times. Unlike attendance, a plan
// row with both times NULL is deleted: row existence encodes "has a plan".
type ShiftPlan struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`

	InstanceID string    `gorm:"column:instance_id;size:36;not null;uniqueIndex:uq_shift_plan_instance_date"`
	Date       time.Time `gorm:"column:date;type:date;not null;uniqueIndex:uq_shift_plan_instance_date"`

	ArrivalTime   *string `gorm:"column:arrival_time;size:5"`
	DepartureTime *string `gorm:"column:departure_time;size:5"`

	CreatedAt time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt *time.Time `gorm:"column:updated_at"`
}

func (ShiftPlan) TableName() string {
	return "shift_plan"
}

// ShiftPlanMonthInstance records which instances the admin put on the plan
// grid for a given month.
type ShiftPlanMonthInstance struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Year       int       `gorm:"column:year;not null;uniqueIndex:uq_shift_plan_month_instance"`
	Month      int       `gorm:"column:month;not null;uniqueIndex:uq_shift_plan_month_instance"`
	InstanceID string    `gorm:"column:instance_id;size:36;not null;uniqueIndex:uq_shift_plan_month_instance"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (ShiftPlanMonthInstance) TableName() string {
	return "shift_plan_month_instances"
}

// AttendanceLock freezes one instance+month against further edits.
type AttendanceLock struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	InstanceID string    `gorm:"column:instance_id;size:36;not null;uniqueIndex:uq_attendance_lock_instance_month"`
	Year       int       `gorm:"column:year;not null;uniqueIndex:uq_attendance_lock_instance_month"`
	Month      int       `gorm:"column:month;not null;uniqueIndex:uq_attendance_lock_instance_month"`
	LockedAt   time.Time `gorm:"column:locked_at;not null"`
	LockedBy   *string   `gorm:"column:locked_by;size:64"`
}

func (AttendanceLock) TableName() string {
	return "attendance_locks"
}
