package core

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hcasc.cz/dagmar/model"
)

type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// DatabaseManager owns the connection pool for the single-schema deployment.
type DatabaseManager struct {
	DB *gorm.DB
}

// New opens the MySQL pool and wraps it in gorm.
func New(dsn string, maxConnections int, level LogLevel) (*DatabaseManager, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(level)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxConnections)
	sqlDB.SetMaxIdleConns(maxConnections)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping pool: %w", err)
	}
	return &DatabaseManager{DB: db}, nil
}

// NewSQLite opens an embedded database, used by tests and local development.
func NewSQLite(path string) (*DatabaseManager, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &DatabaseManager{DB: db}, nil
}

func gormLogLevel(level LogLevel) logger.LogLevel {
	switch level {
	case LogLevelError:
		return logger.Error
	case LogLevelWarn:
		return logger.Warn
	case LogLevelInfo:
		return logger.Info
	default:
		return logger.Silent
	}
}

// AutoMigrate creates or updates the full schema.
func (dm *DatabaseManager) AutoMigrate() error {
	return dm.DB.AutoMigrate(
		&model.Instance{},
		&model.Attendance{},
		&model.ShiftPlan{},
		&model.ShiftPlanMonthInstance{},
		&model.AttendanceLock{},
		&model.AdminUser{},
		&model.PortalUser{},
		&model.PortalUserResetToken{},
		&model.AppSettings{},
	)
}

func (dm *DatabaseManager) Close() error {
	sqlDB, err := dm.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
