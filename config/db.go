package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"slopesentry/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is a global variable to hold the database connection
var DB *gorm.DB

// OpenDB connects to PostgreSQL using the given DSN.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// maintenanceStateCache holds the current maintenance mode state in memory
// and is synchronized with the database.
type maintenanceStateCache struct {
	IsEnabled bool
	StartTime time.Time
	Reason    string
}

var (
	currentMaintenance maintenanceStateCache
	maintenanceMutex   sync.Mutex
)

const maintenanceSettingID = 1 // single station, single setting row

// InitMaintenanceState loads the maintenance mode state from the database
// or creates a default entry if one doesn't exist.
// This should be called on application startup.
func InitMaintenanceState(db *gorm.DB) error {
	maintenanceMutex.Lock()
	defer maintenanceMutex.Unlock()

	var setting models.MaintenanceModeSetting
	result := db.First(&setting, maintenanceSettingID)

	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		setting = models.MaintenanceModeSetting{ID: maintenanceSettingID}
		if err := db.Create(&setting).Error; err != nil {
			return err
		}
	}

	currentMaintenance = maintenanceStateCache{
		IsEnabled: setting.IsEnabled,
		StartTime: setting.StartTime,
		Reason:    setting.Reason,
	}
	return nil
}

// GetMaintenanceState returns the current cached maintenance mode state.
func GetMaintenanceState() (isEnabled bool, startTime time.Time, reason string) {
	maintenanceMutex.Lock()
	defer maintenanceMutex.Unlock()
	return currentMaintenance.IsEnabled, currentMaintenance.StartTime, currentMaintenance.Reason
}

// InMaintenance reports whether maintenance mode is on.
func InMaintenance() bool {
	on, _, _ := GetMaintenanceState()
	return on
}

// SetMaintenanceState updates the maintenance mode state in both the database and the cache.
func SetMaintenanceState(db *gorm.DB, isEnabled bool, startTime time.Time, reason string) error {
	maintenanceMutex.Lock()
	defer maintenanceMutex.Unlock()

	setting := models.MaintenanceModeSetting{
		ID:        maintenanceSettingID,
		IsEnabled: isEnabled,
		StartTime: startTime,
		Reason:    reason,
	}

	// Save creates the row if Init was never called
	if err := db.Save(&setting).Error; err != nil {
		return err
	}

	currentMaintenance = maintenanceStateCache{
		IsEnabled: isEnabled,
		StartTime: startTime,
		Reason:    reason,
	}
	return nil
}
