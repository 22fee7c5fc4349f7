package controllers

import (
	"slopesentry/config"
	"slopesentry/models"

	"gorm.io/gorm"
)

// MigrateModels runs the database migrations
func MigrateModels(db *gorm.DB) error {
	config.DB = db
	return db.AutoMigrate(
		&models.User{},
		&models.SensorReading{},
		&models.MaintenanceModeSetting{},
		&models.Report{},
	)
}
