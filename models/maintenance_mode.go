package models

import "time"

// MaintenanceModeSetting stores whether the station is under maintenance.
// While enabled, readings are stored but kept out of the risk engine.
type MaintenanceModeSetting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	IsEnabled bool      `json:"is_enabled" gorm:"default:false"`
	StartTime time.Time `json:"start_time"`
	Reason    string    `json:"reason"`
}
