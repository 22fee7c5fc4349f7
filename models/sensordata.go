package models

import "time"

// SensorReading is one stored reading together with the verdict it produced.
// Readings taken during maintenance are stored with Scored set to false and
// carry no verdict.
type SensorReading struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SiteID       string    `json:"site_id" gorm:"index;not null"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`
	RainValue    float64   `json:"rain_value"`
	SoilMoisture float64   `json:"soil_moisture"`
	TiltValue    float64   `json:"tilt_value"`
	Scored       bool      `json:"scored"`
	RiskScore    float64   `json:"risk_score"`
	RiskState    string    `json:"risk_state" gorm:"index"`
	ZScoreRain   float64   `json:"z_score_rain"`
	ZScoreSoil   float64   `json:"z_score_soil"`
	ZScoreTilt   float64   `json:"z_score_tilt"`
	RainStatus   string    `json:"rain_status"`
	SoilStatus   string    `json:"soil_status"`
	TiltStatus   string    `json:"tilt_status"`
	MeanRain     float64   `json:"mean_rain"`
	MeanSoil     float64   `json:"mean_soil"`
	MeanTilt     float64   `json:"mean_tilt"`
}
