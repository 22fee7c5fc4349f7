package utils

import (
	"math"

	"slopesentry/detector"
	"slopesentry/models"
)

// IsAlert reports whether a stored reading produced a High verdict.
func IsAlert(record models.SensorReading) bool {
	return record.Scored && record.RiskState == string(detector.StateHigh)
}

// GetAlertType names the sensor that drove a reading's verdict: the first
// sensor in danger, else the first in warning, else the one with the
// largest absolute z-score.
func GetAlertType(record models.SensorReading) string {
	statuses := []struct {
		name   string
		status string
		z      float64
	}{
		{"Rainfall", record.RainStatus, record.ZScoreRain},
		{"Soil Moisture", record.SoilStatus, record.ZScoreSoil},
		{"Ground Tilt", record.TiltStatus, record.ZScoreTilt},
	}

	for _, bucket := range []detector.Bucket{detector.BucketDanger, detector.BucketWarning} {
		for _, s := range statuses {
			if s.status == string(bucket) {
				return s.name
			}
		}
	}

	best, bestZ := "Unknown", 0.0
	for _, s := range statuses {
		if z := math.Abs(s.z); z > bestZ {
			best, bestZ = s.name, z
		}
	}
	return best
}
