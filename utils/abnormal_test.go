package utils

import (
	"testing"

	"slopesentry/models"

	"github.com/stretchr/testify/assert"
)

func TestIsAlert(t *testing.T) {
	assert.True(t, IsAlert(models.SensorReading{Scored: true, RiskState: "High"}))
	assert.False(t, IsAlert(models.SensorReading{Scored: true, RiskState: "Moderate"}))
	assert.False(t, IsAlert(models.SensorReading{Scored: false, RiskState: "High"}))
}

func TestGetAlertType(t *testing.T) {
	tests := []struct {
		name   string
		record models.SensorReading
		want   string
	}{
		{
			name:   "danger wins over earlier warning",
			record: models.SensorReading{RainStatus: "warning", SoilStatus: "normal", TiltStatus: "danger"},
			want:   "Ground Tilt",
		},
		{
			name:   "first warning",
			record: models.SensorReading{RainStatus: "normal", SoilStatus: "warning", TiltStatus: "warning"},
			want:   "Soil Moisture",
		},
		{
			name:   "largest z-score",
			record: models.SensorReading{RainStatus: "normal", SoilStatus: "normal", TiltStatus: "normal", ZScoreRain: 1.1, ZScoreSoil: -3.6, ZScoreTilt: 2},
			want:   "Soil Moisture",
		},
		{
			name:   "nothing stands out",
			record: models.SensorReading{},
			want:   "Unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetAlertType(tt.record))
		})
	}
}
