package models

import "errors"

// ReadingPayload is the JSON body an ESP32 station sends, over HTTP or MQTT.
// Fields are pointers so that a missing sensor can be told apart from a zero.
type ReadingPayload struct {
	RainValue    *float64 `json:"rain_value" binding:"required"`
	SoilMoisture *float64 `json:"soil_moisture" binding:"required"`
	TiltValue    *float64 `json:"tilt_value" binding:"required"`
}

// ErrMissingSensor is returned when a payload omits one of the sensors.
var ErrMissingSensor = errors.New("payload must contain rain_value, soil_moisture and tilt_value")

// Values returns the three readings, or ErrMissingSensor.
func (p ReadingPayload) Values() (rain, soil, tilt float64, err error) {
	if p.RainValue == nil || p.SoilMoisture == nil || p.TiltValue == nil {
		return 0, 0, 0, ErrMissingSensor
	}
	return *p.RainValue, *p.SoilMoisture, *p.TiltValue, nil
}
