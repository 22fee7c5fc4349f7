package detector

// SensorKind identifies one of the three slope sensors.
type SensorKind int

const (
	Rain SensorKind = iota
	Soil
	Tilt
)

// AllSensors lists every sensor in the fixed rain, soil, tilt order.
var AllSensors = [...]SensorKind{Rain, Soil, Tilt}

func (k SensorKind) String() string {
	switch k {
	case Rain:
		return "rain"
	case Soil:
		return "soil"
	case Tilt:
		return "tilt"
	}
	return "unknown"
}

// Reading is one sample from every sensor taken at the same instant.
type Reading struct {
	Rain float64 `json:"rain"`
	Soil float64 `json:"soil"`
	Tilt float64 `json:"tilt"`
}

// Value returns the reading for a single sensor.
func (r Reading) Value(k SensorKind) float64 {
	switch k {
	case Rain:
		return r.Rain
	case Soil:
		return r.Soil
	case Tilt:
		return r.Tilt
	}
	return 0
}

// PerSensor holds one float per sensor. It is used for z-scores and rolling means.
type PerSensor struct {
	Rain float64 `json:"rain"`
	Soil float64 `json:"soil"`
	Tilt float64 `json:"tilt"`
}

func (p *PerSensor) set(k SensorKind, v float64) {
	switch k {
	case Rain:
		p.Rain = v
	case Soil:
		p.Soil = v
	case Tilt:
		p.Tilt = v
	}
}

// Get returns the value stored for k.
func (p PerSensor) Get(k SensorKind) float64 {
	return Reading(p).Value(k)
}
