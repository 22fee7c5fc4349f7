package detector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Threshold holds the fixed engineering limits for one sensor.
type Threshold struct {
	Warning float64 `json:"warning"`
	Danger  float64 `json:"danger"`
	Unit    string  `json:"unit"`
}

// ThresholdTable maps each sensor to its limits.
type ThresholdTable struct {
	Rain Threshold `json:"rain"`
	Soil Threshold `json:"soil"`
	Tilt Threshold `json:"tilt"`
}

// Lookup returns the limits for k. Kinds missing from the table never trip.
func (t ThresholdTable) Lookup(k SensorKind) Threshold {
	switch k {
	case Rain:
		return t.Rain
	case Soil:
		return t.Soil
	case Tilt:
		return t.Tilt
	}
	return Threshold{Warning: math.Inf(1), Danger: math.Inf(1)}
}

var defaultThresholds = ThresholdTable{
	Tilt: Threshold{Warning: 15.0, Danger: 25.0, Unit: "°"}, // noticeable movement / imminent failure
	Soil: Threshold{Warning: 70.0, Danger: 85.0, Unit: "%"}, // saturation onset / pore pressure critical
	Rain: Threshold{Warning: 50.0, Danger: 75.0, Unit: ""},  // moderate / heavy rainfall
}

// DefaultThresholds returns a copy of the compiled-in threshold table.
func DefaultThresholds() ThresholdTable {
	return defaultThresholds
}

// Bucket is the result of comparing a raw value against its limits.
type Bucket string

const (
	BucketNormal  Bucket = "normal"
	BucketWarning Bucket = "warning"
	BucketDanger  Bucket = "danger"
)

// ThresholdStatus describes where a single sensor value sits against its limits.
type ThresholdStatus struct {
	Status  Bucket    `json:"status"`
	Level   RiskState `json:"level"`
	Message string    `json:"message"`
}

// ThresholdReport holds one ThresholdStatus per sensor.
type ThresholdReport struct {
	Rain ThresholdStatus `json:"rain"`
	Soil ThresholdStatus `json:"soil"`
	Tilt ThresholdStatus `json:"tilt"`
}

// Get returns the status for k.
func (r ThresholdReport) Get(k SensorKind) ThresholdStatus {
	switch k {
	case Rain:
		return r.Rain
	case Soil:
		return r.Soil
	case Tilt:
		return r.Tilt
	}
	return ThresholdStatus{}
}

func (r *ThresholdReport) set(k SensorKind, s ThresholdStatus) {
	switch k {
	case Rain:
		r.Rain = s
	case Soil:
		r.Soil = s
	case Tilt:
		r.Tilt = s
	}
}

// EvaluateThreshold classifies value against the limits for sensor.
// Bounds are inclusive: a value equal to a limit lands in the higher bucket.
func EvaluateThreshold(sensor SensorKind, value float64) ThresholdStatus {
	return evaluate(defaultThresholds.Lookup(sensor), value)
}

func evaluate(t Threshold, value float64) ThresholdStatus {
	switch {
	case value >= t.Danger:
		return ThresholdStatus{
			Status:  BucketDanger,
			Level:   StateHigh,
			Message: fmt.Sprintf("Exceeds danger threshold (%s%s)", formatLimit(t.Danger), t.Unit),
		}
	case value >= t.Warning:
		return ThresholdStatus{
			Status:  BucketWarning,
			Level:   StateModerate,
			Message: fmt.Sprintf("Exceeds warning threshold (%s%s)", formatLimit(t.Warning), t.Unit),
		}
	default:
		return ThresholdStatus{
			Status:  BucketNormal,
			Level:   StateLow,
			Message: "Within normal range",
		}
	}
}

// formatLimit prints a limit the way station firmware and dashboards expect:
// shortest form, always with a decimal part ("25.0", "84.9").
func formatLimit(v float64) string {
	if math.IsInf(v, 0) {
		return "inf"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// EvaluateAll classifies every sensor in r.
func EvaluateAll(r Reading) ThresholdReport {
	var report ThresholdReport
	for _, k := range AllSensors {
		report.set(k, EvaluateThreshold(k, r.Value(k)))
	}
	return report
}

// counts returns how many sensors sit in the danger and warning buckets.
func (r ThresholdReport) counts() (danger, warning int) {
	for _, k := range AllSensors {
		switch r.Get(k).Status {
		case BucketDanger:
			danger++
		case BucketWarning:
			warning++
		}
	}
	return danger, warning
}
