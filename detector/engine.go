// Package detector scores slope sensor readings for landslide risk.
//
// An Engine keeps a rolling window of recent readings per sensor and
// combines two independent assessments on every update: a statistical
// z-score check against the window and a fixed engineering-threshold check
// on the raw values. The final verdict is the worse of the two.
//
// An Engine is not safe for concurrent use. Create one per monitored site
// and serialize calls to it.
package detector

import "math"

const (
	// DefaultWindowSize is the number of readings kept per sensor.
	DefaultWindowSize = 20
	// MinHistory is the number of readings required before scoring starts.
	MinHistory = 5

	sigmaCap        = 3.0
	moderateCutoff  = 30.0
	highCutoff      = 60.0
	maxRiskPercent  = 100.0
	twoWarningsRisk = 80.0
	oneWarningRisk  = 50.0
)

// RiskState is the coarse classification attached to a verdict.
type RiskState string

const (
	StateInitializing RiskState = "Initializing"
	StateLow          RiskState = "Low"
	StateModerate     RiskState = "Moderate"
	StateHigh         RiskState = "High"
)

// Severity orders Low < Moderate < High. Initializing sorts below Low.
func (s RiskState) Severity() int {
	switch s {
	case StateLow:
		return 1
	case StateModerate:
		return 2
	case StateHigh:
		return 3
	}
	return 0
}

func worse(a, b RiskState) RiskState {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// Verdict is the result of a single update.
type Verdict struct {
	RiskPercentage  float64         `json:"risk_percentage"`
	RiskState       RiskState       `json:"risk_state"`
	ZScores         PerSensor       `json:"z_scores"`
	ThresholdStatus ThresholdReport `json:"threshold_status"`
}

// Assessment is the outcome of one scoring method before fusion.
type Assessment struct {
	Risk  float64
	State RiskState
}

// Engine is a stateful risk-fusion scorer for a single site.
type Engine struct {
	size    int
	windows [len(AllSensors)]*window
}

// New returns an Engine keeping windowSize readings per sensor.
// Non-positive sizes fall back to DefaultWindowSize.
func New(windowSize int) *Engine {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	e := &Engine{size: windowSize}
	for _, k := range AllSensors {
		e.windows[k] = newWindow(windowSize)
	}
	return e
}

// Record appends r to the rolling history without scoring it.
func (e *Engine) Record(r Reading) {
	for _, k := range AllSensors {
		e.windows[k].push(r.Value(k))
	}
}

// UpdateAndScore records the reading and returns the fused verdict.
func (e *Engine) UpdateAndScore(rain, soil, tilt float64) Verdict {
	r := Reading{Rain: rain, Soil: soil, Tilt: tilt}
	e.Record(r)

	thresholds := EvaluateAll(r)
	if e.Len() < MinHistory {
		return Verdict{
			RiskPercentage:  0,
			RiskState:       StateInitializing,
			ThresholdStatus: thresholds,
		}
	}

	z := e.zscores(r)
	stat := statisticalAssessment(z)
	thr := thresholdAssessment(thresholds)

	return Verdict{
		RiskPercentage:  round(math.Max(stat.Risk, thr.Risk), 2),
		RiskState:       worse(stat.State, thr.State),
		ZScores:         PerSensor{Rain: round(z.Rain, 4), Soil: round(z.Soil, 4), Tilt: round(z.Tilt, 4)},
		ThresholdStatus: thresholds,
	}
}

// ZScore scores value against the current window for sensor.
func (e *Engine) ZScore(sensor SensorKind, value float64) float64 {
	if int(sensor) < 0 || int(sensor) >= len(e.windows) {
		return 0
	}
	return e.windows[sensor].zscore(value)
}

func (e *Engine) zscores(r Reading) PerSensor {
	var z PerSensor
	for _, k := range AllSensors {
		z.set(k, e.ZScore(k, r.Value(k)))
	}
	return z
}

func statisticalAssessment(z PerSensor) Assessment {
	avg := (math.Abs(z.Rain) + math.Abs(z.Soil) + math.Abs(z.Tilt)) / 3
	risk := avg / sigmaCap * 100

	// only soil and tilt can force the override; rain cannot
	if math.Abs(z.Soil) > sigmaCap || math.Abs(z.Tilt) > sigmaCap {
		risk = maxRiskPercent
	}
	risk = clamp(risk, 0, maxRiskPercent)

	state := StateLow
	switch {
	case risk > highCutoff:
		state = StateHigh
	case risk > moderateCutoff:
		state = StateModerate
	}
	return Assessment{Risk: risk, State: state}
}

func thresholdAssessment(report ThresholdReport) Assessment {
	danger, warning := report.counts()
	switch {
	case danger >= 1:
		return Assessment{Risk: maxRiskPercent, State: StateHigh}
	case warning >= 2:
		return Assessment{Risk: twoWarningsRisk, State: StateHigh}
	case warning >= 1:
		return Assessment{Risk: oneWarningRisk, State: StateModerate}
	}
	return Assessment{Risk: 0, State: StateLow}
}

// Len is the number of readings currently held per sensor.
func (e *Engine) Len() int { return e.windows[Rain].len() }

// WindowSize is the fixed capacity of each sensor's history.
func (e *Engine) WindowSize() int { return e.size }

// RollingMean returns the mean of each sensor's window, 0 when empty.
func (e *Engine) RollingMean() PerSensor {
	var m PerSensor
	for _, k := range AllSensors {
		m.set(k, e.windows[k].mean())
	}
	return m
}

// Thresholds returns the threshold table the engine evaluates against.
func (e *Engine) Thresholds() ThresholdTable { return DefaultThresholds() }

// ThresholdReport evaluates a hypothetical reading without recording it.
func (e *Engine) ThresholdReport(r Reading) ThresholdReport { return EvaluateAll(r) }

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
