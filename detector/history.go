package detector

// History is a copy of an engine's rolling windows, oldest value first.
type History struct {
	Rain []float64 `json:"rain"`
	Soil []float64 `json:"soil"`
	Tilt []float64 `json:"tilt"`
}

func (h History) series(k SensorKind) []float64 {
	switch k {
	case Rain:
		return h.Rain
	case Soil:
		return h.Soil
	case Tilt:
		return h.Tilt
	}
	return nil
}

// History returns a copy of the current windows.
func (e *Engine) History() History {
	return History{
		Rain: e.windows[Rain].snapshot(),
		Soil: e.windows[Soil].snapshot(),
		Tilt: e.windows[Tilt].snapshot(),
	}
}

// Restore builds an engine whose windows hold h. Series are trimmed to their
// newest values so that all three end up the same length and no longer than
// windowSize.
func Restore(windowSize int, h History) *Engine {
	e := New(windowSize)
	n := e.size
	for _, k := range AllSensors {
		if l := len(h.series(k)); l < n {
			n = l
		}
	}
	for i := 0; i < n; i++ {
		e.Record(Reading{
			Rain: h.Rain[len(h.Rain)-n+i],
			Soil: h.Soil[len(h.Soil)-n+i],
			Tilt: h.Tilt[len(h.Tilt)-n+i],
		})
	}
	return e
}
