package detector

import "math"

// window is a capacity-bounded FIFO of raw values, newest last.
type window struct {
	size   int
	values []float64
}

func newWindow(size int) *window {
	return &window{size: size, values: make([]float64, 0, size+1)}
}

func (w *window) push(v float64) {
	w.values = append(w.values, v)
	if over := len(w.values) - w.size; over > 0 {
		// shift in place so the backing array does not grow without bound
		n := copy(w.values, w.values[over:])
		w.values = w.values[:n]
	}
}

func (w *window) len() int { return len(w.values) }

func (w *window) snapshot() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

func (w *window) mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}

// stddev is the population standard deviation (divides by N).
func (w *window) stddev() float64 {
	if len(w.values) == 0 {
		return 0
	}
	m := w.mean()
	var sq float64
	for _, v := range w.values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(w.values)))
}

// flat reports whether every value in the window is identical. Rounding in
// mean can leave a tiny nonzero stddev for such windows, so it is checked
// on the values themselves.
func (w *window) flat() bool {
	for _, v := range w.values {
		if v != w.values[0] {
			return false
		}
	}
	return true
}

// zscore scores v against the window, which already contains v.
// A flat window has no spread to measure against and scores 0.
func (w *window) zscore(v float64) float64 {
	if w.flat() {
		return 0
	}
	std := w.stddev()
	if std == 0 {
		return 0
	}
	return (v - w.mean()) / std
}
