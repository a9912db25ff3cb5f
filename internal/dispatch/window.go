package dispatch

import (
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mindflex/internal/thinkgear"
)

// DEFAULT_WINDOW_SIZE matches the 50-sample attention history kept for display.
const DEFAULT_WINDOW_SIZE = 50

// Window is a rolling history of recent attention values. The dispatcher
// goroutine writes through OnRecord while display or API goroutines read
// Snapshot and Summary, so every access holds the mutex.
type Window struct {
	mu     sync.Mutex
	size   int
	values []float64
}

// WindowSummary describes the values currently in a Window.
type WindowSummary struct {
	Count  int     `json:"count"`
	Latest float64 `json:"latest"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// NewWindow returns an empty window holding at most size values.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DEFAULT_WINDOW_SIZE
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

// Push appends v, evicting the oldest value when full.
func (w *Window) Push(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, v)
}

// OnRecord records the attention value of non-trivial records.
func (w *Window) OnRecord(r thinkgear.Record) error {
	if r.Trivial() || !r.Has(thinkgear.FieldAttention) {
		return nil
	}
	w.Push(float64(r.Attention))
	return nil
}

// OnTrigger is a no-op; triggers are already reflected in the attention values.
func (w *Window) OnTrigger(Trigger) error { return nil }

// Snapshot returns a copy of the values, oldest first.
func (w *Window) Snapshot() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]float64(nil), w.values...)
}

// Summary computes statistics over the current values.
func (w *Window) Summary() WindowSummary {
	values := w.Snapshot()
	if len(values) == 0 {
		return WindowSummary{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return WindowSummary{
		Count:  len(values),
		Latest: values[len(values)-1],
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
