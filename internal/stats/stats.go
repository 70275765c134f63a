// Package stats tracks stream throughput over a sliding time window.
package stats

import (
	"sync"

	"github.com/andresmejia3/facepack/internal/clock"
)

// DefaultWindow is the sliding window span in milliseconds.
const DefaultWindow = 5000

// Kind selects how a window summarizes its samples.
type Kind int

const (
	// Rate reports the windowed sum per second.
	Rate Kind = iota
	// Average reports the mean sample value in the window.
	Average
)

// Stream counters recorded by the stream command.
const (
	Analyzed  = "analyzed"
	Compacted = "compacted"
	Skipped   = "skipped"
	Failed    = "failed"
	Posted    = "posted"
	Latency   = "latency"
	BytesIn   = "bytes_in"
	BytesOut  = "bytes_out"
)

type sample struct {
	at    float64
	value float64
}

// Window keeps samples newer than Span milliseconds. Safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	span    float64
	kind    Kind
	clock   clock.Clock
	samples []sample
}

// NewWindow creates a window of span milliseconds. A nil clock means
// clock.System.
func NewWindow(span float64, kind Kind, clk clock.Clock) *Window {
	if span <= 0 {
		span = DefaultWindow
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Window{span: span, kind: kind, clock: clk}
}

// Add records one sample at the current time.
func (w *Window) Add(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.samples = append(w.samples, sample{at: now, value: v})
	w.prune(now)
}

// Value returns the windowed statistic and the sum it was computed from.
func (w *Window) Value() (stat, sum float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(w.clock.Now())
	if len(w.samples) == 0 {
		return 0, 0
	}
	for _, s := range w.samples {
		sum += s.value
	}
	if w.kind == Average {
		return sum / float64(len(w.samples)), sum
	}
	return sum * 1000 / w.span, sum
}

func (w *Window) prune(now float64) {
	cutoff := now - w.span
	i := 0
	for i < len(w.samples) && w.samples[i].at < cutoff {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// Stat is a point-in-time view of one counter.
type Stat struct {
	Name   string
	Total  float64
	Recent float64 // per second for Rate counters, mean for Average
	Kind   Kind
}

type counter struct {
	total  float64
	window *Window
}

// Monitor is a named set of windowed counters. Counters are created on
// first use; latency is an Average, everything else a Rate.
type Monitor struct {
	mu       sync.Mutex
	span     float64
	clock    clock.Clock
	order    []string
	counters map[string]*counter
}

// NewMonitor creates a Monitor with the given window span in milliseconds.
func NewMonitor(span float64, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.System{}
	}
	return &Monitor{span: span, clock: clk, counters: make(map[string]*counter)}
}

func (m *Monitor) get(name string) *counter {
	c, ok := m.counters[name]
	if !ok {
		kind := Rate
		if name == Latency {
			kind = Average
		}
		c = &counter{window: NewWindow(m.span, kind, m.clock)}
		m.counters[name] = c
		m.order = append(m.order, name)
	}
	return c
}

// Incr adds v to the named counter.
func (m *Monitor) Incr(name string, v float64) {
	m.mu.Lock()
	c := m.get(name)
	c.total += v
	m.mu.Unlock()

	c.window.Add(v)
}

// Total returns the lifetime sum of a counter.
func (m *Monitor) Total(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c.total
	}
	return 0
}

// Recent returns the windowed statistic of a counter.
func (m *Monitor) Recent(name string) float64 {
	m.mu.Lock()
	c, ok := m.counters[name]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	v, _ := c.window.Value()
	return v
}

// Ratio is output bytes over input bytes, or 0 before any input.
func (m *Monitor) Ratio() float64 {
	in := m.Total(BytesIn)
	if in == 0 {
		return 0
	}
	return m.Total(BytesOut) / in
}

// Snapshot returns every counter in creation order.
func (m *Monitor) Snapshot() []Stat {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	out := make([]Stat, 0, len(names))
	for _, name := range names {
		m.mu.Lock()
		c := m.counters[name]
		total := c.total
		m.mu.Unlock()

		recent, _ := c.window.Value()
		out = append(out, Stat{Name: name, Total: total, Recent: recent, Kind: c.window.kind})
	}
	return out
}
