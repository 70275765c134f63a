// Package clock provides the wall-clock capability used to stamp records.
//
// Timestamps are milliseconds since the Unix epoch as float64, the same unit
// browsers and the detection pipeline use for frame capture times.
package clock

import "time"

// Clock returns the current time in epoch milliseconds. Implementations
// must be safe for concurrent use.
type Clock interface {
	Now() float64
}

// System reads the host clock.
type System struct{}

// Now returns time.Now in epoch milliseconds with sub-millisecond precision.
func (System) Now() float64 {
	return Millis(time.Now())
}

// Func adapts a plain function to Clock.
type Func func() float64

// Now calls f.
func (f Func) Now() float64 {
	return f()
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}
