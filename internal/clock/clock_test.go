package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMillis(t *testing.T) {
	ts := time.Unix(1700000000, 500*int64(time.Microsecond))
	assert.InDelta(t, 1700000000000.5, Millis(ts), 1e-3)
}

func TestSystemIsCloseToNow(t *testing.T) {
	before := Millis(time.Now())
	got := System{}.Now()
	after := Millis(time.Now())

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestFunc(t *testing.T) {
	c := Func(func() float64 { return 42 })
	assert.Equal(t, 42.0, c.Now())
}
