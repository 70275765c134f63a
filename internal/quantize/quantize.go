// Package quantize converts normalized measurements to fixed-point integers
// and back. Encoding is lossy: a round trip is off by at most 0.5/Scale.
package quantize

import "math"

// Scale keeps five decimal places, which is below the jitter of the
// landmark model and saves most of the bytes of a float on the wire.
const Scale = 100000

// Default is the quantizer used by the package-level helpers.
var Default = Quantizer{Scale: Scale}

// Quantizer is a fixed-point codec for a single scale factor.
// A Scale of zero or less disables scaling: values are only truncated.
type Quantizer struct {
	Scale float64
}

// Quantize multiplies by the scale and rounds half away from zero. The
// result is narrowed to int32 without overflow checks; inputs are expected
// to stay within a few units of the origin.
func (q Quantizer) Quantize(value float64) int32 {
	if q.Scale > 0 {
		return int32(math.Round(value * q.Scale))
	}
	return int32(value)
}

// Dequantize reverses Quantize.
func (q Quantizer) Dequantize(value int32) float64 {
	if q.Scale > 0 {
		return float64(value) / q.Scale
	}
	return float64(value)
}

// MaxError is the largest absolute difference a round trip can introduce.
func (q Quantizer) MaxError() float64 {
	if q.Scale > 0 {
		return 0.5 / q.Scale
	}
	return 1
}

// Quantize encodes value with the default scale.
func Quantize(value float64) int32 {
	return Default.Quantize(value)
}

// Dequantize decodes value with the default scale.
func Dequantize(value int32) float64 {
	return Default.Dequantize(value)
}
