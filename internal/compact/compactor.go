// Package compact turns per-frame face tracking results into small,
// quantized records for streaming and logging.
//
// A call either yields a record, yields nothing (the frame has no usable
// data yet), or fails because its inputs could not be decoded or its
// output could not be rendered. Compactors hold no per-call state and are
// safe for concurrent use.
package compact

import (
	"encoding/json"
	"log/slog"

	"github.com/andresmejia3/facepack/internal/clock"
	"github.com/andresmejia3/facepack/internal/quantize"
	"github.com/andresmejia3/facepack/internal/types"
	"github.com/andresmejia3/facepack/internal/vocab"
)

// DecodeFunc decodes a structured input into v.
type DecodeFunc func(data []byte, v any) error

// Compactor compacts detection results. The zero value is not usable; build
// one with New.
type Compactor struct {
	clock  clock.Clock
	vocab  vocab.Vocabulary
	quant  quantize.Quantizer
	decode DecodeFunc
	logger *slog.Logger
}

// Option configures a Compactor.
type Option func(*Compactor)

// WithClock sets the clock used to compute latency. Default: clock.System.
func WithClock(c clock.Clock) Option {
	return func(cp *Compactor) { cp.clock = c }
}

// WithVocabulary sets the category name lookup. Default: none, so category
// ids are the detector indices.
func WithVocabulary(v vocab.Vocabulary) Option {
	return func(cp *Compactor) { cp.vocab = v }
}

// WithQuantizer overrides the fixed-point scale. Default: quantize.Default.
func WithQuantizer(q quantize.Quantizer) Option {
	return func(cp *Compactor) { cp.quant = q }
}

// WithDecoder sets the decoder CompactRaw uses for its inputs.
// Default: json.Unmarshal.
func WithDecoder(fn DecodeFunc) Option {
	return func(cp *Compactor) { cp.decode = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(cp *Compactor) { cp.logger = l }
}

// New creates a Compactor.
func New(opts ...Option) *Compactor {
	c := &Compactor{
		clock:  clock.System{},
		quant:  quantize.Default,
		decode: json.Unmarshal,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Compact builds the record for one frame. It returns false when the
// availability policy finds nothing to send.
func (c *Compactor) Compact(sel Selection, dp types.DetectionResult, captureTS float64) (*Record, bool) {
	plan, reason := Select(sel, dp)
	if reason != ReasonNone {
		c.logger.Debug("compact: nothing to send", "reason", string(reason), "t", captureTS)
		return nil, false
	}

	rec := &Record{T: captureTS}
	if plan.Matrices {
		rec.Matrices = passMatrices(dp.FacialTransformationMatrixes)
	}
	if plan.Landmarks {
		rec.Landmarks = compactLandmarks(c.quant, dp.FaceLandmarks, sel.StripZCoordinates, sel.IncludeLandmarks)
	}
	if plan.Blendshapes {
		rec.Blendshapes = compactBlendshapes(c.quant, c.vocab, dp.FaceBlendshapes, sel.IncludeBlendshapes)
	}

	rec.DT = c.clock.Now() - captureTS
	return rec, true
}

// Output is the rendered result of CompactRaw.
type Output struct {
	Record *Record        // nil when there was nothing to send
	Text   []byte         // set when text was requested
	Native map[string]any // set otherwise
}

// NoData reports whether the frame produced no record.
func (o Output) NoData() bool {
	return o.Record == nil
}

// CompactRaw decodes config and datapoint, compacts, and renders the record
// as text or as a native value. Decode failures return *DecodeError and text
// rendering failures *EncodeError; a frame with nothing to send returns an
// Output whose NoData is true and a nil error.
func (c *Compactor) CompactRaw(config, datapoint []byte, captureTS float64, asText bool) (Output, error) {
	var sel Selection
	if err := c.decode(config, &sel); err != nil {
		return Output{}, &DecodeError{Input: "config", Err: err}
	}
	return c.CompactSelected(sel, datapoint, captureTS, asText)
}

// CompactSelected is CompactRaw for an already decoded selection. Stream
// engines use it to decode the selection once per stream.
func (c *Compactor) CompactSelected(sel Selection, datapoint []byte, captureTS float64, asText bool) (Output, error) {
	var dp types.DetectionResult
	if err := c.decode(datapoint, &dp); err != nil {
		return Output{}, &DecodeError{Input: "datapoint", Err: err}
	}

	rec, ok := c.Compact(sel, dp, captureTS)
	if !ok {
		return Output{}, nil
	}
	return Render(rec, asText)
}

// Render produces the requested form of rec.
func Render(rec *Record, asText bool) (Output, error) {
	out := Output{Record: rec}
	if !asText {
		out.Native = rec.Native()
		return out, nil
	}

	line, err := rec.EncodeLine()
	if err != nil {
		return Output{}, err
	}
	out.Text = line
	return out, nil
}
