package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/andresmejia3/facepack/internal/compact"
	"github.com/andresmejia3/facepack/internal/types"
)

// Status is the outcome of one frame.
type Status int

const (
	StatusCompacted Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompacted:
		return "compacted"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is what an engine produced for one frame.
type Result struct {
	Index      int
	Timestamp  float64
	Output     compact.Output
	Err        error
	InputBytes int
}

// Status classifies the result.
func (r Result) Status() Status {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.Output.NoData():
		return StatusSkipped
	default:
		return StatusCompacted
	}
}

// Frame converts a compacted result into the form sinks consume.
func (r Result) Frame() types.CompactedFrame {
	rec := r.Output.Record
	return types.CompactedFrame{Seq: r.Index, T: rec.T, DT: rec.DT, Payload: r.Output.Text}
}

// Engine compacts frames with a fixed selection.
type Engine struct {
	ID        int
	compactor *compact.Compactor
	sel       compact.Selection
}

// NewEngine creates an engine. Engines share the compactor.
func NewEngine(id int, c *compact.Compactor, sel compact.Selection) *Engine {
	return &Engine{ID: id, compactor: c, sel: sel}
}

// Process decodes one input line and compacts its datapoint.
func (e *Engine) Process(task types.FrameTask) Result {
	res := Result{Index: task.Index, InputBytes: len(task.Data)}

	var in types.FrameInput
	if err := json.Unmarshal(task.Data, &in); err != nil {
		res.Err = &compact.DecodeError{Input: "frame", Err: err}
		return res
	}
	res.Timestamp = in.Timestamp

	res.Output, res.Err = e.compactor.CompactSelected(e.sel, in.DataPoint, in.Timestamp, true)
	return res
}

// run reads tasks until the channel closes or ctx is cancelled.
func (e *Engine) run(ctx context.Context, tasks <-chan types.FrameTask, results chan<- Result, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task, ok := <-tasks:
			if !ok {
				return nil
			}

			res := e.Process(task)
			// The result no longer references the line.
			releaseBuffer(task.Data)

			if res.Err != nil {
				logger.Warn("worker: frame failed", "engine", e.ID, "index", res.Index, "error", res.Err)
			}

			select {
			case results <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
