package sink

import (
	"context"
	"log/slog"

	"github.com/andresmejia3/facepack/internal/types"
)

// Router fans out batches to all configured sinks. One sink error does not
// block the others: errors are logged and the first encountered is
// returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, frames []types.CompactedFrame) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, frames); err != nil {
			r.logger.Warn("sink: send batch failed", "frames", len(frames), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
