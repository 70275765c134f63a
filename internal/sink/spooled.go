package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/andresmejia3/facepack/internal/types"
)

// Spool keeps batches that could not be delivered. *spool.Spool
// implements it.
type Spool interface {
	Put(ctx context.Context, session, seriesType string, frames []types.CompactedFrame) (int64, error)
}

// Spooled delivers to next and parks failed batches in a spool for a later
// `spool flush`. A batch that reaches the spool counts as handled.
type Spooled struct {
	next       Sink
	spool      Spool
	session    string
	seriesType string
	logger     *slog.Logger
}

// NewSpooled wraps next. A nil logger means slog.Default().
func NewSpooled(next Sink, sp Spool, session, seriesType string, logger *slog.Logger) *Spooled {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spooled{next: next, spool: sp, session: session, seriesType: seriesType, logger: logger}
}

func (s *Spooled) Send(ctx context.Context, frames []types.CompactedFrame) error {
	err := s.next.Send(ctx, frames)
	if err == nil {
		return nil
	}

	// The spool write must survive a cancelled stream.
	id, spoolErr := s.spool.Put(context.WithoutCancel(ctx), s.session, s.seriesType, frames)
	if spoolErr != nil {
		return errors.Join(err, spoolErr)
	}
	s.logger.Warn("sink: batch spooled", "batch", id, "frames", len(frames), "error", err)
	return nil
}

func (s *Spooled) Close() error {
	return s.next.Close()
}
