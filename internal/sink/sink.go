// Package sink defines output backends for compacted frames.
package sink

import (
	"context"
	"errors"

	"github.com/andresmejia3/facepack/internal/types"
)

// Sink is the output interface. Implementations deliver batches of
// compacted frames to different backends (writer, webhook, Postgres,
// local spool).
type Sink interface {
	Send(ctx context.Context, frames []types.CompactedFrame) error
	Close() error
}

// Func delivers batches via a Go function call.
type Func func(ctx context.Context, frames []types.CompactedFrame) error

func (f Func) Send(ctx context.Context, frames []types.CompactedFrame) error {
	return f(ctx, frames)
}

func (f Func) Close() error { return nil }

// Discard drops every batch.
var Discard Sink = Func(func(context.Context, []types.CompactedFrame) error { return nil })

// ErrClosed is returned when frames are added to a closed Batcher.
var ErrClosed = errors.New("sink: closed")
