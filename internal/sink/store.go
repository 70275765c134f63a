package sink

import (
	"context"

	"github.com/andresmejia3/facepack/internal/types"
)

// FrameWriter persists frames for a capture session. *store.Store
// implements it.
type FrameWriter interface {
	InsertFrames(ctx context.Context, session string, frames []types.CompactedFrame) error
}

// Store writes batches to a session store. Closing the sink leaves the
// store open; its owner closes it.
type Store struct {
	db      FrameWriter
	session string
}

// NewStore creates a Store sink for one session.
func NewStore(db FrameWriter, session string) *Store {
	return &Store{db: db, session: session}
}

func (s *Store) Send(ctx context.Context, frames []types.CompactedFrame) error {
	if len(frames) == 0 {
		return nil
	}
	return s.db.InsertFrames(ctx, s.session, frames)
}

func (s *Store) Close() error { return nil }
