package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/andresmejia3/facepack/internal/types"
)

// Writer writes each frame's text line to an io.Writer (default os.Stdout).
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer sink. If w is nil, os.Stdout is used.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		w = os.Stdout
	}
	return &Writer{w: w}
}

func (s *Writer) Send(_ context.Context, frames []types.CompactedFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range frames {
		if _, err := s.w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Writer) Close() error { return nil }
