package sink

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/andresmejia3/facepack/internal/types"
)

// MaxFrame bounds the payload length ReadFrame accepts.
const MaxFrame = 16 << 20

// WriteFrame writes one record as [uint32 big-endian length][payload].
func WriteFrame(w io.Writer, payload []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed record. It returns io.EOF only when
// the stream ends cleanly between records.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("framed: truncated header: %w", err)
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(header)
	if n > MaxFrame {
		return nil, fmt.Errorf("framed: record of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("framed: truncated record: %w", err)
	}
	return body, nil
}

// Framed writes length-prefixed records for consumers that read from a
// pipe without line splitting. The trailing newline of each text record is
// kept out of the frame.
type Framed struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewFramed creates a Framed sink. Close closes w.
func NewFramed(w io.WriteCloser) *Framed {
	return &Framed{w: w}
}

func (s *Framed) Send(_ context.Context, frames []types.CompactedFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range frames {
		payload := f.Payload
		if n := len(payload); n > 0 && payload[n-1] == '\n' {
			payload = payload[:n-1]
		}
		if err := WriteFrame(s.w, payload); err != nil {
			return fmt.Errorf("framed: write seq %d: %w", f.Seq, err)
		}
	}
	return nil
}

func (s *Framed) Close() error {
	return s.w.Close()
}
