package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/facepack/internal/types"
)

// ErrSessionNotFound is returned when a session id matches no row.
var ErrSessionNotFound = errors.New("session not found")

// Store manages the PostgreSQL connection for capture sessions and their
// compacted frames. It holds a single connection and is not safe for
// concurrent use.
type Store struct {
	conn *pgx.Conn
}

// Session is one row of capture_sessions with its frame count.
type Session struct {
	ID         string
	SeriesType string
	Label      string
	CreatedAt  time.Time
	Frames     int
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the session and frame tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS capture_sessions (
			id TEXT PRIMARY KEY,
			series_type TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS compacted_frames (
			session_id TEXT NOT NULL REFERENCES capture_sessions(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			captured_at DOUBLE PRECISION NOT NULL,
			latency_ms DOUBLE PRECISION NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
		CREATE INDEX IF NOT EXISTS compacted_frames_captured_at_idx ON compacted_frames (session_id, captured_at);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureSession registers a capture session and returns the seq the next
// frame should take. Re-running a session keeps its frames, so a resumed
// stream numbers its frames from the returned value and appends.
func (s *Store) EnsureSession(ctx context.Context, id, seriesType string) (int, error) {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO capture_sessions (id, series_type)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET series_type = EXCLUDED.series_type
	`, id, seriesType)
	if err != nil {
		return 0, err
	}

	var next int
	err = s.conn.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq) + 1, 0) FROM compacted_frames WHERE session_id = $1
	`, id).Scan(&next)
	return next, err
}

// InsertFrames writes frames in one round trip. A frame whose seq already
// exists for the session replaces the stored one.
func (s *Store) InsertFrames(ctx context.Context, session string, frames []types.CompactedFrame) error {
	if len(frames) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range frames {
		batch.Queue(`
			INSERT INTO compacted_frames (session_id, seq, captured_at, latency_ms, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (session_id, seq) DO UPDATE
			SET captured_at = EXCLUDED.captured_at, latency_ms = EXCLUDED.latency_ms, payload = EXCLUDED.payload
		`, session, f.Seq, f.T, f.DT, string(bytes.TrimRight(f.Payload, "\n")))
	}
	return s.conn.SendBatch(ctx, batch).Close()
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT s.id, s.series_type, s.label, s.created_at, COUNT(f.seq)
		FROM capture_sessions s
		LEFT JOIN compacted_frames f ON f.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC, s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.SeriesType, &sess.Label, &sess.CreatedAt, &sess.Frames); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// LabelSession attaches a human readable label to a session.
func (s *Store) LabelSession(ctx context.Context, id, label string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE capture_sessions SET label = $1 WHERE id = $2", label, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// SessionFrames returns a session's frames in seq order. Payloads carry
// their trailing newline again.
func (s *Store) SessionFrames(ctx context.Context, id string) ([]types.CompactedFrame, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM capture_sessions WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT seq, captured_at, latency_ms, payload
		FROM compacted_frames
		WHERE session_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []types.CompactedFrame
	for rows.Next() {
		var f types.CompactedFrame
		var payload string
		if err := rows.Scan(&f.Seq, &f.T, &f.DT, &payload); err != nil {
			return nil, err
		}
		f.Payload = append([]byte(payload), '\n')
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS compacted_frames CASCADE;
		DROP TABLE IF EXISTS capture_sessions CASCADE;
	`)
	return err
}
