// Package spool parks undeliverable frame batches in a local SQLite file
// until they can be resent.
package spool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/andresmejia3/facepack/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_batches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session     TEXT NOT NULL,
	series_type TEXT NOT NULL,
	frames      TEXT NOT NULL,
	frame_count INTEGER NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
`

// Batch is one spooled delivery.
type Batch struct {
	ID         int64
	Session    string
	SeriesType string
	Frames     []types.CompactedFrame
	Attempts   int
	CreatedAt  time.Time
}

type frameRow struct {
	Seq     int     `json:"seq"`
	T       float64 `json:"t"`
	DT      float64 `json:"dt"`
	Payload string  `json:"payload"`
}

// Spool is a SQLite backed queue of batches. Safe for concurrent use.
type Spool struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the spool file at path.
func Open(path string) (*Spool, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("spool schema: %w", err)
	}
	return &Spool{db: db, now: time.Now}, nil
}

// Put stores a batch and returns its id.
func (s *Spool) Put(ctx context.Context, session, seriesType string, frames []types.CompactedFrame) (int64, error) {
	rows := make([]frameRow, len(frames))
	for i, f := range frames {
		rows[i] = frameRow{Seq: f.Seq, T: f.T, DT: f.DT, Payload: string(f.Payload)}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return 0, fmt.Errorf("spool: marshal: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_batches (session, series_type, frames, frame_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, session, seriesType, string(data), len(frames), s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("spool: put: %w", err)
	}
	return res.LastInsertId()
}

// Pending returns up to limit batches, oldest first. A limit of zero or
// less returns all of them.
func (s *Spool) Pending(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, series_type, frames, attempts, created_at
		FROM pending_batches
		ORDER BY id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		var framesJSON string
		var created int64
		if err := rows.Scan(&b.ID, &b.Session, &b.SeriesType, &framesJSON, &b.Attempts, &created); err != nil {
			return nil, err
		}

		var fr []frameRow
		if err := json.Unmarshal([]byte(framesJSON), &fr); err != nil {
			return nil, fmt.Errorf("spool: batch %d: %w", b.ID, err)
		}
		b.Frames = make([]types.CompactedFrame, len(fr))
		for i, f := range fr {
			b.Frames[i] = types.CompactedFrame{Seq: f.Seq, T: f.T, DT: f.DT, Payload: []byte(f.Payload)}
		}
		b.CreatedAt = time.UnixMilli(created)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Delete removes a delivered batch.
func (s *Spool) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_batches WHERE id = ?", id)
	return err
}

// MarkFailed records another failed delivery attempt.
func (s *Spool) MarkFailed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE pending_batches SET attempts = attempts + 1 WHERE id = ?", id)
	return err
}

// Count reports the spooled batches and the frames they hold.
func (s *Spool) Count(ctx context.Context) (batches, frames int, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(frame_count), 0) FROM pending_batches").Scan(&batches, &frames)
	return batches, frames, err
}

// Close closes the database.
func (s *Spool) Close() error {
	return s.db.Close()
}
