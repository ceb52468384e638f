package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// sequenceCounter manages the global monotonic sequence number assigned to
// every appended event and snapshot, so a snapshot can be related to the
// events recorded before it.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// eventRepo implements EventRepo with raw SQL.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *eventRepo) AppendSegment(ctx context.Context, ev SegmentEvent) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO segment_events (sequence, timestamp_ms, session_id, chapter_key, hotspot_id, action, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seqNum, ts.UnixMilli(), ev.SessionID, ev.ChapterKey, ev.HotspotID, ev.Action, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("save segment event: %w", err)
	}
	return nil
}

func (r *eventRepo) QuerySegments(ctx context.Context, opts QueryOpts) ([]SegmentEvent, error) {
	var where []string
	var args []any
	if opts.ChapterKey != "" {
		where = append(where, "chapter_key = ?")
		args = append(args, opts.ChapterKey)
	}
	if opts.After > 0 {
		where = append(where, "sequence > ?")
		args = append(args, opts.After)
	}
	if opts.Before > 0 {
		where = append(where, "sequence < ?")
		args = append(args, opts.Before)
	}
	if !opts.From.IsZero() {
		where = append(where, "timestamp_ms >= ?")
		args = append(args, opts.From.UnixMilli())
	}
	if !opts.To.IsZero() {
		where = append(where, "timestamp_ms <= ?")
		args = append(args, opts.To.UnixMilli())
	}

	q := `SELECT sequence, timestamp_ms, session_id, chapter_key, hotspot_id, action, detail FROM segment_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY sequence"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query segment events: %w", err)
	}
	defer rows.Close()

	var out []SegmentEvent
	for rows.Next() {
		var ev SegmentEvent
		var ms int64
		if err := rows.Scan(&ev.Sequence, &ms, &ev.SessionID, &ev.ChapterKey, &ev.HotspotID, &ev.Action, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan segment event: %w", err)
		}
		ev.Timestamp = time.UnixMilli(ms)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *eventRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM segment_events`); err != nil {
		return fmt.Errorf("clear segment events: %w", err)
	}
	return nil
}
