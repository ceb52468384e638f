package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// learnerRepo implements LearnerRepo with raw SQL.
type learnerRepo struct {
	db *sql.DB
}

func (r *learnerRepo) Load(ctx context.Context, learnerID string) (json.RawMessage, time.Time, error) {
	var (
		doc string
		ms  int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT document, updated_ms FROM learner_progress WHERE learner_id = ?`, learnerID,
	).Scan(&doc, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load progress for %s: %w", learnerID, err)
	}
	return json.RawMessage(doc), time.UnixMilli(ms), nil
}

func (r *learnerRepo) Save(ctx context.Context, learnerID string, doc json.RawMessage, at time.Time) error {
	if !json.Valid(doc) {
		return fmt.Errorf("save progress for %s: document is not valid JSON", learnerID)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO learner_progress (learner_id, document, updated_ms) VALUES (?, ?, ?)
		 ON CONFLICT(learner_id) DO UPDATE SET document = excluded.document, updated_ms = excluded.updated_ms`,
		learnerID, string(doc), at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save progress for %s: %w", learnerID, err)
	}
	return nil
}
