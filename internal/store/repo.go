package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	ChapterKey string    // only this chapter ("" = all)
	Limit      int       // max results (0 = unlimited)
	After      int64     // sequence > After
	Before     int64     // sequence < Before
	From       time.Time // timestamp >= From
	To         time.Time // timestamp <= To
}

// KV is a flat string key/value namespace, the local stand-in for
// browser storage.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or replaces key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key in lexical order.
	Keys(ctx context.Context) ([]string, error)
}

// Segment event actions.
const (
	ActionOpened     = "opened"
	ActionCompleted  = "completed"
	ActionSynced     = "synced"
	ActionSyncFailed = "sync_failed"
	ActionClosed     = "closed"
)

// SegmentEvent records one step of a viewing session.
type SegmentEvent struct {
	Sequence   int64
	Timestamp  time.Time
	SessionID  string
	ChapterKey string
	HotspotID  string
	Action     string
	Detail     string
}

// EventRepo provides append and query access to segment events.
type EventRepo interface {
	// AppendSegment records a segment event with the next global sequence.
	AppendSegment(ctx context.Context, ev SegmentEvent) error

	// QuerySegments returns events in sequence order.
	QuerySegments(ctx context.Context, opts QueryOpts) ([]SegmentEvent, error)

	// Clear deletes every segment event.
	Clear(ctx context.Context) error
}

// SnapshotData captures the last known remote progress document.
type SnapshotData struct {
	Version  int             `json:"version"`
	Source   string          `json:"source"`
	Progress json.RawMessage `json:"progress"`
}

// Snapshot represents a point-in-time capture of learner progress.
type Snapshot struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	Data      SnapshotData
}

// SnapshotRepo manages progress snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot, or nil if none exist.
	Latest(ctx context.Context) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots.
	Prune(ctx context.Context, keep int) error
}

// LearnerRepo stores one training_progress document per learner for the
// development progress server.
type LearnerRepo interface {
	// Load returns the learner's document, or nil when none is stored.
	Load(ctx context.Context, learnerID string) (json.RawMessage, time.Time, error)

	// Save replaces the learner's document.
	Save(ctx context.Context, learnerID string, doc json.RawMessage, at time.Time) error
}
