// Package progress persists learner progress on the local machine: the
// per-chapter completion sets used when no remote session exists, and the
// bearer tokens of the remote session.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/abhisek/ggtrain/internal/store"
)

const (
	// SchemaVersion invalidates every stored completion set when bumped.
	SchemaVersion = 4

	versionKey = "training_schema"
	doneSuffix = "_done"
)

// DoneKey returns the storage key of a chapter's completion set.
func DoneKey(chapterID string) string {
	if chapterID == "" {
		chapterID = "default"
	}
	return chapterID + doneSuffix
}

// Local stores completion sets in a key/value namespace.
type Local struct {
	kv store.KV
}

// NewLocal creates a Local over kv.
func NewLocal(kv store.KV) *Local {
	return &Local{kv: kv}
}

// EnsureSchema wipes every completion set when the stored schema version
// differs from SchemaVersion. It reports whether a wipe happened.
func (l *Local) EnsureSchema(ctx context.Context) (bool, error) {
	v, ok, err := l.kv.Get(ctx, versionKey)
	if err != nil {
		return false, err
	}
	if ok && v == strconv.Itoa(SchemaVersion) {
		return false, nil
	}
	if _, err := l.Clear(ctx); err != nil {
		return false, err
	}
	if err := l.kv.Set(ctx, versionKey, strconv.Itoa(SchemaVersion)); err != nil {
		return false, err
	}
	return true, nil
}

// Load returns the chapter's completed hotspot IDs in stored order. A
// missing or unreadable entry is an empty set.
func (l *Local) Load(ctx context.Context, chapterID string) ([]string, error) {
	raw, ok, err := l.kv.Get(ctx, DoneKey(chapterID))
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}

// Save replaces the chapter's completion set.
func (l *Local) Save(ctx context.Context, chapterID string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal completion set: %w", err)
	}
	return l.kv.Set(ctx, DoneKey(chapterID), string(data))
}

// Clear deletes every completion set and returns how many were removed.
func (l *Local) Clear(ctx context.Context) (int, error) {
	keys, err := l.kv.Keys(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if !strings.HasSuffix(k, doneSuffix) {
			continue
		}
		if err := l.kv.Delete(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Chapters lists the chapter IDs that have a stored completion set.
func (l *Local) Chapters(ctx context.Context) ([]string, error) {
	keys, err := l.kv.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		if id, ok := strings.CutSuffix(k, doneSuffix); ok {
			out = append(out, id)
		}
	}
	return out, nil
}
