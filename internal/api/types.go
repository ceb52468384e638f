package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/transcript"
)

// ChapterProgress is the remote progress record of one chapter.
type ChapterProgress struct {
	CurrentSegment int        `json:"currentSegment"`
	TotalSegments  int        `json:"totalSegments"`
	Completed      bool       `json:"completed"`
	LastUpdated    *Timestamp `json:"lastUpdated"`
}

// IsComplete reports whether the chapter counts as finished: flagged
// completed, or every segment reached.
func (p ChapterProgress) IsComplete() bool {
	return p.Completed || (p.TotalSegments > 0 && p.CurrentSegment >= p.TotalSegments)
}

// updatedMillis returns LastUpdated in ms, 0 when unset.
func (p ChapterProgress) updatedMillis() int64 {
	if p.LastUpdated == nil || p.LastUpdated.IsZero() {
		return 0
	}
	return p.LastUpdated.UnixMilli()
}

// Timestamp is a progress time as the service sends it: RFC 3339, epoch
// milliseconds, epoch seconds, or a string holding either number. Values
// that cannot be read decode to the zero time.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

// UnmarshalJSON never fails; an unreadable value leaves the zero time.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	t, ok := parseServerTime(bytes.TrimSpace(data))
	if !ok {
		t = time.Time{}
	}
	ts.Time = t
	return nil
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return ts.Time.MarshalJSON()
}

// ChapterMap holds chapter records keyed by 0-based chapter index. The
// server may send either an object keyed by index or a plain array.
type ChapterMap map[int]ChapterProgress

// UnmarshalJSON accepts {"0": {...}} and [{...}] forms.
func (m *ChapterMap) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	out := ChapterMap{}
	if len(data) > 0 && data[0] == '[' {
		var list []*ChapterProgress
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		for i, p := range list {
			if p != nil {
				out[i] = *p
			}
		}
		*m = out
		return nil
	}
	var obj map[string]ChapterProgress
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for k, p := range obj {
		i, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[i] = p
	}
	*m = out
	return nil
}

// ModuleProgress holds a module's chapter records.
type ModuleProgress struct {
	Chapters ChapterMap `json:"chapters"`
}

// TrainingProgress is the cross-chapter progress document exchanged with
// the service. Module keys are module numbers as strings.
type TrainingProgress struct {
	Modules          map[string]ModuleProgress `json:"modules"`
	CompleteTraining bool                      `json:"complete_training"`
	LastUpdated      *Timestamp                `json:"last_updated,omitempty"`
}

// Lookup returns the record for module m, 0-based chapter c.
func (tp TrainingProgress) Lookup(m, c int) (ChapterProgress, bool) {
	mod, ok := tp.Modules[strconv.Itoa(m)]
	if !ok {
		return ChapterProgress{}, false
	}
	p, ok := mod.Chapters[c]
	return p, ok
}

// progressEnvelope wraps TrainingProgress on the wire.
type progressEnvelope struct {
	TrainingProgress *TrainingProgress `json:"training_progress"`
}

// authResponse is the token exchange body.
type authResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    json.RawMessage `json:"expires_at,omitempty"`
}

// Chapter is one catalog entry: the content document and its progress.
type Chapter struct {
	Key      string
	Doc      *chapter.Doc
	Progress ChapterProgress
}

// Title returns the document title, or the key when untitled.
func (c *Chapter) Title() string {
	if c.Doc != nil && c.Doc.Title != "" {
		return c.Doc.Title
	}
	return c.Key
}

// AuthStatus summarizes the bearer session.
type AuthStatus struct {
	Authenticated bool
	ExpiresAt     time.Time
	// Remaining is zero or negative once expired.
	Remaining time.Duration
}

// String renders the status line shown to the learner.
func (s AuthStatus) String() string {
	switch {
	case !s.Authenticated:
		return "✗ Not Authenticated"
	case s.ExpiresAt.IsZero():
		return "✓ Authenticated"
	case s.Remaining > 0:
		return "✓ Authenticated (expires in " + strconv.Itoa(int(s.Remaining/time.Second)) + "s)"
	default:
		return "✗ Token Expired"
	}
}

// Overall is the time-weighted progress across the catalog.
type Overall struct {
	Percent           int
	CompletedSeconds  int
	TotalSeconds      int
	CompletedSegments int
	TotalSegments     int
}

// Label renders "m:ss / m:ss completed", or a segment count when no
// timings are known.
func (o Overall) Label() string {
	if o.TotalSeconds > 0 {
		return transcript.FormatClock(float64(o.CompletedSeconds)) + " / " + transcript.FormatClock(float64(o.TotalSeconds)) + " completed"
	}
	return strconv.Itoa(o.CompletedSegments) + "/" + strconv.Itoa(o.TotalSegments) + " segments completed"
}
