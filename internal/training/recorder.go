package training

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/store"
)

// Recorder appends a session's segment events to the local event log.
// Subscribe its Observe method to a Session.
type Recorder struct {
	repo       store.EventRepo
	sessionID  string
	chapterKey string
	log        *zap.Logger
	now        func() time.Time
}

// NewRecorder creates a Recorder with a fresh viewing-session id.
func NewRecorder(repo store.EventRepo, chapterKey string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		repo:       repo,
		sessionID:  uuid.NewString(),
		chapterKey: chapterKey,
		log:        log,
		now:        time.Now,
	}
}

// SessionID identifies the viewing session in the log.
func (r *Recorder) SessionID() string { return r.sessionID }

// Observe records the events that mark segment progress.
func (r *Recorder) Observe(ev Event) {
	var hotspot, action, detail string
	switch e := ev.(type) {
	case ViewerOpened:
		hotspot, action = e.HotspotID, store.ActionOpened
	case SegmentFinished:
		hotspot, action = e.HotspotID, store.ActionCompleted
	case SegmentConfirmed:
		hotspot, action, detail = e.HotspotID, store.ActionSynced, "local"
		if e.Remote {
			detail = "remote"
		}
	case SyncFailed:
		hotspot, action = e.HotspotID, store.ActionSyncFailed
		if e.Err != nil {
			detail = e.Err.Error()
		}
	case ViewerClosed:
		hotspot, action = e.HotspotID, store.ActionClosed
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	err := r.repo.AppendSegment(ctx, store.SegmentEvent{
		Timestamp:  r.now(),
		SessionID:  r.sessionID,
		ChapterKey: r.chapterKey,
		HotspotID:  hotspot,
		Action:     action,
		Detail:     detail,
	})
	if err != nil {
		r.log.Warn("record segment event failed", zap.String("action", action), zap.Error(err))
	}
}
