package training

import (
	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/transcript"
)

// Event is a session state change delivered to subscribers.
type Event interface {
	event()
}

// StatesChanged carries the states of every hotspot in linear order.
type StatesChanged struct {
	States []State
}

// ViewerOpened is sent when the viewer starts opening for a hotspot.
type ViewerOpened struct {
	HotspotID string
	Index     int
	Title     string
	Body      string
	Media     chapter.MediaMode
	SizeClass string
	Start     float64
	End       float64
}

type ViewerClosed struct {
	HotspotID string
}

// PlaybackChanged reports the viewer's status line.
type PlaybackChanged struct {
	HotspotID string
	Status    Status
}

// CaptionsChanged carries the visible captions, oldest first.
type CaptionsChanged struct {
	Captions []transcript.Caption
}

// SegmentFinished is sent when playback reaches the end of the window.
type SegmentFinished struct {
	HotspotID string
	Index     int
}

// ReportRequested asks the owner to post progress and answer with
// Session.ReportResult.
type ReportRequested struct {
	HotspotID    string
	NextSegment  int
	AllCompleted bool
}

// SegmentConfirmed is sent once a completion is committed.
type SegmentConfirmed struct {
	HotspotID string
	Index     int
	Remote    bool
}

// SyncFailed blocks the session until a retry succeeds.
type SyncFailed struct {
	HotspotID string
	Err       error
}

type SyncRecovered struct {
	HotspotID string
}

// ChapterComplete is the stay-or-continue decision point.
type ChapterComplete struct {
	Final        bool
	CurrentTitle string
	NextTitle    string
}

// ContinueRequested asks the owner to move to the next chapter.
type ContinueRequested struct{}

func (StatesChanged) event()     {}
func (ViewerOpened) event()      {}
func (ViewerClosed) event()      {}
func (PlaybackChanged) event()   {}
func (CaptionsChanged) event()   {}
func (SegmentFinished) event()   {}
func (ReportRequested) event()   {}
func (SegmentConfirmed) event()  {}
func (SyncFailed) event()        {}
func (SyncRecovered) event()     {}
func (ChapterComplete) event()   {}
func (ContinueRequested) event() {}
