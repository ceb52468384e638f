package training

import (
	"time"

	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/media"
	"github.com/abhisek/ggtrain/internal/transcript"
)

// ViewerState is a snapshot of the viewer for rendering.
type ViewerState struct {
	Open      bool
	Opening   bool
	HotspotID string
	Index     int
	Title     string
	Body      string
	SizeClass string
	Status    Status
	Start     float64
	End       float64
	Elapsed   float64
	Total     float64
	// HasTranscript is true when the chapter has captions; the body is
	// shown only when it has none.
	HasTranscript bool
	Captions      []transcript.Caption
	Deck          media.DeckState
	Examples      []string
}

func (s *Session) ChapterKey() string { return s.key }

func (s *Session) Doc() *chapter.Doc { return s.doc }

// Clock is the virtual time consumed by Advance.
func (s *Session) Clock() time.Duration { return s.clock }

// States returns a copy of the hotspot states in linear order.
func (s *Session) States() []State {
	return append([]State(nil), s.states...)
}

// StateOf returns the state of a hotspot id.
func (s *Session) StateOf(id string) (State, bool) {
	i := s.doc.Index(id)
	if i < 0 {
		return Locked, false
	}
	return s.states[i], true
}

// DoneIDs returns the set of completed hotspot ids of this chapter.
func (s *Session) DoneIDs() map[string]bool {
	out := make(map[string]bool, len(s.done))
	for _, id := range s.order {
		if s.done[id] {
			out[id] = true
		}
	}
	return out
}

// DoneCount counts completed hotspots of this chapter.
func (s *Session) DoneCount() int {
	n := 0
	for _, id := range s.order {
		if s.done[id] {
			n++
		}
	}
	return n
}

// Current returns the id of the hotspot in the viewer.
func (s *Session) Current() (string, bool) {
	id := s.currentID()
	return id, id != "" && s.phase != phaseClosed
}

// Viewer describes the open viewer; Open is false when it is closed.
func (s *Session) Viewer() ViewerState {
	if s.phase == phaseClosed || s.cur < 0 {
		return ViewerState{Index: -1}
	}
	h := s.doc.Hotspots[s.cur]
	title, body := chapter.TitleAndBody(h.Narration())
	now := min(max(s.player.CurrentTime(), s.start), s.end)
	v := ViewerState{
		Open:          true,
		Opening:       s.phase == phaseOpening,
		HotspotID:     s.order[s.cur],
		Index:         s.cur,
		Title:         title,
		Body:          body,
		SizeClass:     h.SizeClass(),
		Status:        s.status,
		Start:         s.start,
		End:           s.end,
		Elapsed:       now - s.start,
		Total:         max(0.01, s.end-s.start),
		HasTranscript: len(s.captions) > 0,
		Captions:      s.shown,
		Examples:      s.Examples(),
	}
	if s.deck != nil {
		v.Deck = s.deck.State()
	}
	return v
}

// SyncPending reports whether a completion awaits confirmation.
func (s *Session) SyncPending() bool { return s.pending != nil }

// SyncInFlight reports whether a progress report is running.
func (s *Session) SyncInFlight() bool { return s.inFlight }

// SyncDialog reports whether the sync failure dialog is showing.
func (s *Session) SyncDialog() bool { return s.dialog }

// PendingReport returns the report awaiting confirmation.
func (s *Session) PendingReport() (ReportRequested, bool) {
	if s.pending == nil {
		return ReportRequested{}, false
	}
	return *s.pending, true
}

// Decision returns the open chapter decision point.
func (s *Session) Decision() (ChapterComplete, bool) {
	if s.decision == nil {
		return ChapterComplete{}, false
	}
	return *s.decision, true
}

// Examples returns the resolved real-life example images of the open
// hotspot.
func (s *Session) Examples() []string {
	if s.phase == phaseClosed || s.cur < 0 {
		return nil
	}
	src := s.doc.Hotspots[s.cur].RealLifeExamples
	if len(src) == 0 {
		return nil
	}
	out := make([]string, len(src))
	for i, p := range src {
		out[i] = s.resolve(p)
	}
	return out
}

// ShowExamples opens the example popup at the first image.
func (s *Session) ShowExamples() bool {
	if len(s.Examples()) == 0 {
		return false
	}
	s.examplesOpen, s.exampleIdx = true, 0
	return true
}

func (s *Session) HideExamples() { s.examplesOpen = false }

// ExampleShown returns the popup's current image and position.
func (s *Session) ExampleShown() (src string, index, count int, ok bool) {
	ex := s.Examples()
	if !s.examplesOpen || len(ex) == 0 {
		return "", 0, 0, false
	}
	return ex[s.exampleIdx], s.exampleIdx, len(ex), true
}

// NextExample and PrevExample wrap around.
func (s *Session) NextExample() { s.stepExample(1) }

func (s *Session) PrevExample() { s.stepExample(-1) }

func (s *Session) stepExample(d int) {
	n := len(s.Examples())
	if !s.examplesOpen || n == 0 {
		return
	}
	s.exampleIdx = ((s.exampleIdx+d)%n + n) % n
}
