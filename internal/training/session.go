package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/config"
	"github.com/abhisek/ggtrain/internal/media"
	"github.com/abhisek/ggtrain/internal/progress"
	"github.com/abhisek/ggtrain/internal/transcript"
)

var (
	ErrLocked         = errors.New("hotspot is locked")
	ErrSyncPending    = errors.New("progress sync pending")
	ErrUnknownHotspot = errors.New("unknown hotspot")
)

// completionTolerance is how close to the window end, in seconds, playback
// counts as finished.
const completionTolerance = 0.02

// defaultClip is the assumed video length when none is known.
const defaultClip = 8 * time.Second

// storeTimeout bounds local completion-set writes made from event handlers.
const storeTimeout = 2 * time.Second

// Status is the viewer's playback status line.
type Status int

const (
	StatusReady Status = iota
	StatusPlaying
	StatusPaused
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	case StatusFinished:
		return "Finished"
	default:
		return "Ready"
	}
}

// Reporter posts segment progress. *api.Service satisfies it.
type Reporter interface {
	PostSegmentProgress(ctx context.Context, next int, completed bool) error
}

// ChapterInfo names the chapters around the decision point.
type ChapterInfo struct {
	Title     string
	NextTitle string
	// Final is true for the last chapter of the curriculum, or when every
	// chapter is complete.
	Final bool
}

// Options configures a Session.
type Options struct {
	ChapterKey string
	Doc        *chapter.Doc
	Captions   []transcript.Caption
	// StartingSegment marks the first N hotspots done, as reported by the
	// progress service.
	StartingSegment int
	// Reporter is nil when no remote session exists; completion sets are
	// then kept in Local.
	Reporter Reporter
	Local    *progress.Local
	Player   media.Player
	Delays   config.TransitionConfig
	Rate     float64
	FPS      int
	// ClipLength returns the length of a resolved video source.
	ClipLength  func(src string) time.Duration
	Resolve     func(path string) string
	ChapterInfo func() ChapterInfo
	Logger      *zap.Logger
}

type phase int

const (
	phaseClosed phase = iota
	phaseOpening
	phaseActive
	phaseFinished
)

// anyGen marks a timer that survives the viewer being closed.
const anyGen = -1

type timer struct {
	at  time.Duration
	gen int
	fn  func()
}

// Session is the state machine of one chapter. It is not safe for
// concurrent use; drive it from a single event loop.
type Session struct {
	key      string
	doc      *chapter.Doc
	order    []string
	captions []transcript.Caption
	reporter Reporter
	local    *progress.Local
	player   media.Player
	delays   config.TransitionConfig
	rate     float64
	fps      int
	clip     func(string) time.Duration
	resolve  func(string) string
	info     func() ChapterInfo
	log      *zap.Logger

	startingSegment int
	autoOpened      bool

	done   map[string]bool
	states []State

	observers []observer
	nextObs   int

	clock  time.Duration
	timers []timer
	gen    int

	phase  phase
	cur    int
	start  float64
	end    float64
	status Status
	shown  []transcript.Caption
	deck   *media.Deck

	pending    *ReportRequested
	inFlight   bool
	syncFailed bool
	dialog     bool
	decision   *ChapterComplete

	examplesOpen bool
	exampleIdx   int
}

type observer struct {
	id int
	fn func(Event)
}

// New creates a Session. Call Init before driving it.
func New(opts Options) *Session {
	s := &Session{
		key:             opts.ChapterKey,
		doc:             opts.Doc,
		order:           opts.Doc.Order(),
		captions:        opts.Captions,
		reporter:        opts.Reporter,
		local:           opts.Local,
		player:          opts.Player,
		delays:          opts.Delays,
		rate:            opts.Rate,
		fps:             opts.FPS,
		clip:            opts.ClipLength,
		resolve:         opts.Resolve,
		info:            opts.ChapterInfo,
		log:             opts.Logger,
		startingSegment: opts.StartingSegment,
		done:            make(map[string]bool),
		cur:             -1,
	}
	if s.player == nil {
		s.player = media.NewSimPlayer(0)
	}
	if s.rate <= 0 {
		s.rate = 1
	}
	if s.fps <= 0 {
		s.fps = transcript.DefaultFPS
	}
	if s.clip == nil {
		s.clip = func(string) time.Duration { return defaultClip }
	}
	if s.resolve == nil {
		s.resolve = func(p string) string { return p }
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("chapter", s.key))
	s.states = ComputeStates(s.order, s.done)
	return s
}

// Subscribe registers fn for every later event and returns a function that
// removes it.
func (s *Session) Subscribe(fn func(Event)) func() {
	id := s.nextObs
	s.nextObs++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) emit(ev Event) {
	for _, o := range s.observers {
		o.fn(ev)
	}
}

// Init loads the completion set and applies the starting segment. When
// resuming mid-chapter it schedules one automatic open of the clickable
// hotspot.
func (s *Session) Init(ctx context.Context) error {
	if s.reporter == nil && s.local != nil {
		reset, err := s.local.EnsureSchema(ctx)
		if err != nil {
			return fmt.Errorf("init chapter %s: %w", s.key, err)
		}
		if reset {
			s.log.Info("local progress schema changed, completion sets cleared")
		}
		ids, err := s.local.Load(ctx, s.doc.ID)
		if err != nil {
			return fmt.Errorf("init chapter %s: %w", s.key, err)
		}
		for _, id := range ids {
			s.done[id] = true
		}
	}

	n := min(s.startingSegment, len(s.order))
	for i := range n {
		s.done[s.order[i]] = true
	}
	if n > 0 {
		s.log.Info("resuming chapter", zap.Int("segment", n))
		s.saveLocal(ctx)
	}
	s.recompute()

	if n > 0 && !s.autoOpened {
		if i := ClickableIndex(s.states); i >= 0 {
			s.autoOpened = true
			id := s.order[i]
			s.after(s.delays.AutoOpen, anyGen, func() {
				if idx := s.doc.Index(id); idx >= 0 && s.states[idx] == Clickable && s.phase == phaseClosed {
					if err := s.Open(id); err != nil {
						s.log.Warn("auto-open failed", zap.String("hotspot", id), zap.Error(err))
					}
				}
			})
		}
	}
	return nil
}

func (s *Session) recompute() {
	s.states = ComputeStates(s.order, s.done)
	s.emit(StatesChanged{States: s.States()})
}

// saveLocal persists the completion set. It is a no-op when a remote
// session exists: the server is then the only source of truth.
func (s *Session) saveLocal(ctx context.Context) {
	if s.reporter != nil || s.local == nil {
		return
	}
	ids := make([]string, 0, len(s.done))
	for _, id := range s.order {
		if s.done[id] {
			ids = append(ids, id)
		}
	}
	if err := s.local.Save(ctx, s.doc.ID, ids); err != nil {
		s.log.Warn("save local progress failed", zap.Error(err))
	}
}

// Open opens the viewer for a hotspot. Done hotspots may be replayed at
// any time; the clickable one only when no sync is pending.
func (s *Session) Open(id string) error {
	idx := s.doc.Index(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownHotspot, id)
	}
	switch s.states[idx] {
	case Locked:
		return fmt.Errorf("%w: %s", ErrLocked, id)
	case Clickable:
		if s.pending != nil {
			return ErrSyncPending
		}
	}

	s.gen++
	s.closeViewer()

	h := s.doc.Hotspots[idx]
	s.cur = idx
	s.start, s.end = s.doc.Window(idx, s.fps)
	s.player.Pause()
	s.player.Seek(s.start)

	mode, srcs := h.Media()
	resolved := make([]string, len(srcs))
	clips := make([]time.Duration, len(srcs))
	for i, src := range srcs {
		resolved[i] = s.resolve(src)
		clips[i] = s.clip(resolved[i])
	}
	s.deck = media.NewDeck(mode, resolved, clips, s.delays.Crossfade)
	s.phase = phaseOpening
	s.status = StatusReady
	s.shown = nil
	s.examplesOpen, s.exampleIdx = false, 0

	title, body := chapter.TitleAndBody(h.Narration())
	s.log.Info("segment opened",
		zap.String("hotspot", id),
		zap.Float64("start", s.start),
		zap.Float64("end", s.end),
		zap.Stringer("media", mode))
	s.emit(ViewerOpened{
		HotspotID: id,
		Index:     idx,
		Title:     title,
		Body:      body,
		Media:     mode,
		SizeClass: h.SizeClass(),
		Start:     s.start,
		End:       s.end,
	})
	s.emit(PlaybackChanged{HotspotID: id, Status: StatusReady})

	s.after(s.delays.OpenAnimation, s.gen, s.startSegment)
	return nil
}

// startSegment plays the window from its start.
func (s *Session) startSegment() {
	if s.phase == phaseClosed {
		return
	}
	s.player.Seek(s.start)
	s.player.SetRate(s.rate)
	s.deck.SetRate(s.rate)
	s.player.Play()
	s.deck.Play()
	s.phase = phaseActive
	s.setStatus(StatusPlaying)
	s.sync()
}

func (s *Session) setStatus(st Status) {
	if s.status == st {
		return
	}
	s.status = st
	s.emit(PlaybackChanged{HotspotID: s.currentID(), Status: st})
}

func (s *Session) currentID() string {
	if s.cur < 0 || s.cur >= len(s.order) {
		return ""
	}
	return s.order[s.cur]
}

// Advance moves virtual time forward: due transitions fire, then the
// player and deck advance and the window is re-checked.
func (s *Session) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	s.clock += dt
	s.runTimers()
	if s.phase == phaseActive && !s.player.Paused() {
		if c, ok := s.player.(media.Clock); ok {
			c.Tick(dt)
		}
		s.deck.Tick(dt)
	}
	s.sync()
}

func (s *Session) after(d time.Duration, gen int, fn func()) {
	s.timers = append(s.timers, timer{at: s.clock + d, gen: gen, fn: fn})
}

func (s *Session) runTimers() {
	for {
		next := -1
		for i, t := range s.timers {
			if t.at <= s.clock && (next < 0 || t.at < s.timers[next].at) {
				next = i
			}
		}
		if next < 0 {
			return
		}
		t := s.timers[next]
		s.timers = append(s.timers[:next], s.timers[next+1:]...)
		if t.gen != anyGen && t.gen != s.gen {
			continue
		}
		t.fn()
	}
}

// sync clamps playback into the window, refreshes captions and detects
// the end of the segment.
func (s *Session) sync() {
	if s.phase != phaseActive {
		return
	}
	t := s.player.CurrentTime()
	now := min(max(t, s.start), s.end)
	if now != t {
		s.player.Seek(now)
	}

	shown := transcript.Window(s.captions, s.start, s.end, now)
	if !sameCaptions(shown, s.shown) {
		s.shown = shown
		s.emit(CaptionsChanged{Captions: shown})
	}

	if now >= s.end-completionTolerance {
		s.finish()
	}
}

func sameCaptions(a, b []transcript.Caption) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Session) finish() {
	s.player.Pause()
	s.deck.Pause()
	s.phase = phaseFinished
	s.setStatus(StatusFinished)

	id := s.currentID()
	s.emit(SegmentFinished{HotspotID: id, Index: s.cur})
	s.complete(s.cur)
}

// complete marks a hotspot done and either confirms it or asks for the
// progress report. Replays of done hotspots change nothing.
func (s *Session) complete(idx int) {
	id := s.order[idx]
	if s.done[id] {
		return
	}
	s.done[id] = true
	s.log.Info("segment completed", zap.String("hotspot", id), zap.Int("index", idx))

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	s.saveLocal(ctx)
	cancel()
	s.recompute()

	if s.reporter == nil {
		s.confirm(idx, false)
		return
	}
	req := ReportRequested{
		HotspotID:    id,
		NextSegment:  idx + 1,
		AllCompleted: idx+1 >= len(s.order),
	}
	s.pending = &req
	s.inFlight = true
	s.emit(req)
}

// Report runs the progress POST for req. It does not touch session state,
// so it may run off the event loop; feed its result to ReportResult.
func (s *Session) Report(ctx context.Context, req ReportRequested) error {
	if s.reporter == nil {
		return nil
	}
	return s.reporter.PostSegmentProgress(ctx, req.NextSegment, req.AllCompleted)
}

// ReportResult resolves the pending report. A failure blocks the session
// until RetrySync succeeds.
func (s *Session) ReportResult(err error) {
	if s.pending == nil {
		return
	}
	req := *s.pending
	s.inFlight = false
	if err != nil {
		s.syncFailed, s.dialog = true, true
		s.log.Error("progress sync failed", zap.String("hotspot", req.HotspotID), zap.Error(err))
		s.emit(SyncFailed{HotspotID: req.HotspotID, Err: err})
		return
	}

	s.pending = nil
	if s.syncFailed {
		s.syncFailed, s.dialog = false, false
		s.emit(SyncRecovered{HotspotID: req.HotspotID})
	}
	s.confirm(s.doc.Index(req.HotspotID), true)
}

// RetrySync re-emits the pending report after a failed sync. It refuses
// while a report is still running, so at most one POST is outstanding.
func (s *Session) RetrySync() (ReportRequested, bool) {
	if s.pending == nil || s.inFlight || !s.syncFailed {
		return ReportRequested{}, false
	}
	s.dialog = false
	s.inFlight = true
	req := *s.pending
	s.log.Info("retrying progress sync", zap.String("hotspot", req.HotspotID))
	s.emit(req)
	return req, true
}

// DismissSync hides the failure dialog. The session stays blocked.
func (s *Session) DismissSync() {
	s.dialog = false
}

// confirm moves on after a committed completion: the next hotspot opens
// after the close and segment delays, or the chapter decision is shown.
func (s *Session) confirm(idx int, remote bool) {
	if idx < 0 {
		return
	}
	id := s.order[idx]
	s.emit(SegmentConfirmed{HotspotID: id, Index: idx, Remote: remote})

	h := s.doc.Hotspots[idx]
	if s.DoneCount() >= len(s.order) || h.IsDone() {
		s.log.Info("chapter complete")
		s.after(s.delays.ViewerClose, anyGen, func() {
			s.closeViewer()
			s.decide()
		})
		return
	}

	gen := s.gen
	s.after(s.delays.ViewerClose, gen, s.closeViewer)
	if idx+1 < len(s.order) {
		next := s.order[idx+1]
		s.after(s.delays.ViewerClose+s.delays.SegmentDelay, gen, func() {
			if err := s.Open(next); err != nil {
				s.log.Warn("advance failed", zap.String("hotspot", next), zap.Error(err))
			}
		})
	}
}

func (s *Session) decide() {
	info := ChapterInfo{}
	if s.info != nil {
		info = s.info()
	}
	if info.Title == "" {
		info.Title = s.doc.Title
	}
	if info.Title == "" {
		info.Title = "this chapter"
	}
	if info.NextTitle == "" {
		info.NextTitle = "the next chapter"
	}
	d := ChapterComplete{Final: info.Final, CurrentTitle: info.Title, NextTitle: info.NextTitle}
	s.decision = &d
	s.emit(d)
}

// Stay dismisses the decision point and keeps the chapter.
func (s *Session) Stay() {
	if s.decision == nil {
		return
	}
	s.decision = nil
	s.closeViewer()
}

// Continue resolves the decision point by asking for the next chapter. On
// the final chapter it behaves like Stay.
func (s *Session) Continue() {
	if s.decision == nil {
		return
	}
	final := s.decision.Final
	s.decision = nil
	s.closeViewer()
	if final {
		return
	}
	s.log.Info("continue to next chapter")
	s.emit(ContinueRequested{})
}

// TogglePlay pauses or resumes. Resuming outside the window restarts it.
func (s *Session) TogglePlay() {
	if s.phase != phaseActive && s.phase != phaseFinished {
		return
	}
	if !s.player.Paused() {
		s.pause()
		return
	}
	t := s.player.CurrentTime()
	if s.phase == phaseFinished || t <= s.start || t >= s.end {
		s.startSegment()
		return
	}
	s.player.Play()
	s.deck.Play()
	s.setStatus(StatusPlaying)
}

func (s *Session) pause() {
	s.player.Pause()
	s.deck.Pause()
	s.setStatus(StatusPaused)
}

// Replay restarts the open segment from its start.
func (s *Session) Replay() {
	if s.phase == phaseActive || s.phase == phaseFinished {
		s.startSegment()
	}
}

// Close pauses and closes the viewer and cancels any pending advance.
// Completion state is unchanged.
func (s *Session) Close() {
	s.gen++
	s.closeViewer()
}

func (s *Session) closeViewer() {
	if s.phase == phaseClosed {
		return
	}
	id := s.currentID()
	s.player.Pause()
	if s.deck != nil {
		s.deck.Pause()
	}
	s.phase = phaseClosed
	s.cur = -1
	s.deck = nil
	s.shown = nil
	s.examplesOpen = false
	s.status = StatusReady
	s.emit(ViewerClosed{HotspotID: id})
}

// SetVisible pauses playback when the viewer loses visibility.
func (s *Session) SetVisible(visible bool) {
	if !visible && s.phase == phaseActive && !s.player.Paused() {
		s.log.Debug("hidden, pausing playback")
		s.pause()
	}
}
