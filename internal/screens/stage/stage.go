// Package stage is the chapter viewer: hotspot map, curriculum sidebar,
// segment viewer and the sync and chapter dialogs.
package stage

import (
	"context"
	"errors"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/media"
	"github.com/abhisek/ggtrain/internal/router"
	"github.com/abhisek/ggtrain/internal/screen"
	"github.com/abhisek/ggtrain/internal/sidebar"
	"github.com/abhisek/ggtrain/internal/training"
	"github.com/abhisek/ggtrain/internal/ui/components"
)

// reportTimeout bounds one progress report including its retries.
const reportTimeout = time.Minute

type focusArea int

const (
	focusMap focusArea = iota
	focusSidebar
)

// chapterLoadedMsg carries a loaded chapter or the load failure.
type chapterLoadedMsg struct {
	chapter loadedChapter
	err     error
}

// reportDoneMsg is the outcome of a progress report for sess.
type reportDoneMsg struct {
	sess *training.Session
	err  error
}

// StageScreen implements screen.Screen for the chapter viewer.
type StageScreen struct {
	deps  Deps
	log   *zap.Logger
	clips *clipCache

	key     string
	sess    *training.Session
	unsub   []func()
	events  []training.Event
	nav     *sidebar.Navigator
	tree    sidebar.Tree
	rows    []sidebar.Row
	loading bool
	loadErr string
	status  string
	done    bool

	focus      focusArea
	selected   int
	sideCursor int
	choice     components.Choice
	lastFrame  time.Time
}

var _ screen.Screen = (*StageScreen)(nil)
var _ screen.KeyHintProvider = (*StageScreen)(nil)
var _ screen.StatusProvider = (*StageScreen)(nil)
var _ screen.EscapeHandler = (*StageScreen)(nil)

// New creates the stage for chapter key.
func New(deps Deps, key string) *StageScreen {
	return &StageScreen{
		deps:  deps,
		log:   deps.logger().Named("stage"),
		clips: newClipCache(deps),
		key:   key,
	}
}

func (s *StageScreen) Init() tea.Cmd {
	return s.loadChapter(s.key)
}

func (s *StageScreen) Title() string {
	if s.sess != nil && s.sess.Doc().Title != "" {
		return s.sess.Doc().Title
	}
	if t := s.deps.chapterTitle(s.key); t != "" {
		return t
	}
	return "Chapter " + s.key
}

// HandlesEscape keeps Esc inside the stage: it closes dialogs and the
// viewer.
func (s *StageScreen) HandlesEscape() bool { return true }

// Session exposes the running session, nil while loading.
func (s *StageScreen) Session() *training.Session { return s.sess }

// ChapterKey is the chapter on the stage.
func (s *StageScreen) ChapterKey() string { return s.key }

func (s *StageScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case chapterLoadedMsg:
		return s, s.handleLoaded(msg)

	case screen.LoadChapterMsg:
		if msg.Key == s.key && s.sess != nil {
			return s, nil
		}
		return s, s.loadChapter(msg.Key)

	case screen.FrameMsg:
		return s, s.handleFrame(time.Time(msg))

	case reportDoneMsg:
		if msg.sess != s.sess || s.sess == nil {
			return s, nil
		}
		s.sess.ReportResult(msg.err)
		return s, s.drain()

	case tea.BlurMsg:
		if s.sess != nil {
			s.sess.SetVisible(false)
			return s, s.drain()
		}
		return s, nil

	case tea.KeyPressMsg:
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *StageScreen) loadChapter(key string) tea.Cmd {
	s.loading = true
	s.loadErr = ""
	deps := s.deps
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		ch, err := deps.load(ctx, key)
		return chapterLoadedMsg{chapter: ch, err: err}
	}
}

func (s *StageScreen) handleLoaded(msg chapterLoadedMsg) tea.Cmd {
	s.loading = false
	if msg.err != nil {
		s.log.Error("chapter load failed", zap.String("chapter", msg.chapter.key), zap.Error(msg.err))
		s.loadErr = msg.err.Error()
		return nil
	}
	s.teardown()

	ch := msg.chapter
	s.key = ch.key
	s.done = false
	s.status = ""

	opts := training.Options{
		ChapterKey:      ch.key,
		Doc:             ch.doc,
		Captions:        ch.captions,
		StartingSegment: ch.starting,
		Local:           s.deps.Local,
		Player:          media.NewSimPlayer(ch.audio),
		Delays:          s.deps.Config.Transition,
		Rate:            s.deps.Config.Playback.Rate(),
		FPS:             s.deps.Config.Playback.FPS,
		ClipLength:      s.clips.length,
		Resolve:         s.deps.resolve,
		ChapterInfo:     s.chapterInfo(ch.key),
		Logger:          s.deps.Logger,
	}
	if s.deps.online() {
		opts.Reporter = s.deps.Catalog
		if err := s.deps.Catalog.SetCurrentKey(ch.key); err != nil {
			s.log.Warn("set current chapter", zap.Error(err))
		}
	}

	sess := training.New(opts)
	s.unsub = append(s.unsub, sess.Subscribe(func(ev training.Event) {
		s.events = append(s.events, ev)
	}))
	if s.deps.Events != nil {
		rec := training.NewRecorder(s.deps.Events, ch.key, s.deps.Logger)
		s.unsub = append(s.unsub, sess.Subscribe(rec.Observe))
	}
	s.sess = sess
	s.nav = sidebar.New()
	s.focus = focusMap
	s.sideCursor = 0

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := sess.Init(ctx); err != nil {
		s.log.Error("session init failed", zap.Error(err))
		s.status = "Local progress unavailable: " + err.Error()
	}
	s.selected = max(training.ClickableIndex(sess.States()), 0)
	s.log.Info("chapter loaded", zap.String("chapter", ch.key), zap.Int("starting", ch.starting))
	return s.drain()
}

func (s *StageScreen) teardown() {
	for _, u := range s.unsub {
		u()
	}
	s.unsub = nil
	s.events = nil
	if s.sess != nil {
		s.sess.Close()
	}
	s.sess = nil
}

func (s *StageScreen) chapterInfo(key string) func() training.ChapterInfo {
	return func() training.ChapterInfo {
		info := training.ChapterInfo{Title: s.deps.chapterTitle(key)}
		if s.deps.Curriculum == nil {
			return info
		}
		info.Final = s.deps.Curriculum.IsFinal(key)
		if next, ok := s.deps.Curriculum.Next(key); ok {
			info.NextTitle = s.deps.chapterTitle(next)
		}
		return info
	}
}

func (s *StageScreen) handleFrame(t time.Time) tea.Cmd {
	interval := s.deps.Config.Playback.FrameInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	dt := interval
	if !s.lastFrame.IsZero() {
		if d := t.Sub(s.lastFrame); d > 0 && d < 4*interval {
			dt = d
		}
	}
	s.lastFrame = t
	if s.sess == nil {
		return nil
	}
	s.sess.Advance(dt)
	return s.drain()
}

// drain reacts to queued session events and returns the commands they
// need.
func (s *StageScreen) drain() tea.Cmd {
	var cmds []tea.Cmd
	for len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]

		switch ev := ev.(type) {
		case training.StatesChanged:
			s.rebuildSidebar()
		case training.ViewerOpened:
			s.selected = ev.Index
			s.status = ""
		case training.ReportRequested:
			s.status = "Saving progress…"
			cmds = append(cmds, s.report(ev))
		case training.SegmentConfirmed:
			if ev.Remote {
				s.status = "Progress saved"
			}
			s.rebuildSidebar()
		case training.SyncFailed:
			s.status = "Progress not saved"
			s.choice = components.NewChoice("Retry", "Cancel")
		case training.SyncRecovered:
			s.status = "Progress saved"
		case training.ChapterComplete:
			if ev.Final {
				s.choice = components.NewChoice("Close")
			} else {
				s.choice = components.NewChoice("Stay", "Continue")
				s.choice.Selected = 1
			}
		case training.ContinueRequested:
			cmds = append(cmds, s.nextChapter())
		}
	}
	return tea.Batch(cmds...)
}

func (s *StageScreen) report(req training.ReportRequested) tea.Cmd {
	sess := s.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		return reportDoneMsg{sess: sess, err: sess.Report(ctx, req)}
	}
}

func (s *StageScreen) nextChapter() tea.Cmd {
	var (
		next string
		err  error
	)
	if s.deps.online() {
		next, err = s.deps.Catalog.MoveToNextChapter()
	} else if s.deps.Curriculum != nil {
		var ok bool
		if next, ok = s.deps.Curriculum.Next(s.key); !ok {
			err = api.ErrAllComplete
		}
	} else {
		err = api.ErrAllComplete
	}

	if errors.Is(err, api.ErrAllComplete) {
		s.done = true
		s.status = "Training complete"
		return nil
	}
	if err != nil {
		s.status = err.Error()
		return nil
	}
	s.log.Info("moving to next chapter", zap.String("from", s.key), zap.String("to", next))
	return s.loadChapter(next)
}

func (s *StageScreen) rebuildSidebar() {
	if s.sess == nil || s.nav == nil || s.deps.Curriculum == nil {
		return
	}
	in := sidebar.Input{
		Curriculum: s.deps.Curriculum,
		CurrentKey: s.key,
		Hotspots:   s.sess.Doc().Candidates(),
		Done:       s.sess.DoneIDs(),
	}
	if s.deps.online() {
		in.ChapterComplete = s.deps.Catalog.ChapterComplete
	}
	s.tree = s.nav.Build(in)
	s.rows = s.tree.Rows()
	s.sideCursor = min(s.sideCursor, max(len(s.rows)-1, 0))
}

func (s *StageScreen) mostRecent(module int) int {
	if s.deps.online() {
		return s.deps.Catalog.MostRecentChapterInModule(module)
	}
	return 1
}

// open opens hotspot id and turns refusals into status text.
func (s *StageScreen) open(id string) {
	err := s.sess.Open(id)
	switch {
	case err == nil:
	case errors.Is(err, training.ErrLocked):
		s.status = "Finish the current segment first"
	case errors.Is(err, training.ErrSyncPending):
		s.status = "Progress not saved yet. Press R to retry"
	default:
		s.status = err.Error()
	}
}

func (s *StageScreen) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	key := msg.String()

	if s.sess == nil {
		if s.loadErr != "" && key == "r" {
			return s.loadChapter(s.key)
		}
		return nil
	}

	if _, ok := s.sess.Decision(); ok {
		return s.handleDecisionKey(msg)
	}
	if s.sess.SyncDialog() {
		return s.handleSyncKey(msg)
	}
	if _, _, _, ok := s.sess.ExampleShown(); ok {
		switch key {
		case "left", "h":
			s.sess.PrevExample()
		case "right", "l", "tab":
			s.sess.NextExample()
		case "e", "esc", "enter":
			s.sess.HideExamples()
		}
		return nil
	}
	if s.focus == focusSidebar {
		return s.handleSidebarKey(key)
	}

	switch key {
	case "left", "shift+tab":
		s.moveSelection(-1)
	case "right", "tab":
		s.moveSelection(1)
	case "enter":
		order := s.sess.Doc().Order()
		if s.selected >= 0 && s.selected < len(order) {
			s.open(order[s.selected])
		}
	case "space":
		s.sess.TogglePlay()
	case "r":
		s.sess.Replay()
	case "x", "esc":
		s.sess.Close()
	case "e":
		if !s.sess.ShowExamples() {
			s.status = "No real-life examples for this segment"
		}
	case "R":
		if _, ok := s.sess.RetrySync(); !ok {
			s.status = "Nothing to retry"
			if s.sess.SyncInFlight() {
				s.status = "Saving progress…"
			}
		}
	case "s":
		if s.deps.Curriculum != nil {
			s.focus = focusSidebar
		}
	case "o":
		if s.deps.Overview != nil {
			s.sess.SetVisible(false)
			return tea.Batch(s.drain(), func() tea.Msg {
				return router.PushScreenMsg{Screen: s.deps.Overview()}
			})
		}
	}
	return s.drain()
}

func (s *StageScreen) moveSelection(d int) {
	n := len(s.sess.Doc().Order())
	if n == 0 {
		return
	}
	s.selected = (s.selected + d + n) % n
}

func (s *StageScreen) handleDecisionKey(msg tea.KeyPressMsg) tea.Cmd {
	d, _ := s.sess.Decision()
	if msg.String() == "esc" {
		s.sess.Stay()
		return s.drain()
	}
	var picked int
	s.choice, picked = s.choice.Update(msg)
	switch {
	case picked < 0:
		return nil
	case d.Final || picked == 0:
		s.sess.Stay()
	default:
		s.sess.Continue()
	}
	return s.drain()
}

func (s *StageScreen) handleSyncKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "R":
		s.sess.RetrySync()
		return s.drain()
	case "esc":
		s.sess.DismissSync()
		return nil
	}
	var picked int
	s.choice, picked = s.choice.Update(msg)
	switch picked {
	case 0:
		s.sess.RetrySync()
	case 1:
		s.sess.DismissSync()
	}
	return s.drain()
}

func (s *StageScreen) handleSidebarKey(key string) tea.Cmd {
	switch key {
	case "up", "k":
		s.sideCursor = max(s.sideCursor-1, 0)
	case "down", "j":
		s.sideCursor = min(s.sideCursor+1, max(len(s.rows)-1, 0))
	case "s", "esc", "tab":
		s.focus = focusMap
	case "space":
		if s.sideCursor < len(s.rows) {
			r := s.rows[s.sideCursor]
			switch r.Kind {
			case sidebar.RowModule:
				s.nav.ToggleModule(r.Module)
			case sidebar.RowChapter:
				s.nav.ToggleChapter(r.ChapterKey)
			}
			s.rebuildSidebar()
		}
	case "enter":
		if s.sideCursor >= len(s.rows) {
			return nil
		}
		t := s.nav.Activate(s.tree, s.rows[s.sideCursor], s.mostRecent)
		s.rebuildSidebar()
		switch t.Kind {
		case sidebar.TargetHotspot:
			s.focus = focusMap
			s.open(t.HotspotID)
			return s.drain()
		case sidebar.TargetChapter:
			if t.ChapterKey != s.key {
				return s.loadChapter(t.ChapterKey)
			}
		}
	}
	return nil
}
