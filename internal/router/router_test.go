package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/ggtrain/internal/screen"
)

// stubScreen is a minimal screen for testing.
type stubScreen struct {
	title   string
	initRan bool
	got     []tea.Msg
}

func (s *stubScreen) Init() tea.Cmd {
	s.initRan = true
	return nil
}
func (s *stubScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	s.got = append(s.got, msg)
	return s, nil
}
func (s *stubScreen) View(int, int) string { return s.title }
func (s *stubScreen) Title() string        { return s.title }

func TestPush(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1, nil)

	s2 := &stubScreen{title: "second"}
	r.Push(s2)

	if r.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", r.Depth())
	}
	if r.Active().Title() != "second" {
		t.Errorf("expected active 'second', got %q", r.Active().Title())
	}
	if !s2.initRan {
		t.Error("expected Init() to run on pushed screen")
	}
}

func TestPop(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1, nil)

	s2 := &stubScreen{title: "second"}
	r.Push(s2)
	r.Pop()

	if r.Depth() != 1 {
		t.Errorf("expected depth 1, got %d", r.Depth())
	}
	if r.Active().Title() != "first" {
		t.Errorf("expected active 'first', got %q", r.Active().Title())
	}
}

func TestPopNoopAtBottom(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1, nil)

	r.Pop()

	if r.Depth() != 1 {
		t.Errorf("expected depth 1 after pop at bottom, got %d", r.Depth())
	}
}

func TestReplace(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1, nil)

	s2 := &stubScreen{title: "second"}
	r.Replace(s2)

	if r.Depth() != 1 {
		t.Errorf("expected depth 1 after replace, got %d", r.Depth())
	}
	if r.Active().Title() != "second" {
		t.Errorf("expected active 'second', got %q", r.Active().Title())
	}
	if !s2.initRan {
		t.Error("expected Init() to run on replaced screen")
	}
}

func TestReplaceScreenMsg(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1, nil)

	s2 := &stubScreen{title: "second"}
	r.Update(ReplaceScreenMsg{Screen: s2})

	if r.Active().Title() != "second" {
		t.Errorf("expected active 'second', got %q", r.Active().Title())
	}
	if !s2.initRan {
		t.Error("expected Init() to run via ReplaceScreenMsg")
	}
}

func TestReplacePreservesStackDepth(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1, nil)

	s2 := &stubScreen{title: "second"}
	r.Push(s2)

	s3 := &stubScreen{title: "third"}
	r.Replace(s3)

	if r.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", r.Depth())
	}
	if r.Active().Title() != "third" {
		t.Errorf("expected active 'third', got %q", r.Active().Title())
	}
}

func TestUpdateReachesActiveScreenOnly(t *testing.T) {
	stage := &stubScreen{title: "stage"}
	r := New(stage, nil)
	overview := &stubScreen{title: "overview"}
	r.Update(PushScreenMsg{Screen: overview})

	r.Update(screen.FrameMsg{})

	if len(stage.got) != 0 {
		t.Errorf("covered screen got %d messages", len(stage.got))
	}
	if len(overview.got) != 1 {
		t.Errorf("expected 1 message on active screen, got %d", len(overview.got))
	}
	if v := r.View(80, 24); v != "overview" {
		t.Errorf("expected active view, got %q", v)
	}
}

func TestNavigationIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(&stubScreen{title: "Sign in"}, zap.New(core))

	r.Replace(&stubScreen{title: "Chapter 1-1"})
	r.Push(&stubScreen{title: "Training overview"})
	r.Pop()
	r.Pop()

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 navigation logs, got %d", len(entries))
	}
	want := []struct {
		msg, active string
		depth       int64
	}{
		{"screen replace", "Chapter 1-1", 1},
		{"screen push", "Training overview", 2},
		{"screen pop", "Chapter 1-1", 1},
	}
	for i, w := range want {
		e := entries[i]
		fields := e.ContextMap()
		if e.Message != w.msg || fields["active"] != w.active || fields["depth"] != w.depth {
			t.Errorf("entry %d = %q %v, want %q active=%q depth=%d", i, e.Message, fields, w.msg, w.active, w.depth)
		}
	}
}
