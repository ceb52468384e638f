package overview

import (
	"reflect"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/router"
	"github.com/abhisek/ggtrain/internal/screen"
)

type fakeCatalog struct {
	chapters []api.Chapter
	current  string
}

func (f *fakeCatalog) Curriculum() *curriculum.Curriculum { return curriculum.Default() }
func (f *fakeCatalog) Chapters() []api.Chapter            { return f.chapters }
func (f *fakeCatalog) CurrentKey() string                 { return f.current }
func (f *fakeCatalog) Overall() api.Overall               { return api.Overall{Percent: 40} }
func (f *fakeCatalog) Status() api.AuthStatus             { return api.AuthStatus{Authenticated: true} }

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		current: "1-2",
		chapters: []api.Chapter{
			{Key: "1-1", Doc: &chapter.Doc{Title: "Evacuation"}, Progress: api.ChapterProgress{Completed: true, CurrentSegment: 7, TotalSegments: 7}},
			{Key: "1-2", Progress: api.ChapterProgress{CurrentSegment: 3, TotalSegments: 8}},
			{Key: "1-4", Progress: api.ChapterProgress{TotalSegments: 5}},
		},
	}
}

func press(o *OverviewScreen, code rune) tea.Cmd {
	_, cmd := o.Update(tea.KeyPressMsg{Code: code})
	return cmd
}

// sequence unpacks the commands of a tea.Sequence.
func sequence(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	v := reflect.ValueOf(cmd())
	require.Equal(t, reflect.Slice, v.Kind())
	var out []tea.Msg
	for i := range v.Len() {
		c, ok := v.Index(i).Interface().(tea.Cmd)
		require.True(t, ok)
		out = append(out, c())
	}
	return out
}

func TestCursorStartsOnCurrentChapter(t *testing.T) {
	o := New(newCatalog())
	assert.Equal(t, "1-2", o.Selected())
}

func TestNavigationSkipsUnavailableChapters(t *testing.T) {
	o := New(newCatalog())

	press(o, tea.KeyDown)
	assert.Equal(t, "1-4", o.Selected(), "1-3 is not in the catalog")

	press(o, tea.KeyUp)
	press(o, tea.KeyUp)
	assert.Equal(t, "1-1", o.Selected())

	press(o, tea.KeyUp)
	assert.Equal(t, "1-1", o.Selected(), "module heading is never selected")
}

func TestEnterPopsAndLoadsChapter(t *testing.T) {
	o := New(newCatalog())
	press(o, tea.KeyUp)

	cmd := press(o, tea.KeyEnter)
	require.NotNil(t, cmd)
	msgs := sequence(t, cmd)
	require.Len(t, msgs, 2)
	assert.Equal(t, router.PopScreenMsg{}, msgs[0])
	assert.Equal(t, screen.LoadChapterMsg{Key: "1-1"}, msgs[1])
}

func TestViewShowsProgress(t *testing.T) {
	o := New(newCatalog())
	view := o.View(120, 60)

	assert.Contains(t, view, "Module 1: Fire Safety")
	assert.Contains(t, view, "Evacuation")
	assert.Contains(t, view, "✓ complete")
	assert.Contains(t, view, "3/8 segments")
	assert.Contains(t, view, "not started")
	assert.Contains(t, view, "unavailable")
	assert.Equal(t, "40%  ✓ Authenticated", o.HeaderStatus())
}

func TestEmptyCatalog(t *testing.T) {
	o := New(&fakeCatalog{})
	assert.Equal(t, "", o.Selected())
	assert.Nil(t, press(o, tea.KeyEnter))
}
