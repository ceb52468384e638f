package sidebar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/ggtrain/internal/curriculum"
)

var hotspots = []curriculum.Candidate{
	{ID: "a", Title: "Intro"},
	{ID: "b", Title: "Evacuation Basics"},
	{ID: "c", Title: "Host & Guest Plan"},
	{ID: "d", Title: "exit signage!"},
	{ID: "e", Title: "Closing"},
}

func chapter11(t *testing.T, tree Tree) Chapter {
	t.Helper()
	require.NotEmpty(t, tree.Modules)
	return tree.Modules[0].Chapters[0]
}

func states(c Chapter) []SegmentState {
	out := make([]SegmentState, len(c.Segments))
	for i, s := range c.Segments {
		out[i] = s.State
	}
	return out
}

func TestBuild_FreshChapter(t *testing.T) {
	n := New()
	tree := n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots})

	c := chapter11(t, tree)
	assert.Equal(t, "chapter-1-1", c.ID)
	assert.True(t, c.Active)
	assert.True(t, c.Expanded)
	assert.True(t, c.HasCurrent)
	assert.False(t, c.AllCompleted)
	assert.Equal(t, []SegmentState{Current, Locked, Locked, Locked, Locked, Locked, Locked}, states(c))

	// Emergency Manual and Hypothetical Example have no hotspot.
	assert.False(t, c.Segments[4].Mapped())
	assert.False(t, c.Segments[5].Mapped())
	assert.Equal(t, "d", c.Segments[3].HotspotID)

	assert.True(t, tree.Modules[0].Expanded)
	assert.True(t, tree.Modules[0].CurrentModule)
	assert.False(t, tree.Modules[1].Expanded)
	for _, ch := range tree.Modules[1].Chapters {
		for _, s := range ch.Segments {
			assert.False(t, s.Mapped(), "only the loaded chapter is mapped")
		}
	}
}

func TestBuild_CurrentFollowsDone(t *testing.T) {
	n := New()
	tree := n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots, Done: map[string]bool{"a": true, "b": true}})
	assert.Equal(t, []SegmentState{Completed, Completed, Current, Locked, Locked, Locked, Locked}, states(chapter11(t, tree)))
}

func TestBuild_ChapterAndModuleCompletion(t *testing.T) {
	done := map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": true}
	n := New()
	tree := n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots, Done: done})

	c := chapter11(t, tree)
	assert.True(t, c.AllCompleted)
	assert.False(t, c.HasCurrent)
	assert.False(t, tree.Modules[0].AllCompleted)

	tree = n.Build(Input{
		CurrentKey:      "1-1",
		Hotspots:        hotspots,
		Done:            done,
		ChapterComplete: func(key string) bool { m, _, _ := curriculum.ParseKey(key); return m == 1 },
	})
	assert.True(t, tree.Modules[0].AllCompleted)
	assert.False(t, tree.Modules[1].AllCompleted)
}

func TestBuild_NoMappedSegmentsIsNotComplete(t *testing.T) {
	tree := New().Build(Input{CurrentKey: "1-1"})
	assert.False(t, chapter11(t, tree).AllCompleted)
}

func TestBuild_ExpandsOnce(t *testing.T) {
	n := New()
	n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots})

	n.ToggleChapter("1-1")
	n.ToggleModule(1)
	tree := n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots, Done: map[string]bool{"a": true}})
	assert.False(t, tree.Modules[0].Expanded)
	assert.False(t, chapter11(t, tree).Expanded)
	assert.True(t, tree.Modules[0].CurrentModule, "badges still update")
}

func TestBuild_LatchWaitsForCurrentSegment(t *testing.T) {
	n := New()
	all := map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": true}
	n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots, Done: all})
	n.ToggleModule(1)

	tree := n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots})
	assert.True(t, tree.Modules[0].Expanded)

	n.ToggleModule(1)
	tree = n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots})
	assert.False(t, tree.Modules[0].Expanded)
}

func TestActivation(t *testing.T) {
	n := New()
	tree := n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots, Done: map[string]bool{"a": true}})

	assert.Equal(t, Target{Kind: TargetHotspot, HotspotID: "a", ChapterKey: "1-1"}, tree.ActivateSegment("1-1", 1))
	assert.Equal(t, Target{Kind: TargetHotspot, HotspotID: "b", ChapterKey: "1-1"}, tree.ActivateSegment("1-1", 2))
	assert.Equal(t, Target{}, tree.ActivateSegment("1-1", 3), "locked")
	assert.Equal(t, Target{}, tree.ActivateSegment("1-1", 5), "unmapped")
	assert.Equal(t, Target{}, tree.ActivateSegment("2-1", 1))
	assert.Equal(t, Target{}, tree.ActivateSegment("1-1", 99))

	assert.Equal(t, Target{Kind: TargetChapter, ChapterKey: "1-3"}, n.ActivateChapter("1-3"))

	got := n.ActivateModule(2, func(m int) int { return 2 })
	assert.Equal(t, Target{Kind: TargetChapter, ChapterKey: "2-2"}, got)
	tree = n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots})
	assert.False(t, tree.Modules[0].Expanded)
	assert.True(t, tree.Modules[1].Expanded)
	assert.True(t, tree.Modules[0].Chapters[2].Expanded)

	assert.Equal(t, "3-1", n.ActivateModule(3, nil).ChapterKey)
}

func TestRows(t *testing.T) {
	n := New()
	tree := n.Build(Input{CurrentKey: "1-1", Hotspots: hotspots})
	rows := tree.Rows()

	// 6 modules, the 5 chapters of module 1, the 7 segments of 1-1.
	require.Len(t, rows, 18)
	assert.Equal(t, RowModule, rows[0].Kind)
	assert.Equal(t, RowChapter, rows[1].Kind)
	assert.Equal(t, RowSegment, rows[2].Kind)
	assert.True(t, rows[2].Highlight)
	assert.True(t, rows[3].Locked)
	assert.Equal(t, 2, rows[2].Depth)

	target := n.Activate(tree, rows[2], nil)
	assert.Equal(t, "a", target.HotspotID)
	target = n.Activate(tree, rows[1], nil)
	assert.Equal(t, TargetChapter, target.Kind)
}
