// Package sidebar derives the module/chapter/segment tree shown beside the
// stage. It holds no progress of its own: every Build recomputes badges
// from the curriculum and the active chapter's completion set.
package sidebar

import (
	"github.com/abhisek/ggtrain/internal/curriculum"
)

// SegmentState is the badge of one segment row.
type SegmentState int

const (
	Locked SegmentState = iota
	Current
	Completed
)

func (s SegmentState) String() string {
	switch s {
	case Current:
		return "current"
	case Completed:
		return "completed"
	default:
		return "locked"
	}
}

// Segment is one curriculum segment row under a chapter.
type Segment struct {
	Number int
	Name   string
	// HotspotID is empty when no hotspot of the active chapter matches the
	// segment name; such segments stay locked.
	HotspotID string
	State     SegmentState
}

// Mapped reports whether a hotspot of the current chapter plays the segment.
func (s Segment) Mapped() bool { return s.HotspotID != "" }

// Chapter is a chapter node with its segments.
type Chapter struct {
	Key          string
	ID           string
	Number       int
	Name         string
	Segments     []Segment
	Active       bool
	Expanded     bool
	HasCurrent   bool
	AllCompleted bool
}

// Module is a top-level node holding its chapters.
type Module struct {
	Number        int
	ID            string
	Name          string
	Chapters      []Chapter
	Expanded      bool
	CurrentModule bool
	AllCompleted  bool
}

// Tree is the derived navigator content, modules in curriculum order.
type Tree struct {
	Modules []Module
}

// Input is everything a Build derives from.
type Input struct {
	Curriculum *curriculum.Curriculum
	// CurrentKey is the chapter loaded on the stage.
	CurrentKey string
	// Hotspots of the current chapter in linear order.
	Hotspots []curriculum.Candidate
	Done     map[string]bool
	// ChapterComplete, when set, marks chapters other than the current one
	// complete from the progress service.
	ChapterComplete func(key string) bool
}

// Navigator keeps expansion state between builds.
type Navigator struct {
	built       bool
	initialized bool
	modules     map[int]bool
	chapters    map[string]bool
}

// New returns a navigator that has not built yet, so its first Build
// auto-expands the current chapter.
func New() *Navigator {
	return &Navigator{
		modules:  make(map[int]bool),
		chapters: make(map[string]bool),
	}
}

// Build derives the tree. The first build expands the current chapter and
// its module; the first build that finds a current segment expands its
// branch once, and never again.
func (n *Navigator) Build(in Input) Tree {
	cur := in.Curriculum
	if cur == nil {
		cur = curriculum.Default()
	}

	if !n.built {
		n.built = true
		if m, _, ok := curriculum.ParseKey(in.CurrentKey); ok {
			n.modules[m] = true
			n.chapters[in.CurrentKey] = true
		}
	}

	tree := Tree{Modules: make([]Module, 0, len(cur.Modules))}
	foundCurrent := false
	var currentModule int
	var currentChapter string

	for _, m := range cur.Modules {
		mod := Module{Number: m.Number, ID: m.ID(), Name: m.Name}
		for _, c := range m.Chapters {
			key := c.Key()
			ch := Chapter{Key: key, ID: c.ID(), Number: c.Number, Name: c.Name, Active: key == in.CurrentKey}

			var ids []string
			if ch.Active {
				ids = curriculum.Match(cur.SegmentNames(key), in.Hotspots)
			}
			mapped := 0
			completed := 0
			for i, seg := range c.Segments {
				s := Segment{Number: i + 1, Name: seg.Name}
				if ids != nil {
					s.HotspotID = ids[i]
				}
				if s.Mapped() {
					mapped++
					switch {
					case in.Done[s.HotspotID]:
						s.State = Completed
						completed++
					case !foundCurrent:
						s.State = Current
						foundCurrent = true
						ch.HasCurrent = true
						currentModule, currentChapter = m.Number, key
					}
				}
				ch.Segments = append(ch.Segments, s)
			}
			ch.AllCompleted = mapped > 0 && completed == mapped
			if !ch.Active && in.ChapterComplete != nil && in.ChapterComplete(key) {
				ch.AllCompleted = true
			}
			mod.Chapters = append(mod.Chapters, ch)
		}
		tree.Modules = append(tree.Modules, mod)
	}

	if !n.initialized && foundCurrent {
		n.modules[currentModule] = true
		n.chapters[currentChapter] = true
		n.initialized = true
	}

	for mi := range tree.Modules {
		mod := &tree.Modules[mi]
		mod.Expanded = n.modules[mod.Number]
		all := len(mod.Chapters) > 0
		for ci := range mod.Chapters {
			ch := &mod.Chapters[ci]
			ch.Expanded = n.chapters[ch.Key]
			if ch.HasCurrent {
				mod.CurrentModule = true
			}
			if !ch.AllCompleted || ch.HasCurrent {
				all = false
			}
		}
		mod.AllCompleted = all
	}
	return tree
}

// ToggleModule flips a module's expansion.
func (n *Navigator) ToggleModule(module int) {
	n.modules[module] = !n.modules[module]
}

// ToggleChapter flips a chapter's expansion.
func (n *Navigator) ToggleChapter(key string) {
	n.chapters[key] = !n.chapters[key]
}

// TargetKind says what activating a row loads.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetHotspot
	TargetChapter
)

// Target is the result of activating a row.
type Target struct {
	Kind       TargetKind
	HotspotID  string
	ChapterKey string
}

// ActivateSegment opens a mapped, unlocked segment's hotspot.
func (t Tree) ActivateSegment(key string, number int) Target {
	for _, m := range t.Modules {
		for _, c := range m.Chapters {
			if c.Key != key || number < 1 || number > len(c.Segments) {
				continue
			}
			s := c.Segments[number-1]
			if s.Mapped() && s.State != Locked {
				return Target{Kind: TargetHotspot, HotspotID: s.HotspotID, ChapterKey: key}
			}
		}
	}
	return Target{}
}

// ActivateChapter expands the chapter and loads it.
func (n *Navigator) ActivateChapter(key string) Target {
	n.chapters[key] = true
	return Target{Kind: TargetChapter, ChapterKey: key}
}

// ActivateModule expands the module, collapses the others and loads the
// module's most recently worked chapter.
func (n *Navigator) ActivateModule(module int, mostRecent func(module int) int) Target {
	for m := range n.modules {
		n.modules[m] = false
	}
	n.modules[module] = true
	chapter := 1
	if mostRecent != nil {
		chapter = mostRecent(module)
	}
	return Target{Kind: TargetChapter, ChapterKey: curriculum.Key(module, chapter)}
}
