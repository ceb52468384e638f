// Package overview lists every chapter with its remote progress and jumps
// the stage to the chosen one.
package overview

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/router"
	"github.com/abhisek/ggtrain/internal/screen"
	"github.com/abhisek/ggtrain/internal/ui/components"
	"github.com/abhisek/ggtrain/internal/ui/layout"
	"github.com/abhisek/ggtrain/internal/ui/theme"
)

// Catalog is what the overview reads from the progress service.
type Catalog interface {
	Curriculum() *curriculum.Curriculum
	Chapters() []api.Chapter
	CurrentKey() string
	Overall() api.Overall
	Status() api.AuthStatus
}

type line struct {
	module  *curriculum.Module
	key     string
	name    string
	prog    api.ChapterProgress
	loaded  bool
	current bool
}

// OverviewScreen is pushed over the stage.
type OverviewScreen struct {
	catalog Catalog
	lines   []line
	cursor  int
}

var _ screen.Screen = (*OverviewScreen)(nil)
var _ screen.KeyHintProvider = (*OverviewScreen)(nil)
var _ screen.StatusProvider = (*OverviewScreen)(nil)

func New(catalog Catalog) *OverviewScreen {
	o := &OverviewScreen{catalog: catalog}
	o.build()
	return o
}

func (o *OverviewScreen) build() {
	cur := o.catalog.Curriculum()
	byKey := make(map[string]api.Chapter)
	for _, ch := range o.catalog.Chapters() {
		byKey[ch.Key] = ch
	}
	current := o.catalog.CurrentKey()

	o.lines = o.lines[:0]
	for mi := range cur.Modules {
		m := &cur.Modules[mi]
		o.lines = append(o.lines, line{module: m})
		for _, c := range m.Chapters {
			key := c.Key()
			ch, ok := byKey[key]
			l := line{key: key, name: c.Name, prog: ch.Progress, loaded: ok, current: key == current}
			if ok && ch.Doc != nil && ch.Doc.Title != "" {
				l.name = ch.Doc.Title
			}
			if l.current {
				o.cursor = len(o.lines)
			}
			o.lines = append(o.lines, l)
		}
	}
	if o.cursor == 0 {
		o.move(1)
	}
}

func (o *OverviewScreen) Init() tea.Cmd { return nil }

func (o *OverviewScreen) Title() string { return "Training overview" }

func (o *OverviewScreen) HeaderStatus() string {
	return fmt.Sprintf("%d%%  %s", o.catalog.Overall().Percent, o.catalog.Status())
}

func (o *OverviewScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Open chapter"},
		{Key: "Esc", Description: "Back"},
	}
}

// Selected returns the chapter key under the cursor.
func (o *OverviewScreen) Selected() string {
	if o.cursor < 0 || o.cursor >= len(o.lines) {
		return ""
	}
	return o.lines[o.cursor].key
}

// move steps the cursor over chapter lines, skipping module headings and
// chapters missing from the catalog.
func (o *OverviewScreen) move(d int) {
	for i := o.cursor + d; i >= 0 && i < len(o.lines); i += d {
		if l := o.lines[i]; l.module == nil && l.loaded {
			o.cursor = i
			return
		}
	}
}

func (o *OverviewScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return o, nil
	}
	switch kmsg.String() {
	case "up", "k":
		o.move(-1)
	case "down", "j":
		o.move(1)
	case "enter":
		key := o.Selected()
		if key == "" {
			return o, nil
		}
		return o, tea.Sequence(
			func() tea.Msg { return router.PopScreenMsg{} },
			func() tea.Msg { return screen.LoadChapterMsg{Key: key} },
		)
	}
	return o, nil
}

func (o *OverviewScreen) View(width, height int) string {
	inner := min(width-4, 96)
	overall := o.catalog.Overall()

	var lines []string
	bar := components.NewProgressBar("Overall", float64(overall.Percent)/100, true, inner)
	lines = append(lines, bar.View(), "")

	for i, l := range o.lines {
		if l.module != nil {
			lines = append(lines, theme.Subtitle.Render(l.module.Name))
			continue
		}
		lines = append(lines, o.renderChapter(l, i == o.cursor, inner))
	}

	// Keep the cursor line in view.
	visible := max(height-2, 1)
	start := 0
	if o.cursor+2 >= visible {
		start = o.cursor + 2 - visible + 1
	}
	end := min(start+visible, len(lines))
	body := strings.Join(lines[min(start, end):end], "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Top, body)
}

func (o *OverviewScreen) renderChapter(l line, cursor bool, width int) string {
	var state string
	switch {
	case !l.loaded:
		state = "unavailable"
	case l.prog.IsComplete():
		state = "✓ complete"
	case l.prog.CurrentSegment > 0:
		state = fmt.Sprintf("%d/%d segments", l.prog.CurrentSegment, l.prog.TotalSegments)
	default:
		state = "not started"
	}

	marker := "  "
	if l.current {
		marker = "▶ "
	}
	name := marker + l.name
	gap := max(width-lipgloss.Width(name)-lipgloss.Width(state), 1)
	text := name + strings.Repeat(" ", gap) + state

	style := theme.Body
	switch {
	case cursor:
		style = theme.Selected
	case !l.loaded:
		style = theme.Locked
	case l.prog.IsComplete():
		style = theme.Done
	case l.current:
		style = theme.Current
	}
	return style.Render(text)
}
