package stage

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/media"
	"github.com/abhisek/ggtrain/internal/sidebar"
	"github.com/abhisek/ggtrain/internal/training"
	"github.com/abhisek/ggtrain/internal/transcript"
	"github.com/abhisek/ggtrain/internal/ui/components"
	"github.com/abhisek/ggtrain/internal/ui/layout"
	"github.com/abhisek/ggtrain/internal/ui/theme"
)

func (s *StageScreen) KeyHints() []layout.KeyHint {
	if s.sess == nil {
		if s.loadErr != "" {
			return []layout.KeyHint{{Key: "r", Description: "Reload"}, {Key: "Ctrl+C", Description: "Quit"}}
		}
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	}
	if _, ok := s.sess.Decision(); ok {
		return []layout.KeyHint{{Key: "←→", Description: "Choose"}, {Key: "Enter", Description: "Confirm"}}
	}
	if s.sess.SyncDialog() {
		return []layout.KeyHint{{Key: "Enter", Description: "Choose"}, {Key: "R", Description: "Retry"}, {Key: "Esc", Description: "Cancel"}}
	}
	if _, _, _, ok := s.sess.ExampleShown(); ok {
		return []layout.KeyHint{{Key: "←→", Description: "Browse"}, {Key: "e", Description: "Close"}}
	}
	if s.focus == focusSidebar {
		return []layout.KeyHint{
			{Key: "↑↓", Description: "Move"},
			{Key: "Enter", Description: "Open"},
			{Key: "Space", Description: "Expand"},
			{Key: "s", Description: "Map"},
		}
	}
	hints := []layout.KeyHint{
		{Key: "←→", Description: "Select"},
		{Key: "Enter", Description: "Open"},
	}
	if s.sess.Viewer().Open {
		hints = append(hints,
			layout.KeyHint{Key: "Space", Description: "Play/Pause"},
			layout.KeyHint{Key: "r", Description: "Replay"},
			layout.KeyHint{Key: "x", Description: "Close"},
		)
	}
	if s.sess.SyncPending() {
		hints = append(hints, layout.KeyHint{Key: "R", Description: "Retry sync"})
	}
	hints = append(hints, layout.KeyHint{Key: "s", Description: "Sidebar"})
	if s.deps.Overview != nil {
		hints = append(hints, layout.KeyHint{Key: "o", Description: "Overview"})
	}
	return hints
}

// HeaderStatus shows overall progress and the auth state online, and the
// chapter count offline.
func (s *StageScreen) HeaderStatus() string {
	if s.deps.online() {
		o := s.deps.Catalog.Overall()
		return fmt.Sprintf("%d%%  %s", o.Percent, s.deps.Catalog.Status())
	}
	if s.sess == nil {
		return "Offline"
	}
	return fmt.Sprintf("Offline  %d/%d segments", s.sess.DoneCount(), len(s.sess.Doc().Hotspots))
}

func (s *StageScreen) View(width, height int) string {
	if s.sess == nil {
		msg := "Loading chapter " + s.key + "…"
		style := theme.Subtitle
		if s.loadErr != "" {
			msg = "Could not load chapter " + s.key + "\n\n" + s.loadErr + "\n\nPress r to retry."
			style = theme.ErrorText
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, style.Render(msg))
	}

	mainWidth := width
	var side string
	if s.deps.Curriculum != nil && !layout.IsCompactWidth(width) {
		side = components.Panel(s.renderSidebar(layout.SidebarWidth-4, height-2), layout.SidebarWidth, height, s.focus == focusSidebar)
		mainWidth = width - layout.SidebarWidth
	} else if s.focus == focusSidebar {
		return components.Panel(s.renderSidebar(width-4, height-2), width, height, true)
	}

	main := s.renderMain(mainWidth, height)
	if side == "" {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, side, main)
}

func (s *StageScreen) renderMain(width, height int) string {
	if d, ok := s.sess.Decision(); ok {
		return s.renderDecision(d, width, height)
	}
	if s.sess.SyncDialog() {
		return components.Modal(
			"Progress not saved",
			"Your progress could not be saved after several attempts.\nRetry to continue, or cancel and retry later with R.",
			s.choice.View(), width, height)
	}
	if src, i, n, ok := s.sess.ExampleShown(); ok {
		body := fmt.Sprintf("%s\n\n%d of %d", src, i+1, n)
		return components.Modal("Real-life example", body, theme.Hint.Render("← prev   next →   e close"), width, height)
	}

	v := s.sess.Viewer()
	viewerHeight := 0
	if v.Open {
		viewerHeight = 7
		if v.SizeClass == "large" {
			viewerHeight = 10
		}
		viewerHeight = min(viewerHeight, height/2)
	}
	statusLine := s.renderStatusLine(width)
	mapHeight := height - viewerHeight - lipgloss.Height(statusLine)

	parts := []string{components.Panel(s.renderMap(width-4, mapHeight-2), width, mapHeight, s.focus == focusMap && !v.Open)}
	if v.Open {
		parts = append(parts, components.Panel(s.renderViewer(v, width-4), width, viewerHeight, true))
	}
	parts = append(parts, statusLine)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (s *StageScreen) renderStatusLine(width int) string {
	text := s.status
	if s.done {
		text = "Training complete. Every chapter is done."
	}
	if text == "" {
		n := len(s.sess.Doc().Hotspots)
		text = fmt.Sprintf("%d of %d segments complete", s.sess.DoneCount(), n)
	}
	return theme.Hint.Width(width).Render(" " + text)
}

func (s *StageScreen) renderDecision(d training.ChapterComplete, width, height int) string {
	if d.Final {
		return components.Modal("Training complete!",
			"You have completed "+d.CurrentTitle+" and the whole training.",
			s.choice.View(), width, height)
	}
	return components.Modal("Chapter complete!",
		"You have completed "+d.CurrentTitle+".\nStay here to review, or continue to "+d.NextTitle+".",
		s.choice.View(), width, height)
}

type mark struct {
	col  int
	text string
}

// renderMap draws the background caption, docked pills and the region
// markers placed by canvas percentage.
func (s *StageScreen) renderMap(width, height int) string {
	doc := s.sess.Doc()
	states := s.sess.States()
	if width < 10 || height < 3 {
		return ""
	}

	bg := doc.BackgroundImage
	if bg != "" {
		bg = path.Base(s.deps.resolve(bg))
	}
	header := theme.Subtitle.Render(truncate("Map: "+bg, width))

	var left, right []string
	rows := make(map[int][]mark)
	gridH := max(height-1, 1)

	for i := range doc.Hotspots {
		p := doc.Placement(i)
		st := states[i]
		if p.Pill {
			pill := s.styleMarker(i, st, "["+p.Label+"]")
			if p.Dock == chapter.DockLeft {
				left = append(left, pill)
			} else {
				right = append(right, pill)
			}
			continue
		}
		col := int(p.Left / 100 * float64(width-1))
		row := int(p.Top / 100 * float64(gridH-1))
		col = min(max(col, 0), width-4)
		row = min(max(row, 0), gridH-1)
		rows[row] = append(rows[row], mark{col: col, text: s.styleMarker(i, st, glyph(p.Shape, st)+strconv.Itoa(i+1))})
	}

	// Pills sit on the first grid line, left and right docked.
	if len(left) > 0 || len(right) > 0 {
		l := strings.Join(left, " ")
		r := strings.Join(right, " ")
		gap := max(width-lipgloss.Width(l)-lipgloss.Width(r), 1)
		rows[-1] = []mark{{col: 0, text: l + strings.Repeat(" ", gap) + r}}
	}

	lines := []string{header}
	if m, ok := rows[-1]; ok {
		lines = append(lines, m[0].text)
		gridH--
	}
	for y := 0; y < gridH; y++ {
		lines = append(lines, renderRow(rows[y], width))
	}
	return strings.Join(lines, "\n")
}

func renderRow(marks []mark, width int) string {
	if len(marks) == 0 {
		return ""
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].col < marks[j].col })
	var b strings.Builder
	pos := 0
	for _, m := range marks {
		if m.col < pos {
			m.col = pos + 1
		}
		b.WriteString(strings.Repeat(" ", m.col-pos))
		b.WriteString(m.text)
		pos = m.col + lipgloss.Width(m.text)
		if pos >= width {
			break
		}
	}
	return b.String()
}

func glyph(shape string, st training.State) string {
	switch {
	case st == training.Done:
		return "✓"
	case shape == "rect":
		return "■"
	default:
		return "●"
	}
}

func (s *StageScreen) styleMarker(i int, st training.State, text string) string {
	if i == s.selected && s.focus == focusMap {
		return theme.Selected.Render(text)
	}
	switch st {
	case training.Done:
		return theme.Done.Render(text)
	case training.Clickable:
		return theme.Clickable.Render(text)
	default:
		return theme.Locked.Render(text)
	}
}

func (s *StageScreen) renderViewer(v training.ViewerState, width int) string {
	var lines []string

	status := v.Status.String()
	switch {
	case v.Opening:
		status = "Opening…"
	case v.Status == training.StatusPlaying:
		status = theme.Playing.Render("▶ " + status)
	case v.Status == training.StatusPaused:
		status = theme.Paused.Render("❚❚ " + status)
	}
	title := theme.Title.Render(truncate(v.Title, width-lipgloss.Width(status)-2))
	gap := max(width-lipgloss.Width(title)-lipgloss.Width(status), 1)
	lines = append(lines, title+strings.Repeat(" ", gap)+status)

	switch {
	case v.HasTranscript:
		lines = append(lines, renderCaptions(v.Captions, width)...)
	case v.Body != "":
		lines = append(lines, theme.Body.Width(width).Render(v.Body))
	}

	if m := renderDeck(v.Deck); m != "" {
		lines = append(lines, theme.Subtitle.Render(truncate(m, width)))
	}
	if len(v.Examples) > 0 {
		lines = append(lines, theme.Hint.Render(fmt.Sprintf("%d real-life examples (e)", len(v.Examples))))
	}

	bar := components.ProgressBar{
		Percent: v.Elapsed / v.Total,
		Suffix:  transcript.FormatClock(v.Elapsed) + " / " + transcript.FormatClock(v.Total),
		Width:   width,
	}
	lines = append(lines, bar.View())
	return strings.Join(lines, "\n")
}

// renderCaptions shows the previous caption dimmed above the current one.
func renderCaptions(caps []transcript.Caption, width int) []string {
	out := make([]string, 0, 2)
	switch len(caps) {
	case 0:
		return []string{"", ""}
	case 1:
		out = append(out, "")
	default:
		out = append(out, theme.CaptionPrevious.Render(truncate(caps[len(caps)-2].Text, width)))
	}
	return append(out, theme.CaptionCurrent.Render(truncate(caps[len(caps)-1].Text, width)))
}

func renderDeck(d media.DeckState) string {
	switch d.Mode {
	case chapter.MediaImage:
		return "Image: " + path.Base(d.Source)
	case chapter.MediaLoop:
		fade := ""
		if d.Fading {
			fade = fmt.Sprintf("  crossfade %.0f%%", d.Opacity[1-d.Front]*100)
		}
		return fmt.Sprintf("Video (loop): %s  deck %c%s", path.Base(d.Source), 'A'+rune(d.Front), fade)
	case chapter.MediaAlternate:
		return fmt.Sprintf("Video (alternating): %s  deck %c", path.Base(d.Source), 'A'+rune(d.Front))
	}
	return ""
}

func (s *StageScreen) renderSidebar(width, height int) string {
	if len(s.rows) == 0 {
		return theme.Subtitle.Render("No curriculum")
	}

	start := 0
	if s.sideCursor >= height {
		start = s.sideCursor - height + 1
	}
	end := min(start+height, len(s.rows))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, s.renderRow(s.rows[i], i == s.sideCursor && s.focus == focusSidebar, width))
	}
	return strings.Join(lines, "\n")
}

func (s *StageScreen) renderRow(r sidebar.Row, cursor bool, width int) string {
	indent := strings.Repeat("  ", r.Depth)
	var icon string
	switch r.Kind {
	case sidebar.RowModule, sidebar.RowChapter:
		icon = "▸ "
		if r.Expanded {
			icon = "▾ "
		}
	default:
		switch {
		case r.Completed:
			icon = "✓ "
		case r.Highlight:
			icon = "▶ "
		default:
			icon = "· "
		}
	}
	text := truncate(indent+icon+r.Label, width)

	style := theme.Body
	switch {
	case cursor:
		style = theme.Selected
	case r.Highlight:
		style = theme.Current
	case r.Completed:
		style = theme.Done
	case r.Locked:
		style = theme.Locked
	}
	return style.Render(text)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
