package chapter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/transcript"
)

// DefaultTitle is shown when narration text carries no bracketed title.
const DefaultTitle = "Narration"

var titlePattern = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*\n?([\s\S]*)$`)

// TitleAndBody splits "[Title]\nbody" narration text.
func TitleAndBody(text string) (title, body string) {
	m := titlePattern.FindStringSubmatch(text)
	if m == nil {
		return DefaultTitle, text
	}
	return m[1], strings.TrimLeftFunc(m[2], unicode.IsSpace)
}

// Narration returns the hotspot's narration text, content first.
func (h Hotspot) Narration() string {
	if h.Content != "" {
		return h.Content
	}
	return h.Text
}

// Title returns the bracketed title of the narration, or the label when
// the narration has none. Used to map curriculum segment names.
func (h Hotspot) Title() string {
	if m := titlePattern.FindStringSubmatch(h.Narration()); m != nil {
		return m[1]
	}
	if h.Label != nil {
		return *h.Label
	}
	return ""
}

// IsDone reports whether the hotspot is flagged as the chapter's final one.
func (h Hotspot) IsDone() bool {
	return strings.EqualFold(h.Order, "done")
}

// Window returns the playback window of hotspot i in seconds. A missing
// tcEnd runs to the next hotspot's tcStart, or one frame past the start
// for the last hotspot.
func (d *Doc) Window(i, fps int) (start, end float64) {
	if i < 0 || i >= len(d.Hotspots) {
		return 0, 0
	}
	if fps <= 0 {
		fps = transcript.DefaultFPS
	}
	h := d.Hotspots[i]
	start = transcript.ToSeconds(h.TCStart, fps)
	switch {
	case h.TCEnd != "":
		end = transcript.ToSeconds(h.TCEnd, fps)
	case i+1 < len(d.Hotspots) && d.Hotspots[i+1].TCStart != "":
		end = transcript.ToSeconds(d.Hotspots[i+1].TCStart, fps)
	default:
		end = start + 1/float64(fps)
	}
	if end < start {
		end = start
	}
	return start, end
}

// Dock is the side a pill button is anchored to.
type Dock string

const (
	DockLeft  Dock = "left"
	DockRight Dock = "right"
)

// Placement is how a hotspot is drawn over the background: either a docked
// pill button or a shaped region positioned in canvas percentages.
type Placement struct {
	Pill  bool
	Label string
	Dock  Dock

	Shape                    string
	Left, Top, Width, Height float64
}

// Placement classifies hotspot i. It depends only on the hotspot's position
// and flags, never on the rendered size.
func (d *Doc) Placement(i int) Placement {
	h := d.Hotspots[i]
	switch {
	case i == 0:
		return Placement{Pill: true, Label: "Start", Dock: DockLeft}
	case h.IsDone():
		return Placement{Pill: true, Label: labelOr(h, "Done"), Dock: DockRight}
	case h.Type == "pill":
		fallback := h.Text
		if fallback == "" {
			fallback = "Action"
		}
		dock := DockRight
		if strings.EqualFold(h.Dock, "left") {
			dock = DockLeft
		}
		return Placement{Pill: true, Label: labelOr(h, fallback), Dock: dock}
	}

	c := d.Canvas()
	shape := h.Type
	if shape == "" {
		shape = "circle"
	}
	return Placement{
		Shape:  shape,
		Left:   h.CenterX / c.Width * 100,
		Top:    h.CenterY / c.Height * 100,
		Width:  h.Width / c.Width * 100,
		Height: h.Height / c.Height * 100,
	}
}

func labelOr(h Hotspot, fallback string) string {
	if h.Label != nil {
		return *h.Label
	}
	return fallback
}

// MediaMode is the viewer's media treatment for a hotspot. Exactly one mode
// applies per hotspot.
type MediaMode int

const (
	MediaNone MediaMode = iota
	MediaImage
	MediaLoop
	MediaAlternate
)

func (m MediaMode) String() string {
	switch m {
	case MediaImage:
		return "image"
	case MediaLoop:
		return "loop"
	case MediaAlternate:
		return "alternate"
	default:
		return "none"
	}
}

// Media returns the media mode and its source paths (unresolved).
func (h Hotspot) Media() (MediaMode, []string) {
	if len(h.Video) >= 2 {
		return MediaAlternate, []string(h.Video[:2])
	}
	if len(h.Video) == 1 {
		return MediaLoop, []string(h.Video)
	}
	if h.ContentMedia != nil && h.ContentMedia.Src != "" {
		switch h.ContentMedia.Type {
		case "video":
			return MediaLoop, []string{h.ContentMedia.Src}
		case "image":
			return MediaImage, []string{h.ContentMedia.Src}
		}
	}
	return MediaNone, nil
}

// SizeClass is "large" when the viewer shows media, else "small".
func (h Hotspot) SizeClass() string {
	if mode, _ := h.Media(); mode != MediaNone {
		return "large"
	}
	return "small"
}

// Candidates returns the hotspots as curriculum match candidates.
func (d *Doc) Candidates() []curriculum.Candidate {
	out := make([]curriculum.Candidate, len(d.Hotspots))
	for i, h := range d.Hotspots {
		out[i] = curriculum.Candidate{ID: h.ID, Title: h.Title()}
	}
	return out
}

// SegmentCount returns the number of segments in the chapter: the
// curriculum timing table first, then the document's own lists.
func SegmentCount(cur *curriculum.Curriculum, key string, d *Doc) int {
	if cur != nil {
		if n := len(cur.Durations(key)); n > 0 {
			return n
		}
	}
	if d == nil {
		return 0
	}
	switch {
	case len(d.Content) > 0:
		return len(d.Content)
	case len(d.Segments) > 0:
		return len(d.Segments)
	default:
		return len(d.Hotspots)
	}
}
