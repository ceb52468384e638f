package transcript

import (
	"regexp"
	"strings"
)

// Caption is one timed line of narration text.
type Caption struct {
	Start float64
	End   float64
	Text  string
}

var (
	rangeLine  = regexp.MustCompile(`^\d{2};\d{2};\d{2};\d{2}\s*-\s*\d{2};\d{2};\d{2};\d{2}$`)
	rangeStart = regexp.MustCompile(`^\d{2};\d{2};\d{2};\d{2}\s*-`)
)

// Parse reads a timecoded transcript. Each caption begins with a line of the
// form "00;00;01;15 - 00;00;04;02" followed by one or more text lines, which
// are joined with single spaces. Captions without text are dropped and lines
// outside a caption block are ignored.
func Parse(text string, fps int) []Caption {
	lines := strings.Split(text, "\n")
	var captions []Caption

	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		if !rangeLine.MatchString(line) {
			i++
			continue
		}

		bounds := strings.SplitN(line, "-", 2)
		start := ToSeconds(strings.TrimSpace(bounds[0]), fps)
		end := ToSeconds(strings.TrimSpace(bounds[1]), fps)
		i++

		var parts []string
		for i < len(lines) && !rangeStart.MatchString(lines[i]) {
			if t := strings.TrimSpace(lines[i]); t != "" {
				parts = append(parts, t)
			}
			i++
		}

		if len(parts) > 0 {
			captions = append(captions, Caption{Start: start, End: end, Text: strings.Join(parts, " ")})
		}
	}

	return captions
}

// Window returns the captions to show at time now for a segment spanning
// [start, end]: of the captions fully inside the segment that have already
// started, the last two, oldest first. The final element is the current line.
func Window(captions []Caption, start, end, now float64) []Caption {
	var started []Caption
	for _, c := range captions {
		if c.Start < start || c.End > end {
			continue
		}
		if now >= c.Start {
			started = append(started, c)
		}
	}
	if len(started) > 2 {
		started = started[len(started)-2:]
	}
	return started
}
