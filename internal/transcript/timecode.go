package transcript

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultFPS is the frame rate transcript and hotspot timecodes are authored at.
const DefaultFPS = 30

var tcSeparator = regexp.MustCompile(`[;:]`)

// ToSeconds converts an HH;MM;SS;FF (or HH:MM:SS:FF) timecode to seconds.
// Missing or malformed fields count as zero.
func ToSeconds(tc string, fps int) float64 {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if tc == "" {
		return 0
	}

	var fields [4]int
	for i, part := range tcSeparator.Split(tc, -1) {
		if i >= len(fields) {
			break
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			n = leadingInt(part)
		}
		fields[i] = n
	}

	hh, mm, ss, ff := fields[0], fields[1], fields[2], fields[3]
	return float64(hh*3600+mm*60+ss) + float64(ff)/float64(fps)
}

// leadingInt parses the digits at the start of s, matching lenient
// integer parsing of hand-typed timecodes like "05 ".
func leadingInt(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' && n == 0 {
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
