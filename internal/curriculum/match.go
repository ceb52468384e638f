package curriculum

import (
	"regexp"
	"strings"
)

// Candidate is a hotspot that a segment name can be mapped onto.
type Candidate struct {
	ID    string
	Title string
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Normalize lowercases, trims and strips punctuation for loose comparison.
func Normalize(s string) string {
	return nonWord.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), "")
}

// Match maps each segment name onto a candidate ID. The result is parallel
// to segments; an unmapped segment gets "".
//
// Matching runs in three passes over all segments so that a stronger match
// always wins over a weaker one: exact title, then normalized equality,
// then normalized substring in either direction. A candidate is claimed by
// at most one segment.
func Match(segments []string, candidates []Candidate) []string {
	out := make([]string, len(segments))
	claimed := make([]bool, len(candidates))

	normCand := make([]string, len(candidates))
	for i, c := range candidates {
		normCand[i] = Normalize(c.Title)
	}

	passes := []func(seg, segNorm string, i int) bool{
		func(seg, _ string, i int) bool {
			return candidates[i].Title == seg
		},
		func(_, segNorm string, i int) bool {
			return segNorm != "" && normCand[i] == segNorm
		},
		func(_, segNorm string, i int) bool {
			if segNorm == "" || normCand[i] == "" {
				return false
			}
			return strings.Contains(normCand[i], segNorm) || strings.Contains(segNorm, normCand[i])
		},
	}

	for _, pass := range passes {
		for si, seg := range segments {
			if out[si] != "" {
				continue
			}
			segNorm := Normalize(seg)
			for ci := range candidates {
				if claimed[ci] || !pass(seg, segNorm, ci) {
					continue
				}
				out[si] = candidates[ci].ID
				claimed[ci] = true
				break
			}
		}
	}
	return out
}
