package curriculum

import "testing"

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Host & Guest Plan ": "host  guest plan",
		"Intro!":               "intro",
		"CO Detectors":         "co detectors",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatch_ExactBeatsSubstring(t *testing.T) {
	segments := []string{"Exit", "Exit Signage"}
	candidates := []Candidate{
		{ID: "h1", Title: "Exit Signage"},
		{ID: "h2", Title: "Exit"},
	}
	got := Match(segments, candidates)
	if got[0] != "h2" || got[1] != "h1" {
		t.Errorf("Match = %v, want [h2 h1]", got)
	}
}

func TestMatch_NormalizedEquality(t *testing.T) {
	got := Match([]string{"Host & Guest Plan"}, []Candidate{
		{ID: "a", Title: "Host and Guest Plan overview"},
		{ID: "b", Title: "host & guest plan"},
	})
	if got[0] != "b" {
		t.Errorf("Match = %v, want [b]", got)
	}
}

func TestMatch_SubstringEitherDirection(t *testing.T) {
	got := Match(
		[]string{"Fire Ladders", "Flashlights Overview"},
		[]Candidate{
			{ID: "x", Title: "Flashlights"},
			{ID: "y", Title: "Fire Ladders and Escape"},
		},
	)
	if got[0] != "y" || got[1] != "x" {
		t.Errorf("Match = %v, want [y x]", got)
	}
}

func TestMatch_EachCandidateClaimedOnce(t *testing.T) {
	got := Match(
		[]string{"Intro", "Intro"},
		[]Candidate{{ID: "only", Title: "Intro"}},
	)
	if got[0] != "only" || got[1] != "" {
		t.Errorf("Match = %v, want [only \"\"]", got)
	}
}

func TestMatch_EmptyTitlesNeverMatch(t *testing.T) {
	got := Match([]string{"Closing"}, []Candidate{{ID: "blank", Title: "!!"}})
	if got[0] != "" {
		t.Errorf("Match = %v, want unmapped", got)
	}
}
