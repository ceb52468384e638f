package curriculum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_ChapterOrder(t *testing.T) {
	want := []string{
		"1-1", "1-2", "1-3", "1-4", "1-5",
		"2-1", "2-2", "2-3",
		"3-1", "3-2",
		"4-1", "4-2",
		"5-1", "5-2", "5-3",
		"6-1",
	}
	got := Default().Keys()
	if len(got) != len(want) {
		t.Fatalf("got %d chapters, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTotals(t *testing.T) {
	c := Default()
	tests := []struct {
		key  string
		want int
	}{
		{"1-1", 150},
		{"1-2", 164},
		{"1-5", 205},
		{"2-2", 206},
		{"5-2", 113},
		{"6-1", 517},
		{"9-9", 0},
	}
	for _, tt := range tests {
		if got := c.Total(tt.key); got != tt.want {
			t.Errorf("Total(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
	if got := c.TotalSeconds(); got != 2881 {
		t.Errorf("TotalSeconds() = %d, want 2881", got)
	}
}

func TestSegmentNames(t *testing.T) {
	names := Default().SegmentNames("1-1")
	if len(names) != 7 {
		t.Fatalf("got %d names, want 7", len(names))
	}
	if names[0] != "Intro" || names[6] != "Closing" {
		t.Errorf("unexpected names: %v", names)
	}
	if Default().SegmentNames("0-0") != nil {
		t.Error("expected nil for unknown chapter")
	}
}

func TestNextAndFinal(t *testing.T) {
	c := Default()
	if next, ok := c.Next("1-5"); !ok || next != "2-1" {
		t.Errorf("Next(1-5) = %q, %v; want 2-1, true", next, ok)
	}
	if _, ok := c.Next("6-1"); ok {
		t.Error("Next(6-1) should report no next chapter")
	}
	if !c.IsFinal("6-1") {
		t.Error("6-1 should be final")
	}
	if c.IsFinal("1-1") || c.IsFinal("x") {
		t.Error("only 6-1 is final")
	}
	if c.First() != "1-1" {
		t.Errorf("First() = %q", c.First())
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key           string
		module, chap0 int
		ok            bool
	}{
		{"1-1", 1, 0, true},
		{"3-2", 3, 1, true},
		{"chapter-2-3", 2, 2, true},
		{"intro", 0, 0, false},
	}
	for _, tt := range tests {
		m, c, ok := ParseKey(tt.key)
		if m != tt.module || c != tt.chap0 || ok != tt.ok {
			t.Errorf("ParseKey(%q) = %d, %d, %v; want %d, %d, %v", tt.key, m, c, ok, tt.module, tt.chap0, tt.ok)
		}
	}
}

func TestChapterIDs(t *testing.T) {
	if got := ChapterID("2-1"); got != "chapter-2-1" {
		t.Errorf("ChapterID = %q", got)
	}
	if key, ok := KeyFromChapterID("chapter-4-2"); !ok || key != "4-2" {
		t.Errorf("KeyFromChapterID = %q, %v", key, ok)
	}
	if _, ok := KeyFromChapterID("module-4"); ok {
		t.Error("module id should not parse as chapter id")
	}
	if got := ModuleID(5); got != "module-5" {
		t.Errorf("ModuleID = %q", got)
	}
	ch, _ := Default().Chapter("3-2")
	if ch.Module != 3 || ch.ID() != "chapter-3-2" {
		t.Errorf("chapter 3-2 has module %d id %q", ch.Module, ch.ID())
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse([]byte("modules: []")); err == nil {
		t.Error("expected error for empty curriculum")
	}
	dup := `
modules:
  - number: 1
    chapters:
      - {number: 1, segments: []}
      - {number: 1, segments: []}
`
	if _, err := Parse([]byte(dup)); err == nil {
		t.Error("expected error for duplicate chapter")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	doc := `
modules:
  - number: 7
    name: Extra
    chapters:
      - number: 1
        name: Only
        segments:
          - {name: A, seconds: 4}
          - {name: B, seconds: 6}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Total("7-1") != 10 {
		t.Errorf("Total(7-1) = %d, want 10", c.Total("7-1"))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
