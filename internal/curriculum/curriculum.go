package curriculum

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed curriculum.yaml
var embedded []byte

// Segment is one narrated unit of a chapter.
type Segment struct {
	Name    string `yaml:"name"`
	Seconds int    `yaml:"seconds"`
}

// Chapter is an ordered list of segments inside a module.
type Chapter struct {
	Number   int       `yaml:"number"`
	Name     string    `yaml:"name"`
	Segments []Segment `yaml:"segments"`

	// Module is the owning module number, filled in on load.
	Module int `yaml:"-"`
}

// Key returns the chapter key, e.g. "2-1".
func (c Chapter) Key() string {
	return Key(c.Module, c.Number)
}

// ID returns the sidebar identifier, e.g. "chapter-2-1".
func (c Chapter) ID() string {
	return fmt.Sprintf("chapter-%d-%d", c.Module, c.Number)
}

// Module is a named group of chapters.
type Module struct {
	Number   int       `yaml:"number"`
	Name     string    `yaml:"name"`
	Chapters []Chapter `yaml:"chapters"`
}

// ID returns the sidebar identifier, e.g. "module-2".
func (m Module) ID() string {
	return ModuleID(m.Number)
}

// Curriculum is the static module/chapter/segment structure. It defines
// display order and the chapter sequence; chapter content lives elsewhere.
type Curriculum struct {
	Modules []Module `yaml:"modules"`

	keys  []string
	byKey map[string]*Chapter
}

var (
	defaultOnce sync.Once
	defaultCur  *Curriculum
)

// Default returns the built-in curriculum.
func Default() *Curriculum {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("embedded curriculum: %v", err))
		}
		defaultCur = c
	})
	return defaultCur
}

// LoadFile reads a curriculum override with the same YAML shape as the
// built-in table.
func LoadFile(path string) (*Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum: %w", err)
	}
	return Parse(data)
}

// Parse decodes and indexes a curriculum document.
func Parse(data []byte) (*Curriculum, error) {
	var c Curriculum
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode curriculum: %w", err)
	}
	if len(c.Modules) == 0 {
		return nil, fmt.Errorf("curriculum has no modules")
	}

	c.byKey = make(map[string]*Chapter)
	for mi := range c.Modules {
		m := &c.Modules[mi]
		for ci := range m.Chapters {
			ch := &m.Chapters[ci]
			ch.Module = m.Number
			key := ch.Key()
			if _, dup := c.byKey[key]; dup {
				return nil, fmt.Errorf("duplicate chapter %s", key)
			}
			c.byKey[key] = ch
			c.keys = append(c.keys, key)
		}
	}
	return &c, nil
}

// Keys returns every chapter key in curriculum order.
func (c *Curriculum) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Chapter looks up a chapter by key.
func (c *Curriculum) Chapter(key string) (*Chapter, bool) {
	ch, ok := c.byKey[key]
	return ch, ok
}

// Module looks up a module by number.
func (c *Curriculum) Module(number int) (*Module, bool) {
	for i := range c.Modules {
		if c.Modules[i].Number == number {
			return &c.Modules[i], true
		}
	}
	return nil, false
}

// Index returns the position of key in the chapter sequence, or -1.
func (c *Curriculum) Index(key string) int {
	for i, k := range c.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// First returns the first chapter key.
func (c *Curriculum) First() string {
	if len(c.keys) == 0 {
		return ""
	}
	return c.keys[0]
}

// Next returns the chapter following key.
func (c *Curriculum) Next(key string) (string, bool) {
	i := c.Index(key)
	if i < 0 || i >= len(c.keys)-1 {
		return "", false
	}
	return c.keys[i+1], true
}

// IsFinal reports whether key is the last chapter of the curriculum.
func (c *Curriculum) IsFinal(key string) bool {
	i := c.Index(key)
	return i >= 0 && i == len(c.keys)-1
}

// SegmentNames returns the display names of a chapter's segments.
func (c *Curriculum) SegmentNames(key string) []string {
	ch, ok := c.byKey[key]
	if !ok {
		return nil
	}
	names := make([]string, len(ch.Segments))
	for i, s := range ch.Segments {
		names[i] = s.Name
	}
	return names
}

// Durations returns the per-segment narration lengths in seconds.
func (c *Curriculum) Durations(key string) []int {
	ch, ok := c.byKey[key]
	if !ok {
		return nil
	}
	out := make([]int, len(ch.Segments))
	for i, s := range ch.Segments {
		out[i] = s.Seconds
	}
	return out
}

// Total returns the narration length of a chapter in seconds.
func (c *Curriculum) Total(key string) int {
	total := 0
	for _, d := range c.Durations(key) {
		total += d
	}
	return total
}

// TotalSeconds returns the narration length of the whole curriculum.
func (c *Curriculum) TotalSeconds() int {
	total := 0
	for _, k := range c.keys {
		total += c.Total(k)
	}
	return total
}

// Key formats a chapter key from 1-based module and chapter numbers.
func Key(module, chapter int) string {
	return strconv.Itoa(module) + "-" + strconv.Itoa(chapter)
}

// ModuleID formats a module identifier.
func ModuleID(module int) string {
	return "module-" + strconv.Itoa(module)
}

var (
	keyPattern       = regexp.MustCompile(`(\d+)-(\d+)`)
	chapterIDPattern = regexp.MustCompile(`^chapter-(\d+)-(\d+)$`)
)

// ParseKey splits a chapter key into its module number and 0-based chapter
// index, the addressing the progress API uses.
func ParseKey(key string) (module, chapter int, ok bool) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, false
	}
	module, _ = strconv.Atoi(m[1])
	c, _ := strconv.Atoi(m[2])
	return module, c - 1, true
}

// KeyFromChapterID converts "chapter-2-1" to "2-1".
func KeyFromChapterID(id string) (string, bool) {
	m := chapterIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2], true
}

// ChapterID converts "2-1" to "chapter-2-1".
func ChapterID(key string) string {
	return "chapter-" + key
}
