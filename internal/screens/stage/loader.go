package stage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/assets"
	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/config"
	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/media"
	"github.com/abhisek/ggtrain/internal/progress"
	"github.com/abhisek/ggtrain/internal/screen"
	"github.com/abhisek/ggtrain/internal/store"
	"github.com/abhisek/ggtrain/internal/training"
	"github.com/abhisek/ggtrain/internal/transcript"
)

const loadTimeout = 20 * time.Second

// Catalog is the progress service the stage reports to. *api.Service
// implements it.
type Catalog interface {
	training.Reporter
	Chapter(key string) (api.Chapter, bool)
	SetCurrentKey(key string) error
	MoveToNextChapter() (string, error)
	ChapterComplete(key string) bool
	MostRecentChapterInModule(module int) int
	Overall() api.Overall
	Status() api.AuthStatus
}

// Content reads chapter documents and other content files.
type Content interface {
	api.ChapterSource
	FetchPath(ctx context.Context, p string) ([]byte, error)
}

// Deps is everything the stage needs. A nil Catalog runs offline on the
// local completion sets.
type Deps struct {
	Config     config.Config
	Curriculum *curriculum.Curriculum
	Content    Content
	Resolver   *assets.Resolver
	Catalog    Catalog
	Local      *progress.Local
	Events     store.EventRepo
	Prober     *media.Prober
	// Overview builds the chapter overview screen; nil disables it.
	Overview func() screen.Screen
	Logger   *zap.Logger
}

// loadedChapter is a chapter ready to become a session.
type loadedChapter struct {
	key      string
	doc      *chapter.Doc
	captions []transcript.Caption
	starting int
	audio    time.Duration
}

func (d Deps) online() bool { return d.Catalog != nil }

func (d Deps) load(ctx context.Context, key string) (loadedChapter, error) {
	out := loadedChapter{key: key}

	if d.online() {
		ch, ok := d.Catalog.Chapter(key)
		if !ok || ch.Doc == nil {
			return out, fmt.Errorf("%w: %s", api.ErrUnknownChapter, key)
		}
		out.doc = ch.Doc
		out.starting = ch.Progress.CurrentSegment
		if ch.Progress.IsComplete() {
			out.starting = len(ch.Doc.Hotspots)
		}
	} else {
		if d.Content == nil {
			return out, errors.New("no content source configured")
		}
		data, err := d.Content.Fetch(ctx, key)
		if err != nil {
			return out, err
		}
		doc, err := chapter.Parse(data)
		if err != nil {
			return out, fmt.Errorf("chapter %s: %w", key, err)
		}
		out.doc = doc
	}

	out.captions = d.captions(ctx, out.doc)
	out.audio = d.audioLength(out.doc)
	return out, nil
}

// captions loads the chapter transcript. Failures leave it empty.
func (d Deps) captions(ctx context.Context, doc *chapter.Doc) []transcript.Caption {
	if doc.TranscriptFile == "" || d.Content == nil {
		return nil
	}
	data, err := d.Content.FetchPath(ctx, doc.TranscriptFile)
	if err != nil {
		d.logger().Warn("transcript unavailable", zap.String("file", doc.TranscriptFile), zap.Error(err))
		return nil
	}
	return transcript.Parse(string(data), d.Config.Playback.FPS)
}

// audioLength probes a local narration track. A track shorter than the
// last hotspot window is ignored so every segment can still finish.
func (d Deps) audioLength(doc *chapter.Doc) time.Duration {
	if d.Prober == nil || d.Resolver == nil || doc.AudioFile == "" {
		return 0
	}
	p, ok := d.Resolver.Local(doc.AudioFile)
	if !ok {
		return 0
	}
	dur, err := d.Prober.Duration(p)
	if err != nil {
		d.logger().Warn("audio probe failed", zap.String("file", p), zap.Error(err))
		return 0
	}
	var last float64
	for i := range doc.Hotspots {
		_, end := doc.Window(i, d.Config.Playback.FPS)
		last = max(last, end)
	}
	if dur.Seconds() < last {
		d.logger().Warn("audio shorter than hotspot windows, ignoring its length",
			zap.Duration("audio", dur), zap.Float64("last_end", last))
		return 0
	}
	return dur
}

func (d Deps) resolve(p string) string {
	if d.Resolver == nil {
		return p
	}
	return d.Resolver.Resolve(p)
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// chapterTitle prefers the loaded document title over the curriculum name.
func (d Deps) chapterTitle(key string) string {
	if d.online() {
		if ch, ok := d.Catalog.Chapter(key); ok && ch.Doc != nil && ch.Doc.Title != "" {
			return ch.Doc.Title
		}
	}
	if d.Curriculum != nil {
		if c, ok := d.Curriculum.Chapter(key); ok {
			return c.Name
		}
	}
	return ""
}

// clipCache remembers probed video lengths.
type clipCache struct {
	mu       sync.Mutex
	deps     Deps
	fallback time.Duration
	lengths  map[string]time.Duration
}

func newClipCache(d Deps) *clipCache {
	fallback := time.Duration(d.Config.Media.DefaultClipSeconds * float64(time.Second))
	return &clipCache{deps: d, fallback: fallback, lengths: make(map[string]time.Duration)}
}

func (c *clipCache) length(src string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.lengths[src]; ok {
		return l
	}
	l := c.fallback
	if c.deps.Prober != nil && c.deps.Resolver != nil {
		if p, ok := c.deps.Resolver.Local(src); ok {
			if dur, err := c.deps.Prober.Duration(p); err == nil && dur > 0 {
				l = dur
			} else if err != nil {
				c.deps.logger().Debug("clip probe failed", zap.String("src", src), zap.Error(err))
			}
		}
	}
	c.lengths[src] = l
	return l
}
