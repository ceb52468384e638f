// Package api is the façade over the remote progress service: it owns the
// bearer session, the chapter catalog and the cross-chapter progress map.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/config"
	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/progress"
	"github.com/abhisek/ggtrain/internal/store"
)

// catalogConcurrency bounds parallel chapter document loads.
const catalogConcurrency = 4

// snapshotKeep is how many progress snapshots are retained locally.
const snapshotKeep = 10

// TokenStore persists the bearer session.
type TokenStore interface {
	Load(ctx context.Context) (progress.Tokens, error)
	Save(ctx context.Context, t progress.Tokens) error
	Clear(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	Config     config.Config
	HTTPClient *http.Client
	Tokens     TokenStore
	Source     ChapterSource
	Curriculum *curriculum.Curriculum
	Logger     *zap.Logger
	Metrics    *Metrics
	// Snapshots, when set, receives every progress document seen.
	Snapshots store.SnapshotRepo
	Now       func() time.Time
	Sleep     SleepFunc
}

// Service is constructed once per process and shared by the session,
// sidebar and screens. Its methods are safe for concurrent use.
type Service struct {
	baseURL string
	client  *http.Client
	tokens  TokenStore
	source  ChapterSource
	cur     *curriculum.Curriculum
	log     *zap.Logger
	metrics *Metrics
	snaps   store.SnapshotRepo
	now     func() time.Time
	retry   retryPolicy

	mu         sync.Mutex
	access     string
	refresh    string
	expiresAt  time.Time
	chapters   map[string]*Chapter
	server     TrainingProgress
	currentKey string
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		baseURL:  strings.TrimRight(opts.Config.API.BaseURL, "/"),
		client:   opts.HTTPClient,
		tokens:   opts.Tokens,
		source:   opts.Source,
		cur:      opts.Curriculum,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		snaps:    opts.Snapshots,
		now:      opts.Now,
		chapters: make(map[string]*Chapter),
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: opts.Config.API.Timeout}
	}
	if s.cur == nil {
		s.cur = curriculum.Default()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	s.retry = retryPolicy{
		attempts: opts.Config.Retry.Attempts,
		base:     opts.Config.Retry.BaseDelay,
		sleep:    sleep,
		log:      s.log,
	}
	return s
}

// Curriculum returns the curriculum the catalog follows.
func (s *Service) Curriculum() *curriculum.Curriculum {
	return s.cur
}

// Init restores or establishes the bearer session and, when one exists,
// loads the catalog and progress and picks the resume chapter.
//
// Priority: a stored unexpired token; a stored token of unknown expiry
// when no temp token is offered; the temp token; otherwise nothing.
func (s *Service) Init(ctx context.Context, tempToken string) error {
	if err := s.loadStoredAuth(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	access, expires := s.access, s.expiresAt
	s.mu.Unlock()
	now := s.now()

	switch {
	case access != "" && !expires.IsZero() && expires.After(now):
		s.log.Info("resuming stored session", zap.Time("expires_at", expires))
		return s.LoadAll(ctx)
	case access != "" && tempToken == "":
		s.log.Warn("stored token has unknown expiry, assuming valid")
		return s.LoadAll(ctx)
	case tempToken != "":
		return s.Authenticate(ctx, tempToken)
	default:
		s.log.Info("no authentication available")
		return nil
	}
}

func (s *Service) loadStoredAuth(ctx context.Context) error {
	if s.tokens == nil {
		return nil
	}
	t, err := s.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load stored auth: %w", err)
	}
	if t.Access == "" {
		return nil
	}
	if t.ExpiresAt.IsZero() {
		if exp, ok := ExpiryFromToken(t.Access); ok {
			t.ExpiresAt = exp
			if err := s.tokens.Save(ctx, t); err != nil {
				return fmt.Errorf("save derived expiry: %w", err)
			}
		}
	}
	if !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(s.now()) {
		s.log.Info("stored token expired, clearing", zap.Time("expires_at", t.ExpiresAt))
		return s.clearAuth(ctx)
	}

	s.mu.Lock()
	s.access, s.refresh, s.expiresAt = t.Access, t.Refresh, t.ExpiresAt
	s.mu.Unlock()
	return nil
}

// Authenticate exchanges a one-time token for a bearer session, persists
// it, then loads the catalog and progress.
func (s *Service) Authenticate(ctx context.Context, tempToken string) error {
	u := s.baseURL + "/api/training-auth?temp_token=" + url.QueryEscape(tempToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("token exchange failed", zap.Error(err))
		return fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := responseError("token exchange", resp)
		s.log.Error("token exchange rejected", zap.Int("status", herr.StatusCode), zap.String("error", herr.Message))
		return herr
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("token exchange: decode response: %w", err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("token exchange: response has no access_token")
	}

	if err := s.saveAuth(ctx, body); err != nil {
		return err
	}
	s.log.Info("authenticated", zap.Time("expires_at", s.Status().ExpiresAt))
	return s.LoadAll(ctx)
}

// saveAuth stores the session. Expiry comes from the server, else the
// token's exp claim, else one hour from now.
func (s *Service) saveAuth(ctx context.Context, body authResponse) error {
	expires, ok := parseServerTime(body.ExpiresAt)
	if !ok {
		if expires, ok = ExpiryFromToken(body.AccessToken); !ok {
			expires = s.now().Add(time.Hour)
			s.log.Warn("no token expiry available, assuming one hour")
		}
	}

	t := progress.Tokens{Access: body.AccessToken, Refresh: body.RefreshToken, ExpiresAt: expires}
	if s.tokens != nil {
		if err := s.tokens.Save(ctx, t); err != nil {
			return fmt.Errorf("save auth: %w", err)
		}
	}

	s.mu.Lock()
	s.access, s.refresh, s.expiresAt = t.Access, t.Refresh, t.ExpiresAt
	s.mu.Unlock()
	return nil
}

// Logout forgets the session and the in-memory catalog.
func (s *Service) Logout(ctx context.Context) error {
	return s.clearAuth(ctx)
}

func (s *Service) clearAuth(ctx context.Context) error {
	s.mu.Lock()
	s.access, s.refresh, s.expiresAt = "", "", time.Time{}
	s.chapters = make(map[string]*Chapter)
	s.server = TrainingProgress{}
	s.currentKey = ""
	s.mu.Unlock()

	if s.tokens == nil {
		return nil
	}
	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear auth: %w", err)
	}
	return nil
}

// Status reports the session state at the current time.
func (s *Service) Status() AuthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := AuthStatus{Authenticated: s.access != "", ExpiresAt: s.expiresAt}
	if st.Authenticated && !s.expiresAt.IsZero() {
		st.Remaining = s.expiresAt.Sub(s.now())
	}
	return st
}

// Authenticated reports whether a bearer token is held.
func (s *Service) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access != ""
}

// LoadAll loads the catalog, merges remote progress and picks the resume
// chapter. A failed progress fetch is logged and leaves default progress.
func (s *Service) LoadAll(ctx context.Context) error {
	if err := s.LoadCatalog(ctx); err != nil {
		return err
	}
	if err := s.FetchRemoteProgress(ctx); err != nil {
		s.log.Error("fetch progress failed", zap.Error(err))
	}
	s.DetermineResumePoint()
	return nil
}

// LoadCatalog fetches every chapter document. A chapter that fails to load
// is logged and left out; only a fully empty catalog is an error.
func (s *Service) LoadCatalog(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("load catalog: no chapter source")
	}

	var mu sync.Mutex
	loaded := make(map[string]*Chapter)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogConcurrency)
	for _, key := range s.cur.Keys() {
		g.Go(func() error {
			data, err := s.source.Fetch(gctx, key)
			if err == nil {
				var doc *chapter.Doc
				if doc, err = chapter.Parse(data); err == nil {
					mu.Lock()
					loaded[key] = &Chapter{
						Key: key,
						Doc: doc,
						Progress: ChapterProgress{
							TotalSegments: chapter.SegmentCount(s.cur, key, doc),
						},
					}
					mu.Unlock()
				}
			}
			s.metrics.fetch(err == nil)
			if err != nil {
				s.log.Warn("chapter load failed", zap.String("chapter", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("load catalog: no chapters could be loaded")
	}
	s.log.Info("catalog loaded", zap.Int("chapters", len(loaded)))

	s.mu.Lock()
	s.chapters = loaded
	s.mu.Unlock()
	return nil
}

// FetchRemoteProgress merges the server's progress onto the catalog.
// Chapters absent from the response keep their defaults.
func (s *Service) FetchRemoteProgress(ctx context.Context) error {
	resp, err := s.doAuthed(ctx, http.MethodGet, "/api/training-progress", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError("fetch progress", resp)
	}

	var env progressEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("fetch progress: decode: %w", err)
	}
	tp := TrainingProgress{}
	if env.TrainingProgress != nil {
		tp = *env.TrainingProgress
	}

	s.mu.Lock()
	s.server = tp
	s.applyServerProgressLocked()
	s.mu.Unlock()

	s.snapshot(ctx, "fetch", tp)
	return nil
}

func (s *Service) applyServerProgressLocked() {
	for key, ch := range s.chapters {
		m, c, ok := curriculum.ParseKey(key)
		if !ok {
			continue
		}
		sp, ok := s.server.Lookup(m, c)
		if !ok {
			continue
		}
		ch.Progress = ChapterProgress{
			CurrentSegment: sp.CurrentSegment,
			TotalSegments:  ch.Progress.TotalSegments,
			Completed:      sp.Completed,
			LastUpdated:    sp.LastUpdated,
		}
	}
}

// DetermineResumePoint picks and sets the current chapter: the most
// recently updated chapter with partial progress, else the first chapter
// not yet started, else the first chapter.
func (s *Service) DetermineResumePoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var partial []*Chapter
	var notStarted []string
	for _, key := range s.cur.Keys() {
		ch, ok := s.chapters[key]
		if !ok {
			continue
		}
		switch {
		case ch.Progress.IsComplete():
		case ch.Progress.CurrentSegment > 0:
			partial = append(partial, ch)
		default:
			notStarted = append(notStarted, key)
		}
	}

	target := s.cur.First()
	reason := "no progress data"
	switch {
	case len(partial) > 0:
		sort.SliceStable(partial, func(i, j int) bool {
			return partial[i].Progress.updatedMillis() > partial[j].Progress.updatedMillis()
		})
		target, reason = partial[0].Key, "most recent incomplete chapter"
	case len(notStarted) > 0:
		target, reason = notStarted[0], "first chapter with no progress"
	case len(s.chapters) > 0:
		reason = "all chapters completed"
	}

	s.log.Info("resume point", zap.String("chapter", target), zap.String("reason", reason))
	s.currentKey = target
	return target
}

// CurrentKey returns the active chapter key.
func (s *Service) CurrentKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentKey
}

// SetCurrentKey switches the active chapter.
func (s *Service) SetCurrentKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chapters[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChapter, key)
	}
	s.currentKey = key
	return nil
}

// Chapter returns a copy of the catalog entry for key.
func (s *Service) Chapter(key string) (Chapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[key]
	if !ok {
		return Chapter{}, false
	}
	return *ch, true
}

// Chapters returns the catalog in curriculum order.
func (s *Service) Chapters() []Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Chapter
	for _, key := range s.cur.Keys() {
		if ch, ok := s.chapters[key]; ok {
			out = append(out, *ch)
		}
	}
	return out
}

// PostSegmentProgress records next as the current chapter's segment count,
// then posts the whole progress map with retry. On exhausted retries it
// returns a *SyncError; the caller must not advance.
func (s *Service) PostSegmentProgress(ctx context.Context, next int, completed bool) error {
	s.mu.Lock()
	if s.access == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	ch, ok := s.chapters[s.currentKey]
	if !ok {
		key := s.currentKey
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownChapter, key)
	}
	now := s.now().UTC()
	ch.Progress.CurrentSegment = next
	ch.Progress.Completed = completed
	ch.Progress.LastUpdated = NewTimestamp(now)
	key := ch.Key
	payload := progressEnvelope{TrainingProgress: &TrainingProgress{
		Modules:          s.modulesLocked(),
		CompleteTraining: s.allCompleteLocked(),
		LastUpdated:      NewTimestamp(now),
	}}
	s.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	s.log.Info("posting progress", zap.String("chapter", key), zap.Int("segment", next), zap.Bool("completed", completed))

	var echoed TrainingProgress
	attempts, err := s.retry.do(ctx, "progress POST", func(ctx context.Context) error {
		s.metrics.attempt()
		resp, err := s.doAuthed(ctx, http.MethodPost, "/api/training-progress", body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return responseError("progress POST", resp)
		}
		var env progressEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("decode progress response: %w", err)
		}
		if env.TrainingProgress != nil {
			echoed = *env.TrainingProgress
		}
		return nil
	})
	s.metrics.post(err == nil)
	if err != nil {
		s.log.Error("progress sync failed", zap.String("chapter", key), zap.Int("attempts", attempts), zap.Error(err))
		return &SyncError{Attempts: attempts, Err: err}
	}

	s.mu.Lock()
	s.server = echoed
	s.mu.Unlock()
	if completed {
		s.log.Info("chapter completed", zap.String("chapter", key))
	}
	s.snapshot(ctx, "post", echoed)
	return nil
}

func (s *Service) modulesLocked() map[string]ModuleProgress {
	modules := make(map[string]ModuleProgress)
	for key, ch := range s.chapters {
		m, c, ok := curriculum.ParseKey(key)
		if !ok {
			continue
		}
		mk := strconv.Itoa(m)
		mod, ok := modules[mk]
		if !ok {
			mod = ModuleProgress{Chapters: ChapterMap{}}
		}
		mod.Chapters[c] = ch.Progress
		modules[mk] = mod
	}
	return modules
}

// MoveToNextChapter advances the current chapter along the curriculum.
func (s *Service) MoveToNextChapter() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.cur.Next(s.currentKey)
	if !ok {
		s.log.Info("all chapters completed")
		return "", ErrAllComplete
	}
	s.log.Info("moving to next chapter", zap.String("chapter", next))
	s.currentKey = next
	return next, nil
}

// IsAllTrainingComplete reports whether every loaded chapter is complete.
func (s *Service) IsAllTrainingComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allCompleteLocked()
}

func (s *Service) allCompleteLocked() bool {
	if len(s.chapters) == 0 {
		return false
	}
	for _, ch := range s.chapters {
		if !ch.Progress.IsComplete() {
			return false
		}
	}
	return true
}

// ChapterComplete reports whether the chapter counts as finished.
func (s *Service) ChapterComplete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[key]
	return ok && ch.Progress.IsComplete()
}

// Overall computes time-weighted progress from segment durations, with a
// segment-count fallback when no timings are known.
func (s *Service) Overall() Overall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var o Overall
	for key, ch := range s.chapters {
		current := ch.Progress.CurrentSegment
		durations := s.cur.Durations(key)
		o.TotalSeconds += s.cur.Total(key)
		for i := 0; i < current && i < len(durations); i++ {
			o.CompletedSeconds += durations[i]
		}
		o.TotalSegments += ch.Progress.TotalSegments
		o.CompletedSegments += current
	}

	switch {
	case o.TotalSeconds > 0:
		o.Percent = int(math.Round(float64(o.CompletedSeconds) / float64(o.TotalSeconds) * 100))
	case o.TotalSegments > 0:
		o.Percent = int(math.Round(float64(o.CompletedSegments) / float64(o.TotalSegments) * 100))
	}
	return o
}

// MostRecentChapterInModule returns the 1-based chapter number of the
// module's most recently updated chapter with progress, defaulting to 1.
func (s *Service) MostRecentChapterInModule(module int) int {
	mod, ok := s.cur.Module(module)
	if !ok {
		return 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	best, bestAt := 1, int64(0)
	for _, c := range mod.Chapters {
		ch, ok := s.chapters[c.Key()]
		if !ok || (ch.Progress.CurrentSegment == 0 && !ch.Progress.Completed) {
			continue
		}
		at := ch.Progress.updatedMillis()
		if bestAt == 0 || at > bestAt {
			best, bestAt = c.Number, at
		}
	}
	return best
}

// LastSnapshot returns the most recent locally saved progress document.
func (s *Service) LastSnapshot(ctx context.Context) (*TrainingProgress, time.Time, error) {
	if s.snaps == nil {
		return nil, time.Time{}, nil
	}
	snap, err := s.snaps.Latest(ctx)
	if err != nil || snap == nil {
		return nil, time.Time{}, err
	}
	var tp TrainingProgress
	if err := json.Unmarshal(snap.Data.Progress, &tp); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return &tp, snap.Timestamp, nil
}

func (s *Service) snapshot(ctx context.Context, source string, tp TrainingProgress) {
	if s.snaps == nil {
		return
	}
	data, err := json.Marshal(tp)
	if err == nil {
		err = s.snaps.Save(ctx, &store.Snapshot{
			Timestamp: s.now(),
			Data:      store.SnapshotData{Version: 1, Source: source, Progress: data},
		})
	}
	if err == nil {
		err = s.snaps.Prune(ctx, snapshotKeep)
	}
	if err != nil {
		s.log.Warn("progress snapshot failed", zap.Error(err))
	}
}

func (s *Service) doAuthed(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	s.mu.Lock()
	token := s.access
	s.mu.Unlock()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}

// responseError builds an HTTPError, preferring the body's "error" field.
func responseError(op string, resp *http.Response) *HTTPError {
	herr := &HTTPError{Op: op, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		herr.Message = body.Error
	}
	return herr
}

// IsSyncError reports whether err is an exhausted progress sync.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
