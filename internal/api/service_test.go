package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/ggtrain/internal/config"
	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/progress"
	"github.com/abhisek/ggtrain/internal/store"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// mapSource serves a one-hotspot document for every key except those in
// missing.
type mapSource struct {
	missing map[string]bool
}

func (m mapSource) Fetch(_ context.Context, key string) ([]byte, error) {
	if m.missing[key] {
		return nil, fmt.Errorf("no such chapter %s", key)
	}
	return []byte(fmt.Sprintf(`{"title":"Chapter %s","hotspots":[{"id":"h1"},{"id":"h2"}]}`, key)), nil
}

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu sync.Mutex
	t  progress.Tokens
}

func (m *memTokens) Load(context.Context) (progress.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t, nil
}

func (m *memTokens) Save(_ context.Context, t progress.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
	return nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = progress.Tokens{}
	return nil
}

// fakeServer implements the progress API.
type fakeServer struct {
	mu         sync.Mutex
	progress   string
	authStatus int
	authBody   string
	postFails  int
	posts      []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/training-auth", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.authStatus != 0 {
			w.WriteHeader(f.authStatus)
		}
		io.WriteString(w, f.authBody)
	})
	mux.HandleFunc("GET /api/training-progress", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		fmt.Fprintf(w, `{"training_progress":%s}`, f.progress)
	})
	mux.HandleFunc("POST /api/training-progress", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		f.posts = append(f.posts, string(body))
		if f.postFails > 0 {
			f.postFails--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	})
	return mux
}

type harness struct {
	svc    *Service
	server *fakeServer
	tokens *memTokens
	waits  []time.Duration
	reg    *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		server: &fakeServer{progress: `{"modules":{}}`},
		tokens: &memTokens{},
		reg:    prometheus.NewRegistry(),
	}
	ts := httptest.NewServer(h.server.handler())
	t.Cleanup(ts.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = ts.URL
	h.svc = New(Options{
		Config:     cfg,
		HTTPClient: ts.Client(),
		Tokens:     h.tokens,
		Source:     mapSource{},
		Curriculum: curriculum.Default(),
		Metrics:    NewMetrics(h.reg),
		Now:        func() time.Time { return fixedNow },
		Sleep: func(_ context.Context, d time.Duration) error {
			h.waits = append(h.waits, d)
			return nil
		},
	})
	return h
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "learner-1"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// counterValue reads a counter from reg; result selects the "result" label
// and is ignored for unlabelled counters.
func counterValue(t *testing.T, reg *prometheus.Registry, name, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if result == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	tok := signedToken(t, fixedNow.Add(2*time.Hour))
	h.server.authBody = fmt.Sprintf(`{"access_token":%q,"refresh_token":"r1"}`, tok)
	require.NoError(t, h.svc.Authenticate(context.Background(), "temp-1"))
}

func TestResume_MostRecentPartialChapter(t *testing.T) {
	h := newHarness(t)
	h.server.progress = `{"modules":{
		"2":{"chapters":{"0":{"currentSegment":2,"completed":false,"lastUpdated":"1970-01-01T00:00:00.100Z"}}},
		"3":{"chapters":{"1":{"currentSegment":1,"completed":false,"lastUpdated":"1970-01-01T00:00:00.200Z"}}}
	}}`
	h.login(t)

	assert.Equal(t, "3-2", h.svc.CurrentKey())
	ch, ok := h.svc.Chapter("2-1")
	require.True(t, ok)
	assert.Equal(t, 2, ch.Progress.CurrentSegment)
	assert.Equal(t, 8, ch.Progress.TotalSegments, "total comes from the curriculum, not the server")
}

func TestResume_LenientLastUpdated(t *testing.T) {
	tests := []struct {
		name   string
		older  string
		newer  string
		resume string
	}{
		{"epoch millis", `1700000000000`, `1777000000000`, "3-2"},
		{"epoch seconds", `1777000000`, `1700000000`, "2-1"},
		{"numeric strings", `"1700000000000"`, `"1777000000000"`, "3-2"},
		{"empty string", `""`, `"2026-04-01T00:00:00Z"`, "3-2"},
		{"unreadable", `"yesterday"`, `{}`, "2-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.server.progress = fmt.Sprintf(`{"modules":{
				"2":{"chapters":{"0":{"currentSegment":2,"lastUpdated":%s}}},
				"3":{"chapters":{"1":{"currentSegment":1,"lastUpdated":%s}}}
			}}`, tt.older, tt.newer)
			h.login(t)

			assert.Equal(t, tt.resume, h.svc.CurrentKey())
			ch, ok := h.svc.Chapter("2-1")
			require.True(t, ok)
			assert.Equal(t, 2, ch.Progress.CurrentSegment, "progress survives an odd timestamp")
		})
	}
}

func TestTimestamp_JSON(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`1777000000000`), &ts))
	assert.Equal(t, int64(1777000000000), ts.UnixMilli())

	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())

	out, err := json.Marshal(ChapterProgress{LastUpdated: &ts})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"lastUpdated":null`)

	out, err = json.Marshal(ChapterProgress{LastUpdated: NewTimestamp(time.UnixMilli(100).UTC())})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"lastUpdated":"1970-01-01T00:00:00.1Z"`)
}

func TestResume_FirstNotStarted(t *testing.T) {
	h := newHarness(t)
	h.server.progress = `{"modules":{"1":{"chapters":[{"currentSegment":7,"completed":true}]}}}`
	h.login(t)
	assert.Equal(t, "1-2", h.svc.CurrentKey())
}

func TestResume_AllCompleteReturnsToStart(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	for _, key := range curriculum.Default().Keys() {
		require.NoError(t, h.svc.SetCurrentKey(key))
		total := len(curriculum.Default().Durations(key))
		require.NoError(t, h.svc.PostSegmentProgress(context.Background(), total, true))
	}
	assert.True(t, h.svc.IsAllTrainingComplete())
	assert.Equal(t, "1-1", h.svc.DetermineResumePoint())
}

func TestPostSegmentProgress_RetriesWithDoublingBackoff(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.server.postFails = 3

	err := h.svc.PostSegmentProgress(context.Background(), 1, false)
	require.Error(t, err)

	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Attempts)
	assert.True(t, IsSyncError(err))
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusServiceUnavailable, herr.StatusCode)

	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, h.waits)
	assert.Len(t, h.server.posts, 3)
	assert.Equal(t, 1.0, counterValue(t, h.reg, "ggtrain_progress_posts_total", "failure"))
	assert.Equal(t, 3.0, counterValue(t, h.reg, "ggtrain_progress_post_attempts_total", ""))
}

func TestPostSegmentProgress_SucceedsAfterTransientFailure(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.server.postFails = 1

	require.NoError(t, h.svc.PostSegmentProgress(context.Background(), 3, false))
	assert.Equal(t, []time.Duration{time.Second}, h.waits)
	require.Len(t, h.server.posts, 2)

	var env struct {
		TrainingProgress struct {
			Modules map[string]struct {
				Chapters map[string]map[string]any `json:"chapters"`
			} `json:"modules"`
			CompleteTraining bool   `json:"complete_training"`
			LastUpdated      string `json:"last_updated"`
		} `json:"training_progress"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.server.posts[1]), &env))
	rec := env.TrainingProgress.Modules["1"].Chapters["0"]
	assert.Equal(t, 3.0, rec["currentSegment"])
	assert.Equal(t, 7.0, rec["totalSegments"])
	assert.Equal(t, false, rec["completed"])
	assert.NotEmpty(t, rec["lastUpdated"])
	assert.Len(t, env.TrainingProgress.Modules, 6, "every chapter is posted")
	assert.False(t, env.TrainingProgress.CompleteTraining)
	assert.NotEmpty(t, env.TrainingProgress.LastUpdated)
}

func TestPostSegmentProgress_RequiresSession(t *testing.T) {
	h := newHarness(t)
	err := h.svc.PostSegmentProgress(context.Background(), 1, false)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthenticate_ExpiryRoundTrip(t *testing.T) {
	h := newHarness(t)
	exp := time.Date(2026, 5, 1, 13, 30, 0, 0, time.UTC)
	tok := signedToken(t, exp)
	h.server.authBody = fmt.Sprintf(`{"access_token":%q,"refresh_token":"r1"}`, tok)
	require.NoError(t, h.svc.Authenticate(context.Background(), "temp-1"))

	saved, _ := h.tokens.Load(context.Background())
	assert.Equal(t, exp.UnixMilli(), saved.ExpiresAt.UnixMilli())

	// Reload without a stored expiry: it is re-derived from the token.
	h.tokens.t.ExpiresAt = time.Time{}
	reloaded := New(Options{
		Config: config.DefaultConfig(),
		Tokens: h.tokens,
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, reloaded.loadStoredAuth(context.Background()))
	assert.Equal(t, exp.UnixMilli(), reloaded.Status().ExpiresAt.UnixMilli())
	saved, _ = h.tokens.Load(context.Background())
	assert.Equal(t, exp.UnixMilli(), saved.ExpiresAt.UnixMilli())
}

func TestAuthenticate_ServerExpiry(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"milliseconds", `1777640400000`, time.UnixMilli(1777640400000)},
		{"seconds", `1777640400`, time.Unix(1777640400, 0)},
		{"rfc3339", `"2026-05-01T13:00:00Z"`, time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.server.authBody = fmt.Sprintf(`{"access_token":"opaque","expires_at":%s}`, tt.raw)
			require.NoError(t, h.svc.Authenticate(context.Background(), "temp"))
			assert.Equal(t, tt.want.UnixMilli(), h.svc.Status().ExpiresAt.UnixMilli())
		})
	}
}

func TestAuthenticate_FallbackOneHour(t *testing.T) {
	h := newHarness(t)
	h.server.authBody = `{"access_token":"opaque-token"}`
	require.NoError(t, h.svc.Authenticate(context.Background(), "temp"))
	st := h.svc.Status()
	assert.Equal(t, fixedNow.Add(time.Hour), st.ExpiresAt)
	assert.Equal(t, "✓ Authenticated (expires in 3600s)", st.String())
}

func TestAuthenticate_Rejected(t *testing.T) {
	h := newHarness(t)
	h.server.authStatus = http.StatusUnauthorized
	h.server.authBody = `{"error":"invalid temp token"}`

	err := h.svc.Authenticate(context.Background(), "bad")
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusUnauthorized, herr.StatusCode)
	assert.Equal(t, "invalid temp token", herr.Message)
	assert.False(t, h.svc.Authenticated())
	assert.Equal(t, "✗ Not Authenticated", h.svc.Status().String())
}

func TestAuthenticate_MalformedBody(t *testing.T) {
	h := newHarness(t)
	h.server.authBody = `{"refresh_token":"only"}`
	assert.Error(t, h.svc.Authenticate(context.Background(), "temp"))
	h.server.authBody = `not json`
	assert.Error(t, h.svc.Authenticate(context.Background(), "temp"))
}

func TestInit_Priority(t *testing.T) {
	ctx := context.Background()

	t.Run("valid stored token", func(t *testing.T) {
		h := newHarness(t)
		h.tokens.t = progress.Tokens{Access: "stored", ExpiresAt: fixedNow.Add(time.Minute)}
		h.server.authStatus = http.StatusTeapot
		require.NoError(t, h.svc.Init(ctx, "ignored-temp"))
		assert.True(t, h.svc.Authenticated())
		assert.Equal(t, "1-1", h.svc.CurrentKey())
	})

	t.Run("expired stored token is cleared", func(t *testing.T) {
		h := newHarness(t)
		h.tokens.t = progress.Tokens{Access: "stale", ExpiresAt: fixedNow.Add(-time.Minute)}
		require.NoError(t, h.svc.Init(ctx, ""))
		assert.False(t, h.svc.Authenticated())
		saved, _ := h.tokens.Load(ctx)
		assert.Empty(t, saved.Access)
	})

	t.Run("unknown expiry without temp token", func(t *testing.T) {
		h := newHarness(t)
		h.tokens.t = progress.Tokens{Access: "opaque"}
		require.NoError(t, h.svc.Init(ctx, ""))
		assert.True(t, h.svc.Authenticated())
		assert.Equal(t, "✓ Authenticated", h.svc.Status().String())
	})

	t.Run("temp token", func(t *testing.T) {
		h := newHarness(t)
		h.server.authBody = `{"access_token":"fresh","expires_at":1777640400000}`
		require.NoError(t, h.svc.Init(ctx, "temp"))
		assert.True(t, h.svc.Authenticated())
	})

	t.Run("nothing", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.svc.Init(ctx, ""))
		assert.False(t, h.svc.Authenticated())
	})
}

func TestLoadCatalog_SkipsFailedChapters(t *testing.T) {
	h := newHarness(t)
	h.svc.source = mapSource{missing: map[string]bool{"2-2": true, "6-1": true}}
	require.NoError(t, h.svc.LoadCatalog(context.Background()))

	chapters := h.svc.Chapters()
	assert.Len(t, chapters, 14)
	_, ok := h.svc.Chapter("2-2")
	assert.False(t, ok)
	assert.Equal(t, "1-1", chapters[0].Key)
	assert.Equal(t, "Chapter 1-1", chapters[0].Title())
	assert.Equal(t, 2.0, counterValue(t, h.reg, "ggtrain_chapter_fetches_total", "failure"))
}

func TestLoadCatalog_AllFail(t *testing.T) {
	h := newHarness(t)
	missing := map[string]bool{}
	for _, k := range curriculum.Default().Keys() {
		missing[k] = true
	}
	h.svc.source = mapSource{missing: missing}
	assert.Error(t, h.svc.LoadCatalog(context.Background()))
}

func TestFetchRemoteProgress_AbsentChaptersKeepDefaults(t *testing.T) {
	h := newHarness(t)
	h.server.progress = `{"modules":{"1":{"chapters":{"1":{"currentSegment":4}}}}}`
	h.login(t)

	ch, _ := h.svc.Chapter("1-2")
	assert.Equal(t, 4, ch.Progress.CurrentSegment)
	ch, _ = h.svc.Chapter("1-3")
	assert.Equal(t, 0, ch.Progress.CurrentSegment)
	assert.Equal(t, 6, ch.Progress.TotalSegments)
}

func TestMoveToNextChapter(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	require.NoError(t, h.svc.SetCurrentKey("1-5"))
	next, err := h.svc.MoveToNextChapter()
	require.NoError(t, err)
	assert.Equal(t, "2-1", next)

	require.NoError(t, h.svc.SetCurrentKey("6-1"))
	_, err = h.svc.MoveToNextChapter()
	assert.ErrorIs(t, err, ErrAllComplete)

	assert.ErrorIs(t, h.svc.SetCurrentKey("9-9"), ErrUnknownChapter)
}

func TestOverall_TimeWeighted(t *testing.T) {
	h := newHarness(t)
	h.server.progress = `{"modules":{"1":{"chapters":{"0":{"currentSegment":2}}}}}`
	h.login(t)

	o := h.svc.Overall()
	assert.Equal(t, 33, o.CompletedSeconds)
	assert.Equal(t, 2881, o.TotalSeconds)
	assert.Equal(t, 1, o.Percent)
	assert.Equal(t, "0:33 / 48:01 completed", o.Label())
}

func TestOverall_SegmentFallback(t *testing.T) {
	o := Overall{CompletedSegments: 3, TotalSegments: 12}
	assert.Equal(t, "3/12 segments completed", o.Label())
}

func TestMostRecentChapterInModule(t *testing.T) {
	h := newHarness(t)
	h.server.progress = `{"modules":{"1":{"chapters":{
		"1":{"currentSegment":2,"lastUpdated":"2026-04-01T00:00:00Z"},
		"3":{"completed":true,"lastUpdated":"2026-04-03T00:00:00Z"},
		"4":{"currentSegment":1,"lastUpdated":"2026-04-02T00:00:00Z"}
	}}}}`
	h.login(t)

	assert.Equal(t, 4, h.svc.MostRecentChapterInModule(1))
	assert.Equal(t, 1, h.svc.MostRecentChapterInModule(2))
	assert.Equal(t, 1, h.svc.MostRecentChapterInModule(42))
}

func TestSnapshotsRecorded(t *testing.T) {
	h := newHarness(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	h.svc.snaps = st.SnapshotRepo()

	h.server.progress = `{"modules":{"1":{"chapters":{"0":{"currentSegment":5}}}}}`
	h.login(t)

	tp, at, err := h.svc.LastSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.Equal(t, fixedNow.UnixMilli(), at.UnixMilli())
	rec, ok := tp.Lookup(1, 0)
	assert.True(t, ok)
	assert.Equal(t, 5, rec.CurrentSegment)
}

func TestLogoutClearsEverything(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.NoError(t, h.svc.Logout(context.Background()))
	assert.False(t, h.svc.Authenticated())
	assert.Empty(t, h.svc.Chapters())
	assert.Empty(t, h.svc.CurrentKey())
	saved, _ := h.tokens.Load(context.Background())
	assert.Empty(t, saved.Access)
}
