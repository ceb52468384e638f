package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30, cfg.Playback.FPS)
	assert.Equal(t, 300*time.Millisecond, cfg.Transition.SegmentDelay)
	assert.Equal(t, "json", cfg.Content.ChapterDir)
	require.NoError(t, cfg.Validate())
}

func TestPlaybackRate(t *testing.T) {
	p := PlaybackConfig{SpeedupRate: 1.5}
	assert.Equal(t, 1.0, p.Rate())
	p.SpeedupEnabled = true
	assert.Equal(t, 1.5, p.Rate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ggtrain.yaml")
	doc := `
api:
  base_url: http://localhost:8787
retry:
  attempts: 5
  base_delay: 250ms
playback:
  speedup_enabled: true
  speedup_rate: 1.25
server:
  allowed_origins: [http://a.test, http://b.test]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("GGTRAIN_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8787", cfg.API.BaseURL)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 1.25, cfg.Playback.Rate())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep defaults.
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Transition.Crossfade)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().API.BaseURL, cfg.API.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "not a url"
	cfg.Retry.Attempts = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
	assert.Contains(t, err.Error(), "retry.attempts")
	assert.Contains(t, err.Error(), "log.level")
}
