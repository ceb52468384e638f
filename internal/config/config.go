// Package config holds the explicit runtime configuration for ggtrain.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config is every tunable the viewer, API client and dev server read.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Playback   PlaybackConfig   `mapstructure:"playback"`
	Transition TransitionConfig `mapstructure:"transition"`
	Content    ContentConfig    `mapstructure:"content"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Media      MediaConfig      `mapstructure:"media"`
}

// APIConfig points at the remote progress service.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryConfig bounds progress POST retries. The wait before attempt n+1 is
// BaseDelay * 2^(n-1).
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

// PlaybackConfig controls narration playback.
type PlaybackConfig struct {
	SpeedupEnabled bool          `mapstructure:"speedup_enabled"`
	SpeedupRate    float64       `mapstructure:"speedup_rate"`
	FPS            int           `mapstructure:"fps"`
	FrameInterval  time.Duration `mapstructure:"frame_interval"`
}

// Rate returns the effective playback rate.
func (p PlaybackConfig) Rate() float64 {
	if p.SpeedupEnabled && p.SpeedupRate > 0 {
		return p.SpeedupRate
	}
	return 1.0
}

// TransitionConfig holds the fixed UI transition delays.
type TransitionConfig struct {
	SegmentDelay  time.Duration `mapstructure:"segment_delay"`
	ViewerClose   time.Duration `mapstructure:"viewer_close"`
	OpenAnimation time.Duration `mapstructure:"open_animation"`
	AutoOpen      time.Duration `mapstructure:"auto_open"`
	Crossfade     time.Duration `mapstructure:"crossfade"`
}

// ContentConfig locates chapter documents and assets. Root is a directory
// or an http(s) base URL.
type ContentConfig struct {
	Root       string `mapstructure:"root"`
	ChapterDir string `mapstructure:"chapter_dir"`
	Curriculum string `mapstructure:"curriculum"`
}

// StoreConfig locates the local sqlite database. Empty selects the XDG
// default.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig configures the rolling log file.
type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ServerConfig configures the development progress server.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// MediaConfig holds defaults for simulated video clips.
type MediaConfig struct {
	DefaultClipSeconds float64 `mapstructure:"default_clip_seconds"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "https://guestguard-platform.vercel.app",
			Timeout: 15 * time.Second,
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: time.Second,
		},
		Playback: PlaybackConfig{
			SpeedupRate:   1.0,
			FPS:           30,
			FrameInterval: 50 * time.Millisecond,
		},
		Transition: TransitionConfig{
			SegmentDelay:  300 * time.Millisecond,
			ViewerClose:   300 * time.Millisecond,
			OpenAnimation: 500 * time.Millisecond,
			AutoOpen:      500 * time.Millisecond,
			Crossfade:     500 * time.Millisecond,
		},
		Content: ContentConfig{
			Root:       ".",
			ChapterDir: "json",
		},
		Log: LogConfig{
			File:       defaultLogFile(),
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Addr:           ":8787",
			TokenTTL:       8 * time.Hour,
			AllowedOrigins: []string{"*"},
			RateLimit:      20,
			RateBurst:      40,
		},
		Media: MediaConfig{
			DefaultClipSeconds: 8,
		},
	}
}

// defaultLogFile returns $XDG_STATE_HOME/ggtrain/ggtrain.log.
func defaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "ggtrain", "ggtrain.log")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ggtrain.log")
	}
	return filepath.Join(home, ".local", "state", "ggtrain", "ggtrain.log")
}

// Load reads configuration from defaults, an optional config file and
// GGTRAIN_* environment variables, in increasing priority. An empty path
// searches ./ggtrain.yaml and $XDG_CONFIG_HOME/ggtrain/ggtrain.yaml; a
// missing file is not an error unless path was given explicitly.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("GGTRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ggtrain")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "ggtrain"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)

	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)

	v.SetDefault("playback.speedup_enabled", d.Playback.SpeedupEnabled)
	v.SetDefault("playback.speedup_rate", d.Playback.SpeedupRate)
	v.SetDefault("playback.fps", d.Playback.FPS)
	v.SetDefault("playback.frame_interval", d.Playback.FrameInterval)

	v.SetDefault("transition.segment_delay", d.Transition.SegmentDelay)
	v.SetDefault("transition.viewer_close", d.Transition.ViewerClose)
	v.SetDefault("transition.open_animation", d.Transition.OpenAnimation)
	v.SetDefault("transition.auto_open", d.Transition.AutoOpen)
	v.SetDefault("transition.crossfade", d.Transition.Crossfade)

	v.SetDefault("content.root", d.Content.Root)
	v.SetDefault("content.chapter_dir", d.Content.ChapterDir)
	v.SetDefault("content.curriculum", d.Content.Curriculum)

	v.SetDefault("store.db_path", d.Store.DBPath)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.jwt_secret", d.Server.JWTSecret)
	v.SetDefault("server.token_ttl", d.Server.TokenTTL)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)

	v.SetDefault("media.default_clip_seconds", d.Media.DefaultClipSeconds)
}

// Validate checks value ranges. It returns every problem found, joined.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive"))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.base_delay must not be negative"))
	}
	if c.Playback.SpeedupRate <= 0 {
		errs = append(errs, fmt.Errorf("playback.speedup_rate must be positive"))
	}
	if c.Playback.FPS <= 0 {
		errs = append(errs, fmt.Errorf("playback.fps must be positive"))
	}
	if c.Playback.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("playback.frame_interval must be positive"))
	}
	if c.Content.Root == "" {
		errs = append(errs, fmt.Errorf("content.root is required"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_limit and server.rate_burst must be positive"))
	}
	if c.Server.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("server.token_ttl must be positive"))
	}
	return errors.Join(errs...)
}
