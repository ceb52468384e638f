package cmd

import (
	"fmt"
	"net/http"
	"os/exec"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/assets"
	"github.com/abhisek/ggtrain/internal/config"
	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/logging"
	"github.com/abhisek/ggtrain/internal/media"
	"github.com/abhisek/ggtrain/internal/progress"
	"github.com/abhisek/ggtrain/internal/store"
)

// env is what every command works with: config, logger, the local
// store and the content location.
type env struct {
	cfg        config.Config
	log        *zap.Logger
	store      *store.Store
	resolver   *assets.Resolver
	content    *api.ContentSource
	curriculum *curriculum.Curriculum
	registry   *prometheus.Registry

	closers []func() error
}

// setup opens the env. console adds a stderr log core for commands
// that do not own the terminal.
func setup(cmd *cobra.Command, console bool) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.New(cfg.Log, logging.Options{Console: console})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	rt := &env{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	rt.closers = append(rt.closers, closeLog)

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)

	rt.resolver, err = assets.NewResolver(cfg.Content.Root)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("content root: %w", err)
	}
	rt.content = api.NewContentSource(rt.resolver, cfg.Content.ChapterDir, &http.Client{Timeout: cfg.API.Timeout})

	rt.curriculum = curriculum.Default()
	if cfg.Content.Curriculum != "" {
		if rt.curriculum, err = curriculum.LoadFile(cfg.Content.Curriculum); err != nil {
			rt.Close()
			return nil, fmt.Errorf("curriculum: %w", err)
		}
	}

	log.Debug("runtime ready",
		zap.String("db", dbPath),
		zap.String("content", cfg.Content.Root),
		zap.String("api", cfg.API.BaseURL))
	return rt, nil
}

// Close releases the store and flushes the log, in reverse open order.
func (rt *env) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
}

// service builds the progress service. It is constructed once and shared
// by every screen.
func (rt *env) service() *api.Service {
	return api.New(api.Options{
		Config:     rt.cfg,
		Tokens:     progress.NewTokenStore(rt.store.KV()),
		Source:     rt.content,
		Curriculum: rt.curriculum,
		Logger:     rt.log.Named("api"),
		Metrics:    api.NewMetrics(rt.registry),
		Snapshots:  rt.store.SnapshotRepo(),
	})
}

func (rt *env) local() *progress.Local {
	return progress.NewLocal(rt.store.KV())
}

// prober returns nil when ffprobe is not installed.
func (rt *env) prober() *media.Prober {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		rt.log.Info("ffprobe not found, media lengths use defaults")
		return nil
	}
	return media.NewProber()
}
