// Package devserver is a small local stand-in for the remote training
// service: temp token exchange, per-learner progress documents and the
// chapter content tree.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/config"
	"github.com/abhisek/ggtrain/internal/store"
)

// DefaultLearner owns temp tokens minted without a learner id.
const DefaultLearner = "dev-learner"

const (
	tempTokenTTL   = 10 * time.Minute
	requestTimeout = 30 * time.Second
)

// Options configures a Server.
type Options struct {
	Config config.ServerConfig

	// ContentRoot is the directory holding json/ and Assets/. Empty
	// disables the static routes.
	ContentRoot string

	Learners store.LearnerRepo
	Logger   *zap.Logger

	// Registry receives the HTTP metrics and backs /metrics. Nil creates a
	// private registry.
	Registry *prometheus.Registry

	Now func() time.Time
}

// Server serves the development API.
type Server struct {
	cfg      config.ServerConfig
	learners store.LearnerRepo
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *httpMetrics
	limiter  *ipLimiter
	temps    *tempTokens
	signer   *signer
	content  string
	now      func() time.Time
	router   chi.Router
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Learners == nil {
		return nil, errors.New("devserver: learner repository is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := newHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}

	secret := opts.Config.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("server.jwt_secret not set, using a random per-process secret")
	}
	ttl := opts.Config.TokenTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}

	s := &Server{
		cfg:      opts.Config,
		learners: opts.Learners,
		log:      log,
		registry: reg,
		metrics:  metrics,
		limiter:  newIPLimiter(opts.Config.RateLimit, opts.Config.RateBurst, now),
		temps:    newTempTokens(tempTokenTTL, now),
		signer:   &signer{key: []byte(secret), ttl: ttl, now: now},
		content:  opts.ContentRoot,
		now:      now,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(requestLogger(s.log))
	r.Use(s.metrics.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(ar chi.Router) {
		ar.Use(s.limiter.middleware)
		ar.Post("/dev/temp-tokens", s.handleMintTempToken)
		ar.Get("/training-auth", s.handleTrainingAuth)

		ar.Group(func(pr chi.Router) {
			pr.Use(s.requireBearer)
			pr.Get("/training-progress", s.handleGetProgress)
			pr.Post("/training-progress", s.handlePostProgress)
		})
	})

	if s.content != "" {
		fs := http.FileServer(http.Dir(s.content))
		r.Handle("/json/*", fs)
		r.Handle("/Assets/*", fs)
	}
	return r
}

// MintTempToken issues a one-time temp token for learner.
func (s *Server) MintTempToken(learner string) (string, time.Time) {
	if learner == "" {
		learner = DefaultLearner
	}
	return s.temps.mint(learner)
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.content != "" {
		if _, err := os.Stat(s.content); err != nil {
			s.log.Warn("content root not readable, static routes will 404",
				zap.String("root", s.content), zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dev server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
