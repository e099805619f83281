// Package http implements the REST API of the learning and risk engine.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/defi-academy/navigator/internal/application/command"
	"github.com/defi-academy/navigator/internal/application/query"
	"github.com/defi-academy/navigator/internal/interface/http/handlers"
	"github.com/defi-academy/navigator/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxBodyBytes caps request bodies (default: 1 MB).
	MaxBodyBytes int64

	// EnableMetrics exposes GET /metrics.
	EnableMetrics bool

	// RateLimitPerMinute - requests per minute per client (0 = disabled).
	RateLimitPerMinute int

	// Version is reported by the health endpoints.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxBodyBytes:       1 << 20,
		EnableMetrics:      true,
		RateLimitPerMinute: 300,
		Version:            "dev",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HTTPRecorder receives per-request measurements.
type HTTPRecorder interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Dependencies contains all dependencies required by HTTP handlers. A nil
// handler makes its routes answer 501.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	RecordActivity *command.RecordActivityHandler
	SubmitQuiz     *command.SubmitQuizHandler
	AssessRisk     *command.AssessRiskHandler

	// Query Handlers (CQRS Read Side)
	Progress     *query.GetProgressHandler
	Achievements *query.ListAchievementsHandler
	Quizzes      *query.QuizHandler
	QuizAttempts *query.ListQuizAttemptsHandler
	Protocols    *query.ListProtocolsHandler
	Tokens       *query.ListTokensHandler
	Assessments  *query.ListRiskAssessmentsHandler

	HealthChecker handlers.HealthChecker

	// Recorder and MetricsHandler back the metrics middleware and /metrics.
	Recorder       HTTPRecorder
	MetricsHandler http.Handler

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     chi.Router
	logger     *logger.Logger
	limiter    *handlers.ClientRateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.Named("http")

	if config.RateLimitPerMinute > 0 {
		s.limiter = handlers.NewClientRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(handlers.SecurityHeadersMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	if s.config.EnableMetrics && s.deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.MetricsHandler)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// API v1
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimitMiddleware)
		}
		if s.config.MaxBodyBytes > 0 {
			r.Use(handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes))
		}

		r.Route("/quizzes", func(r chi.Router) {
			r.Get("/", s.handleListQuizzes)
			r.Get("/{quizID}", s.handleGetQuiz)
			r.Post("/{quizID}/submit", s.handleSubmitQuiz)
		})

		r.Route("/learners/{userID}", func(r chi.Router) {
			r.Post("/activities", s.handleRecordActivity)
			r.Get("/progress", s.handleGetProgress)
			r.Get("/achievements", s.handleListAchievements)
			r.Get("/quiz-attempts", s.handleListQuizAttempts)
		})

		r.Route("/risk", func(r chi.Router) {
			r.Post("/assess", s.handleAssessRisk)
			r.Post("/assess/batch", s.handleAssessRiskBatch)
			r.Get("/protocols", s.handleListProtocols)
			r.Get("/tokens", s.handleListTokens)
			r.Get("/assessments", s.handleListAssessments)
		})
	})

	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}
