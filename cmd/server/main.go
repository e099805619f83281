// Package main is the entry point of the navigator API server.
//
// The server records learner activity, grades quizzes, evaluates
// achievements and scores DeFi risk over a REST API. PostgreSQL is used when
// DATABASE_URL is set, in-memory storage otherwise; Redis backs the risk
// cache and the cross-instance event bus when reachable.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/defi-academy/navigator/config"
	"github.com/defi-academy/navigator/internal/application/command"
	"github.com/defi-academy/navigator/internal/application/query"
	"github.com/defi-academy/navigator/internal/application/saga"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/infrastructure/catalog"
	"github.com/defi-academy/navigator/internal/infrastructure/metrics"
	httpapi "github.com/defi-academy/navigator/internal/interface/http"
	"github.com/defi-academy/navigator/internal/interface/http/handlers"
	"github.com/defi-academy/navigator/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting navigator",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("memory_store", cfg.UseMemoryStore()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Catalog & domain services
	// ─────────────────────────────────────────────────────────────────────────
	cat, err := catalog.Load(cfg.Engine.CatalogPath, catalog.WithRiskBands(cfg.Engine.Risk.Bands))
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	stats := cat.Stats()
	log.Info("catalog loaded",
		logger.String("source", cat.Source()),
		logger.String("revision", cat.Revision()),
		logger.Int("quizzes", stats.Quizzes),
		logger.Int("achievements", stats.Achievements),
		logger.Int("protocols", stats.Protocols),
	)

	calc, err := scoring.NewCalculator(cfg.Engine.Scoring)
	if err != nil {
		return fmt.Errorf("invalid scoring config: %w", err)
	}
	tracker, err := progress.NewTracker(calc, cat.Totals().Override(cfg.Engine.Totals))
	if err != nil {
		return fmt.Errorf("invalid curriculum totals: %w", err)
	}
	scorer, err := risk.NewScorer(cfg.Engine.Risk, cat.RiskTables())
	if err != nil {
		return fmt.Errorf("invalid risk config: %w", err)
	}

	m := metrics.New()
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Storage, cache, event bus
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, m, health, log)
	if err != nil {
		return err
	}
	defer st.Close()

	cache := openCache(ctx, cfg, m, health, log)
	defer cache.Close()

	bus, err := openEventBus(ctx, cfg, cache, m, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	}()
	if err := subscribe(bus, log); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	flags := cfg.Features

	flow := saga.NewAchievementFlowSaga(cat, st.achievements, st.attempts, bus, saga.AchievementFlowConfig{
		Enabled:  flags.Enabled(config.FeatureAchievements),
		Observer: m,
		Logger:   log,
	})

	activities := command.NewRecordActivityHandler(st.learners, tracker, flow, bus, command.RecordActivityHandlerConfig{
		Observer: m,
		Logger:   log,
	})

	quizzes := command.NewSubmitQuizHandler(cat, st.attempts, st.learners, activities, flow, bus, command.SubmitQuizHandlerConfig{
		Observer: m,
		Logger:   log,
	})

	assessCfg := command.AssessRiskHandlerConfig{
		Revision:         cat.Revision(),
		History:          st.assessments,
		CacheTTL:         cfg.Engine.Risk.CacheTTL,
		BatchConcurrency: cfg.Engine.BatchConcurrency,
		MaxBatchSize:     cfg.Engine.MaxBatchSize,
		Observer:         m,
		Logger:           log,
	}
	if cache.risk != nil && flags.Enabled(config.FeatureRiskCache) {
		assessCfg.Cache = cache.risk
		assessCfg.Breaker = cache.breaker
	}
	if !flags.Enabled(config.FeaturePortfolioAnalysis) {
		assessCfg.DisabledSubjects = []risk.SubjectType{risk.SubjectPortfolio}
	}
	assess := command.NewAssessRiskHandler(scorer, bus, assessCfg)

	var guidance query.GuidanceSource = cat
	if !flags.Enabled(config.FeatureProgressGuidance) {
		guidance = noGuidance{}
	}

	sched, err := startScheduler(ctx, cfg, st, m, log)
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	if sched != nil {
		defer func() { _ = sched.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		EnableMetrics:      cfg.Observability.MetricsEnabled,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		Version:            cfg.App.Version,
	}, httpapi.Dependencies{
		RecordActivity: activities,
		SubmitQuiz:     quizzes,
		AssessRisk:     assess,
		Progress:       query.NewGetProgressHandler(st.learners, tracker, guidance, nil),
		Achievements:   query.NewListAchievementsHandler(cat, st.achievements),
		Quizzes:        query.NewQuizHandler(cat),
		QuizAttempts:   query.NewListQuizAttemptsHandler(st.attempts),
		Protocols:      query.NewListProtocolsHandler(cat.RiskTables()),
		Tokens:         query.NewListTokensHandler(cat.RiskTables()),
		Assessments:    query.NewListRiskAssessmentsHandler(st.assessments),
		HealthChecker:  health,
		Recorder:       m,
		MetricsHandler: m.Handler(),
		Logger:         log,
	})

	errCh := server.StartAsync()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http shutdown failed", logger.Err(err))
	}
	log.Info("navigator stopped")
	return nil
}

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	opts.Format = cfg.Observability.LogFormat
	opts.File = cfg.Observability.LogFile
	return logger.New(opts).Named(cfg.App.Name)
}

// noGuidance hides milestones and recommendations.
type noGuidance struct{}

func (noGuidance) Guidance() progress.Guidance { return progress.Guidance{} }
