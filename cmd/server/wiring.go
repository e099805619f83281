package main

import (
	"context"
	"fmt"
	"time"

	"github.com/defi-academy/navigator/config"
	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/internal/infrastructure/messaging"
	"github.com/defi-academy/navigator/internal/infrastructure/metrics"
	"github.com/defi-academy/navigator/internal/infrastructure/persistence/memory"
	"github.com/defi-academy/navigator/internal/infrastructure/persistence/postgres"
	"github.com/defi-academy/navigator/internal/infrastructure/persistence/redis"
	"github.com/defi-academy/navigator/internal/infrastructure/scheduler"
	"github.com/defi-academy/navigator/internal/interface/http/handlers"
	"github.com/defi-academy/navigator/pkg/circuitbreaker"
	"github.com/defi-academy/navigator/pkg/logger"
	"github.com/defi-academy/navigator/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

type stores struct {
	learners     progress.Repository
	attempts     quiz.AttemptRepository
	achievements achievement.Repository
	assessments  risk.Repository
	conn         *postgres.Connection
}

func (s *stores) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// openStores connects to PostgreSQL, or falls back to memory when no
// DATABASE_URL is configured.
func openStores(ctx context.Context, cfg *config.Config, m *metrics.Metrics, health *handlers.CompositeHealthChecker, log *logger.Logger) (*stores, error) {
	if cfg.UseMemoryStore() {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		return &stores{
			learners:     memory.NewLearnerRepository(),
			attempts:     memory.NewQuizAttemptRepository(),
			achievements: memory.NewAchievementRepository(),
			assessments:  memory.NewRiskAssessmentRepository(),
		}, nil
	}

	pgCfg := postgres.DefaultConfig(cfg.Database.URL)
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database")
	retrier := retry.DatabaseRetrier().With(
		retry.WithOnRetry(func(attempt int, err error, _ time.Duration) {
			log.Warn("database not ready, retrying", logger.Int("attempt", attempt), logger.Err(err))
		}),
	)
	conn, err := retry.DoWithData(ctx, retrier, func(ctx context.Context) (*postgres.Connection, error) {
		c, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, retry.Retryable(err)
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", applied))
	}

	breaker := circuitbreaker.DatabaseBreaker(breakerObserver(m, log))
	health.AddCheck("database", func(ctx context.Context) error {
		return breaker.Execute(ctx, conn.Ping)
	})

	return &stores{
		learners:     postgres.NewLearnerRepository(conn),
		attempts:     postgres.NewQuizAttemptRepository(conn),
		achievements: postgres.NewAchievementRepository(conn),
		assessments:  postgres.NewRiskAssessmentRepository(conn),
		conn:         conn,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

type cacheLayer struct {
	client  *redis.Client
	risk    *redis.RiskCache
	breaker *circuitbreaker.CircuitBreaker
}

func (c *cacheLayer) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}

// openCache connects to Redis. Failure is not fatal: the engine runs without
// a cache and with a process-local event bus.
func openCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics, health *handlers.CompositeHealthChecker, log *logger.Logger) *cacheLayer {
	if cfg.Redis.Disabled {
		log.Info("redis disabled, risk cache off")
		return &cacheLayer{}
	}

	redisCfg := redis.DefaultConfig()
	if cfg.Redis.URL != "" {
		parsed, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Warn("invalid REDIS_URL, risk cache off", logger.Err(err))
			return &cacheLayer{}
		}
		redisCfg = parsed
	} else {
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
	}
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	client, err := redis.NewClient(ctx, redisCfg)
	if err != nil {
		log.Warn("redis unreachable, risk cache off", logger.String("addr", redisCfg.Addr()), logger.Err(err))
		return &cacheLayer{}
	}
	log.Info("redis connection established", logger.String("addr", redisCfg.Addr()))

	health.AddOptionalCheck("redis", handlers.NewPingCheck(client))

	return &cacheLayer{
		client:  client,
		risk:    redis.NewRiskCache(client),
		breaker: circuitbreaker.CacheBreaker(breakerObserver(m, log)),
	}
}

func breakerObserver(m *metrics.Metrics, log *logger.Logger) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		m.ObserveBreakerState(name, int(to))
		log.Warn("circuit breaker state changed",
			logger.Component(name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func openEventBus(ctx context.Context, cfg *config.Config, cache *cacheLayer, m *metrics.Metrics, log *logger.Logger) (shared.EventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	if cfg.Engine.EventWorkers > 0 {
		local.WorkerPoolSize = cfg.Engine.EventWorkers
	}
	local.Logger = log
	local.Recorder = m

	if cache.client == nil {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client: cache.client.Redis(),
		Local:  local,
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}
	return bus, nil
}

// subscribe attaches the audit log handlers.
func subscribe(bus shared.EventSubscriber, log *logger.Logger) error {
	audit := log.Named("events")

	if err := bus.SubscribeAll(func(e shared.Event) error {
		audit.Debug("event",
			logger.EventType(string(e.EventType())),
			logger.String("aggregate_id", e.AggregateID()),
		)
		return nil
	}); err != nil {
		return err
	}

	if err := bus.Subscribe(shared.EventLevelChanged, func(e shared.Event) error {
		p := e.Payload()
		audit.Info("learner changed level",
			logger.UserID(e.AggregateID()),
			logger.Any("from", p["from"]),
			logger.Any("to", p["to"]),
		)
		return nil
	}); err != nil {
		return err
	}

	return bus.Subscribe(shared.EventAchievementUnlocked, func(e shared.Event) error {
		p := e.Payload()
		audit.Info("achievement unlocked",
			logger.UserID(e.AggregateID()),
			logger.Any("achievement_id", p["achievement_id"]),
			logger.Any("rarity", p["rarity"]),
		)
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MAINTENANCE
// ══════════════════════════════════════════════════════════════════════════════

// startScheduler runs the history retention job. It returns nil when
// retention is disabled.
func startScheduler(ctx context.Context, cfg *config.Config, st *stores, m *metrics.Metrics, log *logger.Logger) (*scheduler.Scheduler, error) {
	if cfg.Engine.AssessmentRetention <= 0 {
		log.Info("assessment retention disabled")
		return nil, nil
	}

	prune, err := scheduler.NewPruneAssessmentsJob(st.assessments, cfg.Engine.AssessmentRetention, log)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(scheduler.Config{Logger: log, Observer: m})
	if err := sched.Register(prune, scheduler.Every(cfg.Engine.PruneInterval)); err != nil {
		return nil, err
	}
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	return sched, nil
}
