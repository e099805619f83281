package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/pkg/circuitbreaker"
	"github.com/defi-academy/navigator/pkg/logger"
	"github.com/defi-academy/navigator/pkg/retry"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESS RISK COMMAND
// Scores a protocol, token, transaction or portfolio. Results are served
// cache-aside; concurrent misses for one key are computed once.
// ══════════════════════════════════════════════════════════════════════════════

// AssessRiskCommand asks for one assessment.
type AssessRiskCommand struct {
	// UserID is optional; it only tags the stored history record.
	UserID        string
	Subject       risk.Subject
	Inputs        risk.Inputs
	CorrelationID string
}

// Validate validates the command.
func (c AssessRiskCommand) Validate() error {
	if err := c.Subject.Validate(); err != nil {
		return err
	}
	return c.Inputs.Validate(c.Subject.Type)
}

// BatchItem is one entry of a batch request.
type BatchItem struct {
	Subject risk.Subject `json:"subject"`
	Inputs  risk.Inputs  `json:"inputs"`
}

// AssessRiskBatchCommand asks for several assessments at once.
type AssessRiskBatchCommand struct {
	UserID        string
	Items         []BatchItem
	CorrelationID string
}

// BatchItemResult is the outcome of one batch entry. Exactly one of
// Assessment and Error is set.
type BatchItemResult struct {
	Index      int              `json:"index"`
	Assessment *risk.Assessment `json:"assessment,omitempty"`
	Error      string           `json:"error,omitempty"`
	err        error
}

// Err returns the item's error value.
func (r BatchItemResult) Err() error {
	return r.err
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AssessRiskHandler handles risk assessment commands.
type AssessRiskHandler struct {
	scorer    *risk.Scorer
	revision  string
	cache     risk.Cache
	breaker   *circuitbreaker.CircuitBreaker
	writer    *retry.Retrier
	history   risk.Repository
	publisher shared.EventPublisher
	observer  Observer
	logger    *logger.Logger
	now       timeutil.Clock
	group     singleflight.Group

	cacheTTL     time.Duration
	batchLimit   int
	maxBatchSize int
	disabled     map[risk.SubjectType]bool
}

// AssessRiskHandlerConfig contains optional collaborators and limits.
type AssessRiskHandlerConfig struct {
	// Revision identifies the reference data; it is part of every cache key.
	Revision string

	// Cache is consulted when non-nil. Breaker guards it when non-nil.
	Cache   risk.Cache
	Breaker *circuitbreaker.CircuitBreaker

	// History stores every assessment when non-nil.
	History risk.Repository

	// CacheTTL defaults to the scorer's configured TTL.
	CacheTTL time.Duration

	// BatchConcurrency bounds parallel scoring in HandleBatch. Default: 8
	BatchConcurrency int

	// MaxBatchSize rejects larger batches. Default: 100
	MaxBatchSize int

	// DisabledSubjects are rejected as invalid input (feature flag
	// "portfolio_analysis" disables SubjectPortfolio).
	DisabledSubjects []risk.SubjectType

	Observer Observer
	Logger   *logger.Logger
	Clock    timeutil.Clock
}

// NewAssessRiskHandler creates a new AssessRiskHandler.
func NewAssessRiskHandler(scorer *risk.Scorer, publisher shared.EventPublisher, config AssessRiskHandlerConfig) *AssessRiskHandler {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = scorer.Config().CacheTTL
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = 8
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 100
	}

	disabled := make(map[risk.SubjectType]bool, len(config.DisabledSubjects))
	for _, t := range config.DisabledSubjects {
		disabled[t] = true
	}

	return &AssessRiskHandler{
		disabled:     disabled,
		scorer:       scorer,
		revision:     config.Revision,
		cache:        config.Cache,
		breaker:      config.Breaker,
		writer:       retry.CacheWriteRetrier(),
		history:      config.History,
		publisher:    publisher,
		observer:     config.Observer,
		logger:       config.Logger.Named("assess_risk"),
		now:          config.Clock,
		cacheTTL:     config.CacheTTL,
		batchLimit:   config.BatchConcurrency,
		maxBatchSize: config.MaxBatchSize,
	}
}

// Handle produces one assessment.
func (h *AssessRiskHandler) Handle(ctx context.Context, cmd AssessRiskCommand) (*risk.Assessment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if h.disabled[cmd.Subject.Type] {
		return nil, shared.NewValidationError("risk", "Assess",
			fmt.Sprintf("%s assessment is disabled", cmd.Subject.Type))
	}
	start := time.Now()

	key, err := risk.NewCacheKey(cmd.Subject, cmd.Inputs, h.revision)
	if err != nil {
		return nil, err
	}

	out, err := h.resolve(ctx, key, cmd.Subject, cmd.Inputs)
	if err != nil {
		return nil, err
	}

	assessment := &risk.Assessment{
		ID:         uuid.NewString(),
		UserID:     cmd.UserID,
		Subject:    cmd.Subject.Normalize(),
		Inputs:     cmd.Inputs,
		Result:     out.result,
		InputsHash: key.InputsHash,
		Cached:     out.cached,
		AssessedAt: h.now().UTC(),
	}

	if h.history != nil {
		if err := h.history.Save(ctx, assessment); err != nil {
			// History is best effort.
			h.logger.Warn("failed to store assessment",
				logger.SubjectType(string(out.result.SubjectType)),
				logger.SubjectKey(out.result.SubjectKey),
				logger.Err(err),
			)
		}
	}

	h.observer.ObserveAssessment(string(out.result.SubjectType), string(out.result.Level), time.Since(start))

	event := shared.NewRiskAssessedEvent(assessment.ID, string(out.result.SubjectType), out.result.SubjectKey,
		out.result.Overall, string(out.result.Level), out.cached, assessment.AssessedAt)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", logger.EventType(string(event.EventType())), logger.Err(err))
	}

	return assessment, nil
}

// HandleBatch assesses every item with bounded concurrency. Item failures
// are reported per item; the call itself fails only on an invalid batch.
func (h *AssessRiskHandler) HandleBatch(ctx context.Context, cmd AssessRiskBatchCommand) ([]BatchItemResult, error) {
	if len(cmd.Items) == 0 {
		return nil, shared.NewValidationError("risk", "AssessBatch", "batch is empty")
	}
	if len(cmd.Items) > h.maxBatchSize {
		return nil, shared.NewValidationError("risk", "AssessBatch",
			fmt.Sprintf("batch has %d items, limit is %d", len(cmd.Items), h.maxBatchSize))
	}

	results := make([]BatchItemResult, len(cmd.Items))

	var g errgroup.Group
	g.SetLimit(h.batchLimit)
	for i, item := range cmd.Items {
		g.Go(func() error {
			a, err := h.Handle(ctx, AssessRiskCommand{
				UserID:        cmd.UserID,
				Subject:       item.Subject,
				Inputs:        item.Inputs,
				CorrelationID: cmd.CorrelationID,
			})
			results[i] = BatchItemResult{Index: i, Assessment: a, err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache-aside
// ─────────────────────────────────────────────────────────────────────────────

type resolved struct {
	result risk.Result
	cached bool
}

func (h *AssessRiskHandler) resolve(ctx context.Context, key risk.CacheKey, subject risk.Subject, inputs risk.Inputs) (resolved, error) {
	if h.cache == nil {
		h.observer.ObserveCache(CacheBypass)
		r, err := h.scorer.Assess(subject, inputs)
		return resolved{result: r}, err
	}

	v, err, _ := h.group.Do(key.String(), func() (any, error) {
		return h.lookupOrCompute(ctx, key, subject, inputs)
	})
	if err != nil {
		return resolved{}, err
	}
	return v.(resolved), nil
}

func (h *AssessRiskHandler) lookupOrCompute(ctx context.Context, key risk.CacheKey, subject risk.Subject, inputs risk.Inputs) (resolved, error) {
	data, err := h.guard(ctx, func(ctx context.Context) ([]byte, error) {
		data, err := h.cache.Get(ctx, key)
		if errors.Is(err, risk.ErrCacheMiss) {
			return nil, nil
		}
		return data, err
	})

	usable := err == nil
	switch {
	case err != nil:
		h.observer.ObserveCache(CacheBypass)
		h.logger.Debug("risk cache unavailable", logger.Err(err))
	case data != nil:
		if r, _, derr := risk.DecodeCachedResult(data); derr == nil {
			h.observer.ObserveCache(CacheHit)
			return resolved{result: r, cached: true}, nil
		}
		h.observer.ObserveCache(CacheMiss)
	default:
		h.observer.ObserveCache(CacheMiss)
	}

	r, err := h.scorer.Assess(subject, inputs)
	if err != nil {
		return resolved{}, err
	}

	if usable {
		h.store(ctx, key, r)
	}
	return resolved{result: r}, nil
}

func (h *AssessRiskHandler) store(ctx context.Context, key risk.CacheKey, r risk.Result) {
	data, err := risk.EncodeCachedResult(r, h.now())
	if err != nil {
		h.logger.Warn("failed to encode risk result", logger.Err(err))
		return
	}

	err = h.writer.Do(ctx, func(ctx context.Context) error {
		_, err := h.guard(ctx, func(ctx context.Context) ([]byte, error) {
			return nil, h.cache.Set(ctx, key, data, h.cacheTTL)
		})
		if circuitbreaker.IsRejected(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		h.observer.ObserveCache(CacheWriteError)
		h.logger.Debug("risk cache write failed", logger.String("key", key.String()), logger.Err(err))
	}
}

// guard runs fn through the breaker when one is configured.
func (h *AssessRiskHandler) guard(ctx context.Context, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if h.breaker == nil {
		return fn(ctx)
	}
	return circuitbreaker.Call(ctx, h.breaker, fn)
}
