// Package saga contains business processes that span several repositories
// and end in published events.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/pkg/logger"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Load Progress → Gather Observations → Evaluate → Persist Changes →
//
//	Publish Unlock Events
// ══════════════════════════════════════════════════════════════════════════════

// AchievementCatalog provides achievement definitions in catalog order.
type AchievementCatalog interface {
	Achievements() []achievement.Definition
}

// UnlockObserver is told about every unlock.
type UnlockObserver interface {
	ObserveUnlock(achievementID, rarity string)
}

// AchievementCheckInput contains data needed to check for new achievements.
type AchievementCheckInput struct {
	// Record is the learner record right after the triggering change.
	Record progress.LearnerRecord

	// Trigger names what caused the check, e.g. "activity" or "quiz".
	Trigger string

	CorrelationID string
}

// Validate checks if the input is valid.
func (i AchievementCheckInput) Validate() error {
	if i.Record.State.UserID == "" {
		return shared.NewValidationError("achievement", "CheckAchievements", "user ID is required")
	}
	return nil
}

// AchievementFlowResult contains the result of achievement processing.
type AchievementFlowResult struct {
	UserID string

	// NewlyUnlocked lists achievements unlocked by this run, in catalog order.
	NewlyUnlocked []achievement.Definition

	// PointsAwarded sums the points of NewlyUnlocked.
	PointsAwarded int

	// Progress is the learner's standing on every achievement after the run.
	Progress map[string]achievement.Progress

	// Persisted is the number of progress rows written.
	Persisted int

	ProcessedAt time.Time
}

// HasNewAchievements returns true if any achievements were unlocked.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.NewlyUnlocked) > 0
}

// AchievementFlowStep represents a step in the achievement flow.
type AchievementFlowStep string

const (
	StepLoadProgress  AchievementFlowStep = "load_progress"
	StepGatherObs     AchievementFlowStep = "gather_observations"
	StepEvaluate      AchievementFlowStep = "evaluate"
	StepPersist       AchievementFlowStep = "persist"
	StepPublishEvents AchievementFlowStep = "publish_events"
	StepFlowComplete  AchievementFlowStep = "complete"
)

// AchievementFlowState tracks the current state of one run.
type AchievementFlowState struct {
	CurrentStep  AchievementFlowStep
	Input        AchievementCheckInput
	Existing     map[string]achievement.Progress
	Observations achievement.Observations
	Evaluation   achievement.Evaluation
	Persisted    int
	StartedAt    time.Time
	Error        error
	FailedStep   AchievementFlowStep
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowSaga evaluates achievements after a learner's state changes.
type AchievementFlowSaga struct {
	catalog      AchievementCatalog
	achievements achievement.Repository
	attempts     quiz.AttemptRepository
	evaluator    *achievement.Evaluator
	publisher    shared.EventPublisher
	observer     UnlockObserver
	logger       *logger.Logger
	now          timeutil.Clock
	enabled      bool
}

// AchievementFlowConfig contains configuration for the saga.
type AchievementFlowConfig struct {
	// Enabled turns the flow off entirely when false (feature flag "achievements").
	Enabled bool

	Clock    timeutil.Clock
	Observer UnlockObserver
	Logger   *logger.Logger
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{Enabled: true}
}

// NewAchievementFlowSaga creates the saga. attempts may be nil, in which case
// quiz-score conditions only ever see an empty history.
func NewAchievementFlowSaga(
	catalog AchievementCatalog,
	achievements achievement.Repository,
	attempts quiz.AttemptRepository,
	publisher shared.EventPublisher,
	config AchievementFlowConfig,
) *AchievementFlowSaga {
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	return &AchievementFlowSaga{
		catalog:      catalog,
		achievements: achievements,
		attempts:     attempts,
		evaluator:    achievement.NewEvaluator(config.Clock),
		publisher:    publisher,
		observer:     config.Observer,
		logger:       config.Logger.Named("achievement_flow"),
		now:          config.Clock,
		enabled:      config.Enabled,
	}
}

// Enabled reports whether the flow runs.
func (s *AchievementFlowSaga) Enabled() bool {
	return s != nil && s.enabled
}

// Execute runs the flow. Event publishing failures are logged and do not
// fail the run; persisted progress is the source of truth.
func (s *AchievementFlowSaga) Execute(ctx context.Context, input AchievementCheckInput) (*AchievementFlowResult, error) {
	state := &AchievementFlowState{
		CurrentStep: StepLoadProgress,
		Input:       input,
		StartedAt:   s.now().UTC(),
	}

	if err := input.Validate(); err != nil {
		state.FailedStep = StepLoadProgress
		state.Error = err
		return nil, s.wrapError(state, err)
	}

	if !s.enabled {
		return &AchievementFlowResult{
			UserID:      input.Record.State.UserID,
			ProcessedAt: state.StartedAt,
		}, nil
	}

	// Step 1: Load stored progress
	if err := s.stepLoadProgress(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Gather observations the learner state does not carry
	state.CurrentStep = StepGatherObs
	if err := s.stepGatherObservations(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Evaluate
	state.CurrentStep = StepEvaluate
	if err := s.stepEvaluate(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Persist changed entries
	state.CurrentStep = StepPersist
	if err := s.stepPersist(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 5: Publish unlock events
	state.CurrentStep = StepPublishEvents
	s.stepPublishEvents(state)

	state.CurrentStep = StepFlowComplete

	result := &AchievementFlowResult{
		UserID:        input.Record.State.UserID,
		NewlyUnlocked: state.Evaluation.NewlyUnlocked,
		Progress:      state.Evaluation.Progress,
		Persisted:     state.Persisted,
		ProcessedAt:   s.now().UTC(),
	}
	for _, def := range result.NewlyUnlocked {
		result.PointsAwarded += def.Points
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *AchievementFlowSaga) stepLoadProgress(ctx context.Context, state *AchievementFlowState) error {
	existing, err := s.achievements.Get(ctx, state.Input.Record.State.UserID)
	if err != nil {
		state.FailedStep = StepLoadProgress
		state.Error = fmt.Errorf("failed to load achievement progress: %w", err)
		return state.Error
	}
	state.Existing = existing
	return nil
}

func (s *AchievementFlowSaga) stepGatherObservations(ctx context.Context, state *AchievementFlowState) error {
	state.Observations.LongestStreakDays = state.Input.Record.Streak.Best

	if s.attempts == nil {
		return nil
	}
	scores, err := s.attempts.Scores(ctx, state.Input.Record.State.UserID)
	if err != nil {
		state.FailedStep = StepGatherObs
		state.Error = fmt.Errorf("failed to load quiz scores: %w", err)
		return state.Error
	}
	state.Observations.QuizScores = scores
	return nil
}

func (s *AchievementFlowSaga) stepEvaluate(state *AchievementFlowState) error {
	eval, err := s.evaluator.Evaluate(state.Input.Record.State, state.Observations, state.Existing, s.catalog.Achievements())
	if err != nil {
		state.FailedStep = StepEvaluate
		state.Error = err
		return err
	}
	state.Evaluation = eval
	return nil
}

func (s *AchievementFlowSaga) stepPersist(ctx context.Context, state *AchievementFlowState) error {
	changed := state.Evaluation.Changed(state.Existing)
	if len(changed) == 0 {
		return nil
	}
	if err := s.achievements.Upsert(ctx, state.Input.Record.State.UserID, changed); err != nil {
		state.FailedStep = StepPersist
		state.Error = fmt.Errorf("failed to save achievement progress: %w", err)
		return state.Error
	}
	state.Persisted = len(changed)
	return nil
}

func (s *AchievementFlowSaga) stepPublishEvents(state *AchievementFlowState) {
	userID := state.Input.Record.State.UserID
	for _, def := range state.Evaluation.NewlyUnlocked {
		if s.observer != nil {
			s.observer.ObserveUnlock(def.ID, string(def.Rarity))
		}

		at := s.now().UTC()
		if p := state.Evaluation.Progress[def.ID]; p.UnlockedAt != nil {
			at = *p.UnlockedAt
		}

		if s.publisher == nil {
			continue
		}
		event := shared.NewAchievementUnlockedEvent(userID, def.ID, def.Name, string(def.Rarity), def.Points, at)
		event.BaseEvent = event.BaseEvent.WithCorrelationID(state.Input.CorrelationID)
		if err := s.publisher.Publish(event); err != nil {
			s.logger.Warn("failed to publish achievement event",
				logger.UserID(userID),
				logger.AchievementID(def.ID),
				logger.Err(err),
			)
		}
	}
}

func (s *AchievementFlowSaga) wrapError(state *AchievementFlowState, err error) error {
	s.logger.Error("achievement flow failed",
		logger.UserID(state.Input.Record.State.UserID),
		logger.String("step", string(state.FailedStep)),
		logger.String("trigger", state.Input.Trigger),
		logger.Err(err),
	)
	return fmt.Errorf("achievement_flow: step %s: %w", state.FailedStep, err)
}
