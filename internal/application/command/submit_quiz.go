package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/defi-academy/navigator/internal/application/saga"
	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/pkg/logger"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ COMMAND
// Grades a submission, stores the attempt and, on the first pass of a quiz,
// counts it as a completed quiz activity.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitQuizCommand contains a learner's answers.
type SubmitQuizCommand struct {
	UserID        string
	QuizID        string
	Answers       []int
	CorrelationID string
}

// Validate validates the command.
func (c SubmitQuizCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return shared.NewValidationError("quiz", "Submit", "user_id is required")
	}
	if strings.TrimSpace(c.QuizID) == "" {
		return shared.NewValidationError("quiz", "Submit", "quiz_id is required")
	}
	return nil
}

// SubmitQuizResult contains the graded attempt and its side effects.
type SubmitQuizResult struct {
	Attempt quiz.Attempt

	// FirstPass is true when this attempt counted as a passed quiz.
	FirstPass bool

	// Progress is set when the attempt changed the learner's counters.
	Progress *RecordActivityResult

	NewAchievements []achievement.Definition
}

// SubmitQuizHandler handles the SubmitQuizCommand.
type SubmitQuizHandler struct {
	catalog    quiz.Catalog
	attempts   quiz.AttemptRepository
	learners   progress.Repository
	activities *RecordActivityHandler
	flow       *saga.AchievementFlowSaga
	publisher  shared.EventPublisher
	observer   Observer
	logger     *logger.Logger
	now        timeutil.Clock
}

// SubmitQuizHandlerConfig contains optional collaborators.
type SubmitQuizHandlerConfig struct {
	Observer Observer
	Logger   *logger.Logger
	Clock    timeutil.Clock
}

// NewSubmitQuizHandler creates a new SubmitQuizHandler.
func NewSubmitQuizHandler(
	catalog quiz.Catalog,
	attempts quiz.AttemptRepository,
	learners progress.Repository,
	activities *RecordActivityHandler,
	flow *saga.AchievementFlowSaga,
	publisher shared.EventPublisher,
	config SubmitQuizHandlerConfig,
) *SubmitQuizHandler {
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
	return &SubmitQuizHandler{
		catalog:    catalog,
		attempts:   attempts,
		learners:   learners,
		activities: activities,
		flow:       flow,
		publisher:  publisher,
		observer:   config.Observer,
		logger:     config.Logger.Named("submit_quiz"),
		now:        config.Clock,
	}
}

// Handle grades and stores the submission.
func (h *SubmitQuizHandler) Handle(ctx context.Context, cmd SubmitQuizCommand) (*SubmitQuizResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	def, err := h.catalog.Quiz(cmd.QuizID)
	if err != nil {
		return nil, err
	}

	graded, err := quiz.Grade(cmd.Answers, def)
	if err != nil {
		return nil, err
	}

	attempt := quiz.Attempt{
		ID:          uuid.NewString(),
		UserID:      cmd.UserID,
		QuizID:      def.ID,
		Answers:     slices.Clone(cmd.Answers),
		Result:      graded,
		SubmittedAt: h.now().UTC(),
	}
	if err := h.attempts.Save(ctx, &attempt); err != nil {
		return nil, fmt.Errorf("submit_quiz: %w", err)
	}
	h.observer.ObserveQuizAttempt(def.ID, graded.Passed)
	h.publishGraded(attempt, cmd.CorrelationID)

	result := &SubmitQuizResult{Attempt: attempt}

	if graded.Passed {
		recorded, err := h.activities.Handle(ctx, RecordActivityCommand{
			UserID:        cmd.UserID,
			Kind:          string(progress.ActivityQuiz),
			RefID:         def.ID,
			OccurredAt:    attempt.SubmittedAt,
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			return nil, err
		}
		if !recorded.Duplicate {
			result.FirstPass = true
			result.Progress = recorded
			result.NewAchievements = recorded.NewAchievements
			return result, nil
		}
	}

	// The counters did not change, but score-based achievements may have.
	unlocked, err := h.evaluate(ctx, cmd)
	if err != nil {
		h.logger.Warn("achievement evaluation failed", logger.UserID(cmd.UserID), logger.QuizID(def.ID), logger.Err(err))
	} else {
		result.NewAchievements = unlocked
	}
	return result, nil
}

func (h *SubmitQuizHandler) evaluate(ctx context.Context, cmd SubmitQuizCommand) ([]achievement.Definition, error) {
	if !h.flow.Enabled() {
		return nil, nil
	}

	record, err := h.learners.Get(ctx, cmd.UserID)
	switch {
	case errors.Is(err, shared.ErrLearnerNotFound):
		record = progress.NewLearnerRecord(cmd.UserID, h.now().UTC())
	case err != nil:
		return nil, err
	}

	flow, err := h.flow.Execute(ctx, saga.AchievementCheckInput{
		Record:        *record,
		Trigger:       "quiz",
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, err
	}
	return flow.NewlyUnlocked, nil
}

func (h *SubmitQuizHandler) publishGraded(a quiz.Attempt, correlationID string) {
	event := shared.NewQuizGradedEvent(a.UserID, a.ID, a.QuizID, a.Result.ScorePercent, a.Result.Passed, a.SubmittedAt)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(correlationID)
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", logger.EventType(string(event.EventType())), logger.Err(err))
	}
}
