package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/defi-academy/navigator/internal/application/saga"
	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/pkg/logger"
	"github.com/defi-academy/navigator/pkg/retry"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Counts one completed lesson, passed quiz or finished simulation, updates
// the learning streak and re-evaluates achievements.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	UserID string

	// Kind is lesson, quiz or simulation.
	Kind string

	// RefID identifies the completed item. The same (user, kind, ref) is
	// counted once. An empty RefID is never treated as a duplicate.
	RefID string

	// OccurredAt defaults to now when zero.
	OccurredAt time.Time

	CorrelationID string
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return shared.NewValidationError("progress", "RecordActivity", "user_id is required")
	}
	if _, err := progress.ParseActivityKind(c.Kind); err != nil {
		return err
	}
	return nil
}

// RecordActivityResult contains the result of recording an activity.
type RecordActivityResult struct {
	UserID string
	Kind   progress.ActivityKind
	RefID  string

	// Duplicate is true when the activity had been recorded before; State
	// is then the stored state, unchanged.
	Duplicate bool

	Previous progress.LearnerState
	State    progress.LearnerState
	Streak   progress.Streak

	LevelChanged bool

	NewAchievements []achievement.Definition

	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	learners  progress.Repository
	tracker   *progress.Tracker
	flow      *saga.AchievementFlowSaga
	publisher shared.EventPublisher
	observer  Observer
	logger    *logger.Logger
	now       timeutil.Clock
	retrier   *retry.Retrier
}

// RecordActivityHandlerConfig contains optional collaborators.
type RecordActivityHandlerConfig struct {
	Observer Observer
	Logger   *logger.Logger
	Clock    timeutil.Clock
	Retrier  *retry.Retrier
}

// NewRecordActivityHandler creates a new RecordActivityHandler. flow and
// publisher may be nil.
func NewRecordActivityHandler(
	learners progress.Repository,
	tracker *progress.Tracker,
	flow *saga.AchievementFlowSaga,
	publisher shared.EventPublisher,
	config RecordActivityHandlerConfig,
) *RecordActivityHandler {
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
	if config.Retrier == nil {
		config.Retrier = retry.OptimisticLockRetrier(shared.IsRetryable)
	}

	return &RecordActivityHandler{
		learners:  learners,
		tracker:   tracker,
		flow:      flow,
		publisher: publisher,
		observer:  config.Observer,
		logger:    config.Logger.Named("record_activity"),
		now:       config.Clock,
		retrier:   config.Retrier,
	}
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	kind, _ := progress.ParseActivityKind(cmd.Kind)
	at := cmd.OccurredAt
	if at.IsZero() {
		at = h.now()
	}
	at = at.UTC()

	refID := strings.TrimSpace(cmd.RefID)
	if refID == "" {
		refID = uuid.NewString()
	}

	completion := &progress.Completion{
		UserID:      cmd.UserID,
		Kind:        kind,
		RefID:       refID,
		CompletedAt: at,
	}

	var result *RecordActivityResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = h.apply(ctx, completion)
		return err
	})
	if err != nil {
		h.observer.ObserveActivity(string(kind), OutcomeFailed)
		return nil, fmt.Errorf("record_activity: %w", err)
	}

	if result.Duplicate {
		h.observer.ObserveActivity(string(kind), OutcomeDuplicate)
		return result, nil
	}
	h.observer.ObserveActivity(string(kind), OutcomeRecorded)

	h.publishEvents(result, cmd.CorrelationID)

	if h.flow.Enabled() {
		record := progress.LearnerRecord{State: result.State, Streak: result.Streak}
		flow, err := h.flow.Execute(ctx, saga.AchievementCheckInput{
			Record:        record,
			Trigger:       "activity",
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			// The activity is already stored; achievements catch up on the next change.
			h.logger.Warn("achievement evaluation failed", logger.UserID(cmd.UserID), logger.Err(err))
		} else {
			result.NewAchievements = flow.NewlyUnlocked
		}
	}

	h.logger.Debug("activity recorded",
		logger.UserID(cmd.UserID),
		logger.ActivityKind(string(kind)),
		logger.Float64("progress_percent", result.State.OverallProgressPercent),
	)
	return result, nil
}

// apply is one optimistic read-modify-write cycle.
func (h *RecordActivityHandler) apply(ctx context.Context, c *progress.Completion) (*RecordActivityResult, error) {
	record, err := h.learners.Get(ctx, c.UserID)
	switch {
	case errors.Is(err, shared.ErrLearnerNotFound):
		record = progress.NewLearnerRecord(c.UserID, c.CompletedAt)
	case err != nil:
		return nil, err
	}

	result := &RecordActivityResult{
		UserID:     c.UserID,
		Kind:       c.Kind,
		RefID:      c.RefID,
		Previous:   record.State,
		State:      record.State,
		Streak:     record.Streak,
		RecordedAt: c.CompletedAt,
	}

	if record.Version > 0 {
		done, err := h.learners.HasCompleted(ctx, c.UserID, c.Kind, c.RefID)
		if err != nil {
			return nil, err
		}
		if done {
			result.Duplicate = true
			return result, nil
		}
	}

	next, err := h.tracker.RecordActivity(record.State, c.Kind)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	expected := record.Version
	updated := *record
	updated.State = next
	updated.Streak = record.Streak.Record(c.CompletedAt)
	updated.UpdatedAt = h.now().UTC()

	if err := h.learners.Save(ctx, &updated, c, expected); err != nil {
		if errors.Is(err, shared.ErrActivityAlreadyDone) {
			result.Duplicate = true
			return result, nil
		}
		return nil, err
	}

	result.State = updated.State
	result.Streak = updated.Streak
	result.LevelChanged = result.Previous.LevelTier != updated.State.LevelTier
	return result, nil
}

func (h *RecordActivityHandler) publishEvents(r *RecordActivityResult, correlationID string) {
	recorded := shared.NewActivityRecordedEvent(r.UserID, string(r.Kind), r.RefID,
		r.State.OverallProgressPercent, string(r.State.LevelTier), r.RecordedAt)
	recorded.BaseEvent = recorded.BaseEvent.WithCorrelationID(correlationID)
	events := []shared.Event{recorded}

	if r.LevelChanged {
		changed := shared.NewLevelChangedEvent(r.UserID, string(r.Previous.LevelTier), string(r.State.LevelTier), r.RecordedAt)
		changed.BaseEvent = changed.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, changed)
	}

	for _, e := range events {
		if err := h.publisher.Publish(e); err != nil {
			h.logger.Warn("failed to publish event", logger.EventType(string(e.EventType())), logger.Err(err))
		}
	}
}
