// Package progress owns a learner's cumulative activity counters and derives
// the overall progress percentage, level tier and learning streak from them.
//
// LearnerState is an immutable value: RecordActivity returns a new state and
// the caller decides whether to persist it.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// ActivityKind is the kind of completed learning activity.
type ActivityKind string

const (
	ActivityLesson     ActivityKind = "lesson"
	ActivityQuiz       ActivityKind = "quiz"
	ActivitySimulation ActivityKind = "simulation"
)

// AllActivityKinds lists the kinds in reporting order.
var AllActivityKinds = []ActivityKind{ActivityLesson, ActivityQuiz, ActivitySimulation}

// IsValid checks if the kind is known.
func (k ActivityKind) IsValid() bool {
	switch k {
	case ActivityLesson, ActivityQuiz, ActivitySimulation:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (k ActivityKind) String() string {
	return string(k)
}

// ParseActivityKind parses a case-insensitive activity kind.
func ParseActivityKind(s string) (ActivityKind, error) {
	k := ActivityKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", shared.WrapError("progress", "ParseActivityKind", shared.ErrInvalidInput,
			fmt.Sprintf("unknown activity kind %q", s), shared.ErrUnknownActivityKind)
	}
	return k, nil
}

// LearnerState is a learner's counters and derived progress.
// LevelTier is always TierFromPercent(OverallProgressPercent).
type LearnerState struct {
	UserID                 string       `json:"user_id"`
	LessonsCompleted       int          `json:"lessons_completed"`
	QuizzesPassed          int          `json:"quizzes_passed"`
	SimulationsCompleted   int          `json:"simulations_completed"`
	OverallProgressPercent float64      `json:"overall_progress_percent"`
	LevelTier              scoring.Tier `json:"level_tier"`
}

// NewLearnerState returns the zero state for a new learner.
func NewLearnerState(userID string) LearnerState {
	return LearnerState{
		UserID:    userID,
		LevelTier: scoring.TierBeginner,
	}
}

// Count returns the counter that matches kind.
func (s LearnerState) Count(kind ActivityKind) int {
	switch kind {
	case ActivityLesson:
		return s.LessonsCompleted
	case ActivityQuiz:
		return s.QuizzesPassed
	case ActivitySimulation:
		return s.SimulationsCompleted
	default:
		return 0
	}
}

// Validate checks the counters.
func (s LearnerState) Validate() error {
	if s.LessonsCompleted < 0 || s.QuizzesPassed < 0 || s.SimulationsCompleted < 0 {
		return shared.WrapError("progress", "Validate", shared.ErrValidation,
			"activity counters cannot be negative", shared.ErrNegativeValue)
	}
	return nil
}

// LearnerRecord is the persisted aggregate: state, streak and an optimistic
// concurrency version.
type LearnerRecord struct {
	State     LearnerState `json:"state"`
	Streak    Streak       `json:"streak"`
	Version   int64        `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewLearnerRecord returns a fresh record at version 0.
func NewLearnerRecord(userID string, now time.Time) *LearnerRecord {
	return &LearnerRecord{
		State:     NewLearnerState(userID),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Completion identifies one completed activity, used for duplicate
// suppression before RecordActivity is called.
type Completion struct {
	UserID      string       `json:"user_id"`
	Kind        ActivityKind `json:"kind"`
	RefID       string       `json:"ref_id"`
	CompletedAt time.Time    `json:"completed_at"`
}
