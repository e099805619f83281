package progress

import (
	"fmt"

	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// Totals are the curriculum sizes used as ratio denominators.
type Totals struct {
	Lessons     int `json:"lessons" yaml:"lessons"`
	Quizzes     int `json:"quizzes" yaml:"quizzes"`
	Simulations int `json:"simulations" yaml:"simulations"`
}

// DefaultTotals returns 20 lessons, 15 quizzes and 10 simulations.
func DefaultTotals() Totals {
	return Totals{Lessons: 20, Quizzes: 15, Simulations: 10}
}

// Validate checks that every total is positive.
func (t Totals) Validate() error {
	if t.Lessons <= 0 || t.Quizzes <= 0 || t.Simulations <= 0 {
		return shared.NewConfigurationError("progress", "ValidateTotals",
			fmt.Sprintf("curriculum totals must be positive, got %d/%d/%d", t.Lessons, t.Quizzes, t.Simulations))
	}
	return nil
}

// For returns the total for kind.
func (t Totals) For(kind ActivityKind) int {
	switch kind {
	case ActivityLesson:
		return t.Lessons
	case ActivityQuiz:
		return t.Quizzes
	case ActivitySimulation:
		return t.Simulations
	default:
		return 0
	}
}

// Override returns t with every positive field of o applied.
func (t Totals) Override(o Totals) Totals {
	if o.Lessons > 0 {
		t.Lessons = o.Lessons
	}
	if o.Quizzes > 0 {
		t.Quizzes = o.Quizzes
	}
	if o.Simulations > 0 {
		t.Simulations = o.Simulations
	}
	return t
}

// Tracker derives progress from counters. It is the only code that produces
// new LearnerState values.
type Tracker struct {
	calc   *scoring.Calculator
	totals Totals
}

// NewTracker validates totals and returns a Tracker.
func NewTracker(calc *scoring.Calculator, totals Totals) (*Tracker, error) {
	if calc == nil {
		return nil, shared.NewConfigurationError("progress", "NewTracker", "scoring calculator is required")
	}
	if err := totals.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{calc: calc, totals: totals}, nil
}

// Totals returns the configured denominators.
func (t *Tracker) Totals() Totals {
	return t.totals
}

// Calculator returns the underlying scoring calculator.
func (t *Tracker) Calculator() *scoring.Calculator {
	return t.calc
}

// RecordActivity increments exactly one counter and recomputes percent and
// tier. It is not idempotent: duplicate suppression belongs to the caller.
func (t *Tracker) RecordActivity(state LearnerState, kind ActivityKind) (LearnerState, error) {
	if err := state.Validate(); err != nil {
		return state, err
	}

	next := state
	switch kind {
	case ActivityLesson:
		next.LessonsCompleted++
	case ActivityQuiz:
		next.QuizzesPassed++
	case ActivitySimulation:
		next.SimulationsCompleted++
	default:
		return state, shared.WrapError("progress", "RecordActivity", shared.ErrInvalidInput,
			fmt.Sprintf("unknown activity kind %q", kind), shared.ErrUnknownActivityKind)
	}
	return t.Recompute(next), nil
}

// Recompute derives OverallProgressPercent and LevelTier from the counters.
func (t *Tracker) Recompute(state LearnerState) LearnerState {
	state.OverallProgressPercent = t.calc.WeightedProgress(
		scoring.Ratio(state.LessonsCompleted, t.totals.Lessons),
		scoring.Ratio(state.QuizzesPassed, t.totals.Quizzes),
		scoring.Ratio(state.SimulationsCompleted, t.totals.Simulations),
	)
	state.LevelTier = t.calc.TierFromPercent(state.OverallProgressPercent)
	return state
}

// Ratio returns the capped completion ratio for one kind.
func (t *Tracker) Ratio(state LearnerState, kind ActivityKind) float64 {
	return scoring.Ratio(state.Count(kind), t.totals.For(kind))
}
