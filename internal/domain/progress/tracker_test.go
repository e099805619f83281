package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker(scoring.MustNewCalculator(scoring.DefaultConfig()), DefaultTotals())
	require.NoError(t, err)
	return tr
}

func TestRecordActivity_TwentyLessonsReachAdvanced(t *testing.T) {
	tr := newTracker(t)
	state := NewLearnerState("user-1")

	var err error
	for i := 0; i < 20; i++ {
		state, err = tr.RecordActivity(state, ActivityLesson)
		require.NoError(t, err)
	}

	assert.Equal(t, 20, state.LessonsCompleted)
	assert.Equal(t, 0, state.QuizzesPassed)
	assert.Equal(t, 0, state.SimulationsCompleted)
	assert.Equal(t, 50.0, state.OverallProgressPercent)
	assert.Equal(t, scoring.TierAdvanced, state.LevelTier)
}

func TestRecordActivity_ReturnsNewValue(t *testing.T) {
	tr := newTracker(t)
	before := NewLearnerState("user-1")

	after, err := tr.RecordActivity(before, ActivityQuiz)
	require.NoError(t, err)

	assert.Equal(t, 0, before.QuizzesPassed, "input state must not change")
	assert.Equal(t, 1, after.QuizzesPassed)
	assert.Equal(t, 2.0, after.OverallProgressPercent)
}

func TestRecordActivity_NotIdempotent(t *testing.T) {
	tr := newTracker(t)
	state := NewLearnerState("user-1")

	state, _ = tr.RecordActivity(state, ActivitySimulation)
	state, _ = tr.RecordActivity(state, ActivitySimulation)

	assert.Equal(t, 2, state.SimulationsCompleted)
}

func TestRecordActivity_OverCompletionIsCapped(t *testing.T) {
	tr := newTracker(t)
	state := LearnerState{UserID: "u", LessonsCompleted: 40, QuizzesPassed: 30, SimulationsCompleted: 9}

	next, err := tr.RecordActivity(state, ActivitySimulation)
	require.NoError(t, err)
	assert.Equal(t, 100.0, next.OverallProgressPercent)
	assert.Equal(t, scoring.TierExpert, next.LevelTier)

	next, err = tr.RecordActivity(next, ActivityLesson)
	require.NoError(t, err)
	assert.Equal(t, 100.0, next.OverallProgressPercent)
}

func TestRecordActivity_TierAlwaysMatchesPercent(t *testing.T) {
	tr := newTracker(t)
	calc := tr.Calculator()
	state := NewLearnerState("u")

	kinds := []ActivityKind{ActivityLesson, ActivityQuiz, ActivityLesson, ActivitySimulation}
	for i := 0; i < 60; i++ {
		var err error
		state, err = tr.RecordActivity(state, kinds[i%len(kinds)])
		require.NoError(t, err)
		assert.Equal(t, calc.TierFromPercent(state.OverallProgressPercent), state.LevelTier)
	}
}

func TestRecordActivity_Errors(t *testing.T) {
	tr := newTracker(t)

	_, err := tr.RecordActivity(NewLearnerState("u"), ActivityKind("exam"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnknownActivityKind)
	assert.True(t, shared.IsValidation(err))

	_, err = tr.RecordActivity(LearnerState{LessonsCompleted: -1}, ActivityLesson)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestRecordActivity_CustomTotals(t *testing.T) {
	tr, err := NewTracker(scoring.MustNewCalculator(scoring.DefaultConfig()), Totals{Lessons: 2, Quizzes: 15, Simulations: 10})
	require.NoError(t, err)

	state, err := tr.RecordActivity(NewLearnerState("u"), ActivityLesson)
	require.NoError(t, err)
	assert.Equal(t, 25.0, state.OverallProgressPercent)
	assert.Equal(t, scoring.TierIntermediate, state.LevelTier)
}

func TestNewTracker_RejectsBadTotals(t *testing.T) {
	_, err := NewTracker(scoring.MustNewCalculator(scoring.DefaultConfig()), Totals{Lessons: 0, Quizzes: 15, Simulations: 10})
	assert.True(t, shared.IsConfiguration(err))

	_, err = NewTracker(nil, DefaultTotals())
	assert.True(t, shared.IsConfiguration(err))
}

func TestTotals_Override(t *testing.T) {
	got := DefaultTotals().Override(Totals{Quizzes: 12})
	assert.Equal(t, Totals{Lessons: 20, Quizzes: 12, Simulations: 10}, got)
}

func TestParseActivityKind(t *testing.T) {
	k, err := ParseActivityKind(" Lesson ")
	require.NoError(t, err)
	assert.Equal(t, ActivityLesson, k)

	_, err = ParseActivityKind("homework")
	assert.True(t, shared.IsValidation(err))
}

func TestReport(t *testing.T) {
	tr := newTracker(t)
	guidance := Guidance{
		Milestones: map[scoring.Tier]string{
			scoring.TierBeginner:     "Complete 5 lessons to reach Intermediate level",
			scoring.TierIntermediate: "Pass 10 quizzes to unlock advanced features",
		},
		BasicLessonsTarget: 5,
		ContinueLessons:    "Continue with basic DeFi lessons",
		TakeQuizzes:        "Take quizzes to test your knowledge",
		TrySimulation:      "Try your first simulation on testnet",
		KeepGoing:          "Keep up the great work!",
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	state := tr.Recompute(LearnerState{UserID: "u", LessonsCompleted: 3, QuizzesPassed: 1})
	record := LearnerRecord{State: state, Streak: Streak{Current: 2, Best: 4, LastActiveDate: now.AddDate(0, 0, -1)}}

	report := tr.Report(record, guidance, now)

	assert.Equal(t, "Complete 5 lessons to reach Intermediate level", report.NextMilestone)
	assert.Equal(t, scoring.TierIntermediate, report.NextTier)
	assert.Equal(t, 20.0, report.NextTierAtPercent)
	assert.Equal(t, 2, report.CurrentStreak)
	assert.Equal(t, 4, report.BestStreak)
	require.Len(t, report.Activities, 3)
	assert.Equal(t, ActivityProgress{Kind: ActivityLesson, Completed: 3, Total: 20, Percent: 15}, report.Activities[0])
	assert.Equal(t, []string{
		"Continue with basic DeFi lessons",
		"Take quizzes to test your knowledge",
		"Try your first simulation on testnet",
	}, report.Recommendations)
}

func TestGuidance_RecommendKeepGoing(t *testing.T) {
	g := Guidance{BasicLessonsTarget: 5, ContinueLessons: "a", TakeQuizzes: "b", TrySimulation: "c", KeepGoing: "done"}
	got := g.Recommend(LearnerState{LessonsCompleted: 6, QuizzesPassed: 6, SimulationsCompleted: 1})
	assert.Equal(t, []string{"done"}, got)
}
