package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func testCatalog() []Definition {
	return []Definition{
		{ID: "first_lesson", Rarity: RarityCommon, Points: 10, Condition: Condition{Kind: KindLessonCount, Target: 1}},
		{ID: "quiz_master", Rarity: RarityUncommon, Points: 25, Condition: Condition{Kind: KindQuizHighScoreCount, Target: 3, MinScore: intPtr(90)}},
		{ID: "simulation_pro", Rarity: RarityRare, Points: 50, Condition: Condition{Kind: KindSimulationCount, Target: 5}},
		{ID: "learning_streak_7", Rarity: RarityUncommon, Points: 30, Condition: Condition{Kind: KindLearningStreak, Target: 7}},
		{ID: "perfect_quiz", Rarity: RarityRare, Points: 75, Condition: Condition{Kind: KindPerfectQuizScore, Target: 1}},
		{ID: "defi_expert", Rarity: RarityLegendary, Points: 200, Condition: Condition{Kind: KindExpertLevel, Target: 1}},
	}
}

func newEvaluator() *Evaluator {
	return NewEvaluator(timeutil.FixedClock(fixedNow))
}

func TestEvaluate_CountersAndObservations(t *testing.T) {
	state := progress.LearnerState{LessonsCompleted: 2, SimulationsCompleted: 3, LevelTier: scoring.TierIntermediate}
	obs := Observations{QuizScores: []int{95, 80, 100, 90}, LongestStreakDays: 4}

	eval, err := newEvaluator().Evaluate(state, obs, nil, testCatalog())
	require.NoError(t, err)

	p := eval.Progress
	assert.Equal(t, 1, p["first_lesson"].Progress, "capped at target")
	assert.True(t, p["first_lesson"].Unlocked)
	assert.Equal(t, 3, p["quiz_master"].Progress)
	assert.True(t, p["quiz_master"].Unlocked)
	assert.Equal(t, 3, p["simulation_pro"].Progress)
	assert.False(t, p["simulation_pro"].Unlocked)
	assert.Equal(t, 4, p["learning_streak_7"].Progress)
	assert.Equal(t, 1, p["perfect_quiz"].Progress)
	assert.True(t, p["perfect_quiz"].Unlocked)
	assert.Equal(t, 0, p["defi_expert"].Progress)

	ids := make([]string, 0, len(eval.NewlyUnlocked))
	for _, d := range eval.NewlyUnlocked {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"first_lesson", "quiz_master", "perfect_quiz"}, ids, "catalog order")
	require.NotNil(t, p["first_lesson"].UnlockedAt)
	assert.Equal(t, fixedNow, *p["first_lesson"].UnlockedAt)
}

func TestEvaluate_ExpertLevel(t *testing.T) {
	state := progress.LearnerState{LessonsCompleted: 20, QuizzesPassed: 15, LevelTier: scoring.TierExpert}

	eval, err := newEvaluator().Evaluate(state, Observations{}, nil, testCatalog())
	require.NoError(t, err)
	assert.True(t, eval.Progress["defi_expert"].Unlocked)
}

func TestEvaluate_UnlockIsMonotonic(t *testing.T) {
	earlier := fixedNow.Add(-48 * time.Hour)
	existing := map[string]Progress{
		"simulation_pro": {AchievementID: "simulation_pro", Progress: 5, Target: 5, Unlocked: true, UnlockedAt: &earlier},
		"first_lesson":   {AchievementID: "first_lesson", Progress: 1, Target: 1, Unlocked: true, UnlockedAt: &earlier},
	}
	// Counters lower than what the stored progress implies.
	state := progress.LearnerState{SimulationsCompleted: 1}

	eval, err := newEvaluator().Evaluate(state, Observations{}, existing, testCatalog())
	require.NoError(t, err)

	sim := eval.Progress["simulation_pro"]
	assert.True(t, sim.Unlocked)
	assert.Equal(t, 5, sim.Progress, "progress never decreases")
	assert.Equal(t, earlier, *sim.UnlockedAt, "unlock time is preserved")
	assert.True(t, eval.Progress["first_lesson"].Unlocked)
	assert.Empty(t, eval.NewlyUnlocked)
}

func TestEvaluate_NoDuplicateUnlocksAcrossCalls(t *testing.T) {
	ev := newEvaluator()
	state := progress.LearnerState{LessonsCompleted: 1}

	first, err := ev.Evaluate(state, Observations{}, nil, testCatalog())
	require.NoError(t, err)
	require.Len(t, first.NewlyUnlocked, 1)

	second, err := ev.Evaluate(state, Observations{}, first.Progress, testCatalog())
	require.NoError(t, err)
	assert.Empty(t, second.NewlyUnlocked)
	assert.Empty(t, second.Changed(first.Progress))
}

func TestEvaluate_PartialProgressNeverRegresses(t *testing.T) {
	existing := map[string]Progress{
		"learning_streak_7": {AchievementID: "learning_streak_7", Progress: 6, Target: 7},
	}
	eval, err := newEvaluator().Evaluate(progress.LearnerState{}, Observations{LongestStreakDays: 2}, existing, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, 6, eval.Progress["learning_streak_7"].Progress)
	assert.False(t, eval.Progress["learning_streak_7"].Unlocked)
}

func TestEvaluate_LoweredTargetCapsProgress(t *testing.T) {
	earlier := fixedNow.Add(-24 * time.Hour)
	existing := map[string]Progress{
		"simulation_pro":    {AchievementID: "simulation_pro", Progress: 8, Target: 10, Unlocked: true, UnlockedAt: &earlier},
		"learning_streak_7": {AchievementID: "learning_streak_7", Progress: 9, Target: 14},
	}

	eval, err := newEvaluator().Evaluate(progress.LearnerState{}, Observations{}, existing, testCatalog())
	require.NoError(t, err)

	sim := eval.Progress["simulation_pro"]
	assert.Equal(t, 5, sim.Progress)
	assert.Equal(t, 5, sim.Target)
	assert.True(t, sim.Unlocked)
	assert.Equal(t, earlier, *sim.UnlockedAt)

	streak := eval.Progress["learning_streak_7"]
	assert.Equal(t, 7, streak.Progress)
	assert.True(t, streak.Unlocked)
	require.Len(t, eval.NewlyUnlocked, 1)
	assert.Equal(t, "learning_streak_7", eval.NewlyUnlocked[0].ID)
	assert.Equal(t, 100.0, streak.Percent())
}

func TestEvaluate_UnknownKindIsConfigurationError(t *testing.T) {
	catalog := []Definition{{ID: "mystery", Condition: Condition{Kind: "forum_posts", Target: 1}}}

	_, err := newEvaluator().Evaluate(progress.LearnerState{}, Observations{}, nil, catalog)
	require.Error(t, err)
	assert.True(t, shared.IsConfiguration(err))
}

func TestEvaluate_MissingMinScoreIsConfigurationError(t *testing.T) {
	catalog := []Definition{{ID: "qm", Condition: Condition{Kind: KindQuizHighScoreCount, Target: 1}}}

	_, err := newEvaluator().Evaluate(progress.LearnerState{}, Observations{QuizScores: []int{100}}, nil, catalog)
	assert.True(t, shared.IsConfiguration(err))
}

func TestEvaluate_KeepsEntriesOutsideCatalog(t *testing.T) {
	existing := map[string]Progress{"retired": {AchievementID: "retired", Progress: 1, Target: 1, Unlocked: true}}

	eval, err := newEvaluator().Evaluate(progress.LearnerState{}, Observations{}, existing, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, existing["retired"], eval.Progress["retired"])
}

func TestEvaluate_ZeroTargetUnlocksImmediately(t *testing.T) {
	catalog := []Definition{{ID: "welcome", Condition: Condition{Kind: KindLessonCount, Target: 0}}}

	eval, err := newEvaluator().Evaluate(progress.LearnerState{}, Observations{}, nil, catalog)
	require.NoError(t, err)
	assert.True(t, eval.Progress["welcome"].Unlocked)
	assert.Equal(t, 100.0, eval.Progress["welcome"].Percent())
}

func TestValidateCatalog(t *testing.T) {
	require.NoError(t, ValidateCatalog(testCatalog()))

	dup := append(testCatalog(), Definition{ID: "first_lesson", Condition: Condition{Kind: KindLessonCount, Target: 2}})
	assert.True(t, shared.IsConfiguration(ValidateCatalog(dup)))

	badRarity := []Definition{{ID: "x", Rarity: "mythic", Condition: Condition{Kind: KindLessonCount, Target: 1}}}
	assert.True(t, shared.IsConfiguration(ValidateCatalog(badRarity)))

	badMin := []Definition{{ID: "x", Condition: Condition{Kind: KindQuizHighScoreCount, Target: 1, MinScore: intPtr(120)}}}
	assert.True(t, shared.IsConfiguration(ValidateCatalog(badMin)))
}

func TestProgress_Percent(t *testing.T) {
	assert.Equal(t, 50.0, Progress{Progress: 1, Target: 2}.Percent())
	assert.Equal(t, 100.0, Progress{Progress: 9, Target: 2}.Percent())
	assert.Equal(t, 100.0, Progress{Progress: 0, Target: 0}.Percent())
}

func TestSummarize(t *testing.T) {
	catalog := testCatalog()
	prog := map[string]Progress{
		"first_lesson": {AchievementID: "first_lesson", Progress: 1, Target: 1, Unlocked: true},
		"perfect_quiz": {AchievementID: "perfect_quiz", Progress: 1, Target: 1, Unlocked: true},
		"quiz_master":  {AchievementID: "quiz_master", Progress: 2, Target: 3},
	}

	s := Summarize(catalog, prog)
	assert.Equal(t, 2, s.Unlocked)
	assert.Equal(t, 6, s.Total)
	assert.InDelta(t, 33.333, s.CompletionRate, 0.01)
	assert.Equal(t, 85, s.Points)
	assert.Equal(t, 390, s.AvailablePoints)
	assert.Equal(t, map[Rarity]int{RarityCommon: 1, RarityRare: 1}, s.RarityDistribution)

	views := Views(catalog, prog)
	require.Len(t, views, 6)
	assert.InDelta(t, 66.67, views[1].ProgressPercent, 0.01)
	assert.Equal(t, 5, views[2].Progress.Target)
}
