package command

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

func TestRecordActivity_FirstLesson(t *testing.T) {
	f := newProgressFixture(t)

	res, err := f.activities.Handle(context.Background(), RecordActivityCommand{
		UserID: "user-1",
		Kind:   "lesson",
		RefID:  "lesson-1",
	})
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, res.State.LessonsCompleted)
	assert.Equal(t, 2.5, res.State.OverallProgressPercent)
	assert.Equal(t, scoring.TierBeginner, res.State.LevelTier)
	assert.Equal(t, 1, res.Streak.Current)
	assert.False(t, res.LevelChanged)

	require.Len(t, res.NewAchievements, 1)
	assert.Equal(t, "first_lesson", res.NewAchievements[0].ID)

	stored, err := f.learners.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)

	assert.Equal(t, []shared.EventType{shared.EventActivityRecorded, shared.EventAchievementUnlocked}, f.publisher.types())
	assert.Equal(t, 1, f.observer.activities["lesson/recorded"])
}

func TestRecordActivity_DuplicateRefIsCountedOnce(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()
	cmd := RecordActivityCommand{UserID: "user-1", Kind: "simulation", RefID: "sim-1"}

	_, err := f.activities.Handle(ctx, cmd)
	require.NoError(t, err)

	res, err := f.activities.Handle(ctx, cmd)
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Equal(t, 1, res.State.SimulationsCompleted)
	assert.Empty(t, res.NewAchievements)
	assert.Equal(t, 1, f.observer.activities["simulation/duplicate"])

	stored, err := f.learners.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestRecordActivity_EmptyRefIsNeverDuplicate(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := f.activities.Handle(ctx, RecordActivityCommand{UserID: "user-1", Kind: "simulation"})
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.NotEmpty(t, res.RefID)
	}

	stored, err := f.learners.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.State.SimulationsCompleted)
}

func TestRecordActivity_LevelChange(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	var res *RecordActivityResult
	for i := 1; i <= 8; i++ {
		var err error
		res, err = f.activities.Handle(ctx, RecordActivityCommand{
			UserID: "user-1",
			Kind:   "lesson",
			RefID:  fmt.Sprintf("lesson-%d", i),
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 20.0, res.State.OverallProgressPercent)
	assert.True(t, res.LevelChanged)
	assert.Equal(t, scoring.TierBeginner, res.Previous.LevelTier)
	assert.Equal(t, scoring.TierIntermediate, res.State.LevelTier)
	assert.Contains(t, f.publisher.types(), shared.EventLevelChanged)
}

func TestRecordActivity_Validation(t *testing.T) {
	f := newProgressFixture(t)

	tests := []struct {
		name string
		cmd  RecordActivityCommand
	}{
		{"missing user", RecordActivityCommand{Kind: "lesson"}},
		{"unknown kind", RecordActivityCommand{UserID: "user-1", Kind: "webinar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.activities.Handle(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

// conflictingLearners loses the first n version races.
type conflictingLearners struct {
	progress.Repository
	conflicts atomic.Int32
}

func (r *conflictingLearners) Save(ctx context.Context, rec *progress.LearnerRecord, c *progress.Completion, expected int64) error {
	if r.conflicts.Add(-1) >= 0 {
		return shared.ErrStaleLearnerVersion
	}
	return r.Repository.Save(ctx, rec, c, expected)
}

func TestRecordActivity_RetriesVersionConflicts(t *testing.T) {
	learners := &conflictingLearners{}
	learners.conflicts.Store(2)
	f := newProgressFixtureWith(t, learners)
	learners.Repository = f.learners

	res, err := f.activities.Handle(context.Background(), RecordActivityCommand{
		UserID: "user-1", Kind: "quiz", RefID: "defi-basics",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.QuizzesPassed)

	stored, err := f.learners.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.State.QuizzesPassed)
}

func TestRecordActivity_GivesUpAfterPersistentConflicts(t *testing.T) {
	learners := &conflictingLearners{}
	learners.conflicts.Store(100)
	f := newProgressFixtureWith(t, learners)
	learners.Repository = f.learners

	_, err := f.activities.Handle(context.Background(), RecordActivityCommand{
		UserID: "user-1", Kind: "lesson", RefID: "lesson-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.Equal(t, 1, f.observer.activities["lesson/failed"])
}
