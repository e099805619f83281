package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

var (
	defiBasicsCorrect = []int{1, 1, 1, 2, 2}
	defiBasicsPassing = []int{1, 1, 1, 2, 0}
	defiBasicsFailing = []int{0, 0, 0, 0, 0}
)

func TestSubmitQuiz_PerfectFirstPass(t *testing.T) {
	f := newProgressFixture(t)

	res, err := f.quizzes.Handle(context.Background(), SubmitQuizCommand{
		UserID:  "user-1",
		QuizID:  "defi-basics",
		Answers: defiBasicsCorrect,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Attempt.ID)
	assert.Equal(t, 100, res.Attempt.Result.ScorePercent)
	assert.True(t, res.Attempt.Result.Passed)
	assert.Equal(t, testNow, res.Attempt.SubmittedAt)

	assert.True(t, res.FirstPass)
	require.NotNil(t, res.Progress)
	assert.Equal(t, 1, res.Progress.State.QuizzesPassed)

	ids := make([]string, 0, len(res.NewAchievements))
	for _, d := range res.NewAchievements {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"perfect_quiz"}, ids)

	assert.Equal(t, 1, f.observer.attempts["defi-basics/passed"])
	assert.Equal(t, shared.EventQuizGraded, f.publisher.types()[0])
}

func TestSubmitQuiz_SecondPassDoesNotCountAgain(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()
	cmd := SubmitQuizCommand{UserID: "user-1", QuizID: "defi-basics", Answers: defiBasicsPassing}

	first, err := f.quizzes.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, first.FirstPass)

	second, err := f.quizzes.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, second.FirstPass)
	assert.Nil(t, second.Progress)

	stored, err := f.learners.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.State.QuizzesPassed)

	scores, err := f.attempts.Scores(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []int{80, 80}, scores)
}

func TestSubmitQuiz_FailedAttemptIsStoredOnly(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	res, err := f.quizzes.Handle(ctx, SubmitQuizCommand{UserID: "user-1", QuizID: "defi-basics", Answers: defiBasicsFailing})
	require.NoError(t, err)

	assert.False(t, res.Attempt.Result.Passed)
	assert.Equal(t, 0, res.Attempt.Result.ScorePercent)
	assert.False(t, res.FirstPass)
	assert.Empty(t, res.NewAchievements)

	_, err = f.learners.Get(ctx, "user-1")
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, 1, f.observer.attempts["defi-basics/failed"])
}

func TestSubmitQuiz_PerfectRetakeUnlocksWithoutCounting(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.quizzes.Handle(ctx, SubmitQuizCommand{UserID: "user-1", QuizID: "defi-basics", Answers: defiBasicsPassing})
	require.NoError(t, err)

	res, err := f.quizzes.Handle(ctx, SubmitQuizCommand{UserID: "user-1", QuizID: "defi-basics", Answers: defiBasicsCorrect})
	require.NoError(t, err)

	assert.False(t, res.FirstPass)
	require.Len(t, res.NewAchievements, 1)
	assert.Equal(t, "perfect_quiz", res.NewAchievements[0].ID)
}

func TestSubmitQuiz_Errors(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.quizzes.Handle(ctx, SubmitQuizCommand{UserID: "user-1", QuizID: "no-such-quiz", Answers: []int{0}})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.quizzes.Handle(ctx, SubmitQuizCommand{UserID: "user-1", QuizID: "defi-basics", Answers: []int{1, 1}})
	assert.True(t, shared.IsInvalidSubmission(err))
	assert.ErrorIs(t, err, shared.ErrAnswerCountMismatch)

	_, err = f.quizzes.Handle(ctx, SubmitQuizCommand{QuizID: "defi-basics", Answers: defiBasicsCorrect})
	assert.True(t, shared.IsValidation(err))

	scores, err := f.attempts.Scores(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, scores)
}
