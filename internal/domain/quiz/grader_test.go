package quiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

func fiveQuestionQuiz() *Definition {
	key := []int{1, 1, 1, 2, 2}
	questions := make([]Question, len(key))
	for i, k := range key {
		questions[i] = Question{
			Text:               "question",
			Options:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: k,
			Explanation:        "explanation " + string(rune('A'+i)),
		}
	}
	return &Definition{
		ID:                  "defi-basics",
		Title:               "DeFi Basics",
		PassingScorePercent: 70,
		Questions:           questions,
	}
}

func TestGrade_AllCorrect(t *testing.T) {
	result, err := Grade([]int{1, 1, 1, 2, 2}, fiveQuestionQuiz())
	require.NoError(t, err)

	assert.Equal(t, 100, result.ScorePercent)
	assert.True(t, result.Passed)
	assert.True(t, result.IsPerfect())
	assert.Equal(t, 5, result.CorrectCount)
	assert.Len(t, result.Feedback, 5)
	for i, fb := range result.Feedback {
		assert.True(t, fb.IsCorrect)
		assert.Equal(t, i, fb.QuestionIndex)
		assert.Equal(t, i+1, fb.QuestionID)
	}
}

func TestGrade_AllWrong(t *testing.T) {
	result, err := Grade([]int{0, 0, 0, 0, 0}, fiveQuestionQuiz())
	require.NoError(t, err)

	assert.Equal(t, 0, result.ScorePercent)
	assert.False(t, result.Passed)
	require.Len(t, result.Feedback, 5)
	for _, fb := range result.Feedback {
		assert.False(t, fb.IsCorrect)
	}
}

func TestGrade_PassingBoundaryIsInclusive(t *testing.T) {
	q := fiveQuestionQuiz()
	q.PassingScorePercent = 60

	result, err := Grade([]int{1, 1, 1, 0, 0}, q)
	require.NoError(t, err)
	assert.Equal(t, 60, result.ScorePercent)
	assert.True(t, result.Passed)

	q.PassingScorePercent = 61
	result, err = Grade([]int{1, 1, 1, 0, 0}, q)
	require.NoError(t, err)
	assert.False(t, result.Passed)
}

func TestGrade_RoundsHalfUp(t *testing.T) {
	q := &Definition{ID: "eight", PassingScorePercent: 50}
	for i := 0; i < 8; i++ {
		q.Questions = append(q.Questions, Question{Options: []string{"x", "y"}, CorrectAnswerIndex: 0})
	}

	// 1 of 8 = 12.5% -> 13
	result, err := Grade([]int{0, 1, 1, 1, 1, 1, 1, 1}, q)
	require.NoError(t, err)
	assert.Equal(t, 13, result.ScorePercent)

	// 3 of 7 = 42.857% -> 43
	q.Questions = q.Questions[:7]
	result, err = Grade([]int{0, 0, 0, 1, 1, 1, 1}, q)
	require.NoError(t, err)
	assert.Equal(t, 43, result.ScorePercent)
}

func TestGrade_OutOfRangeAnswersAreIncorrect(t *testing.T) {
	result, err := Grade([]int{-1, 99, 1, 4, 2}, fiveQuestionQuiz())
	require.NoError(t, err)

	assert.Equal(t, 40, result.ScorePercent)
	assert.False(t, result.Feedback[0].IsCorrect)
	assert.False(t, result.Feedback[1].IsCorrect)
	assert.True(t, result.Feedback[2].IsCorrect)
	assert.False(t, result.Feedback[3].IsCorrect)
	assert.Equal(t, 99, result.Feedback[1].SubmittedIndex)
}

func TestGrade_AnswerCountMismatch(t *testing.T) {
	for _, answers := range [][]int{nil, {1, 1, 1}, {1, 1, 1, 2, 2, 2}} {
		_, err := Grade(answers, fiveQuestionQuiz())
		require.Error(t, err)
		assert.True(t, shared.IsInvalidSubmission(err))
	}
}

func TestGrade_NilQuiz(t *testing.T) {
	_, err := Grade([]int{1}, nil)
	assert.True(t, shared.IsNotFound(err))
}

func TestGrade_CopiesExplanationsVerbatim(t *testing.T) {
	q := fiveQuestionQuiz()
	result, err := Grade([]int{1, 0, 1, 2, 0}, q)
	require.NoError(t, err)

	for i, fb := range result.Feedback {
		assert.Equal(t, q.Questions[i].Explanation, fb.Explanation)
	}
}

func TestAttemptResult_JSONRoundTrip(t *testing.T) {
	result, err := Grade([]int{1, 1, 0, 2, 7}, fiveQuestionQuiz())
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded AttemptResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result, decoded)
}

func TestDefinition_Validate(t *testing.T) {
	require.NoError(t, fiveQuestionQuiz().Validate())

	bad := fiveQuestionQuiz()
	bad.Questions[2].CorrectAnswerIndex = 4
	assert.True(t, shared.IsConfiguration(bad.Validate()))

	bad = fiveQuestionQuiz()
	bad.PassingScorePercent = 101
	assert.True(t, shared.IsConfiguration(bad.Validate()))

	bad = fiveQuestionQuiz()
	bad.Questions = nil
	assert.True(t, shared.IsConfiguration(bad.Validate()))
}

func TestDefinition_PublicHidesAnswers(t *testing.T) {
	view := fiveQuestionQuiz().Public()
	data, err := json.Marshal(view)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "correct_answer_index")
	assert.NotContains(t, string(data), "explanation")
	assert.Equal(t, 1, view.Questions[0].ID)
}
