package quiz

import (
	"fmt"

	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// Feedback is the per-question outcome of a graded attempt.
type Feedback struct {
	QuestionIndex  int    `json:"question_index"`
	QuestionID     int    `json:"question_id"`
	IsCorrect      bool   `json:"is_correct"`
	SubmittedIndex int    `json:"submitted_index"`
	CorrectIndex   int    `json:"correct_index"`
	Explanation    string `json:"explanation"`
}

// AttemptResult is the outcome of grading one submission.
type AttemptResult struct {
	QuizID              string     `json:"quiz_id"`
	ScorePercent        int        `json:"score_percent"`
	Passed              bool       `json:"passed"`
	CorrectCount        int        `json:"correct_count"`
	TotalQuestions      int        `json:"total_questions"`
	PassingScorePercent int        `json:"passing_score_percent"`
	Feedback            []Feedback `json:"feedback"`
}

// IsPerfect reports whether every question was answered correctly.
func (r AttemptResult) IsPerfect() bool {
	return r.TotalQuestions > 0 && r.CorrectCount == r.TotalQuestions
}

// Grade compares answers against the quiz's answer key.
//
// The answer count must equal the question count. An answer index outside a
// question's options is graded as incorrect. Explanations are copied from
// the definition verbatim. Grade has no side effects.
func Grade(answers []int, quiz *Definition) (AttemptResult, error) {
	if quiz == nil {
		return AttemptResult{}, shared.ErrQuizNotFound
	}
	total := len(quiz.Questions)
	if total == 0 {
		return AttemptResult{}, shared.NewConfigurationError("quiz", "Grade",
			fmt.Sprintf("quiz %q has no questions", quiz.ID))
	}
	if len(answers) != total {
		return AttemptResult{}, shared.WrapError("quiz", "Grade", shared.ErrInvalidSubmission,
			fmt.Sprintf("expected %d answers, got %d", total, len(answers)),
			shared.ErrAnswerCountMismatch)
	}

	feedback := make([]Feedback, total)
	correct := 0
	for i, q := range quiz.Questions {
		submitted := answers[i]
		ok := submitted >= 0 && submitted < len(q.Options) && submitted == q.CorrectAnswerIndex
		if ok {
			correct++
		}
		feedback[i] = Feedback{
			QuestionIndex:  i,
			QuestionID:     i + 1,
			IsCorrect:      ok,
			SubmittedIndex: submitted,
			CorrectIndex:   q.CorrectAnswerIndex,
			Explanation:    q.Explanation,
		}
	}

	score := scoring.RoundPercent(correct, total)
	return AttemptResult{
		QuizID:              quiz.ID,
		ScorePercent:        score,
		Passed:              score >= quiz.PassingScorePercent,
		CorrectCount:        correct,
		TotalQuestions:      total,
		PassingScorePercent: quiz.PassingScorePercent,
		Feedback:            feedback,
	}, nil
}
