package query

import (
	"context"
	"strings"
	"time"

	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ QUERIES
// Quizzes are served without answer keys or explanations.
// ══════════════════════════════════════════════════════════════════════════════

// ListQuizzesQuery lists the quiz catalog.
type ListQuizzesQuery struct {
	// Topic and Difficulty filter case-insensitively when set.
	Topic      string
	Difficulty string
}

// QuizSummaryDTO is a quiz without its questions.
type QuizSummaryDTO struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description,omitempty"`
	Topic               string          `json:"topic,omitempty"`
	Difficulty          quiz.Difficulty `json:"difficulty,omitempty"`
	PassingScorePercent int             `json:"passing_score_percent"`
	QuestionCount       int             `json:"question_count"`
}

// QuizHandler serves the quiz catalog.
type QuizHandler struct {
	catalog quiz.Catalog
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(catalog quiz.Catalog) *QuizHandler {
	return &QuizHandler{catalog: catalog}
}

// List returns quizzes in catalog order.
func (h *QuizHandler) List(_ context.Context, q ListQuizzesQuery) []QuizSummaryDTO {
	out := make([]QuizSummaryDTO, 0)
	for _, def := range h.catalog.Quizzes() {
		if q.Topic != "" && !strings.EqualFold(def.Topic, q.Topic) {
			continue
		}
		if q.Difficulty != "" && !strings.EqualFold(string(def.Difficulty), q.Difficulty) {
			continue
		}
		out = append(out, QuizSummaryDTO{
			ID:                  def.ID,
			Title:               def.Title,
			Description:         def.Description,
			Topic:               def.Topic,
			Difficulty:          def.Difficulty,
			PassingScorePercent: def.PassingScorePercent,
			QuestionCount:       def.QuestionCount(),
		})
	}
	return out
}

// Get returns one quiz or shared.ErrQuizNotFound.
func (h *QuizHandler) Get(_ context.Context, id string) (*quiz.PublicView, error) {
	def, err := h.catalog.Quiz(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	view := def.Public()
	return &view, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Attempts
// ─────────────────────────────────────────────────────────────────────────────

// ListQuizAttemptsQuery lists a learner's attempts, newest first.
type ListQuizAttemptsQuery struct {
	UserID     string
	QuizID     string
	PassedOnly bool
	Since      time.Time
	Limit      int
	Offset     int
}

// MaxAttemptPageSize caps Limit.
const MaxAttemptPageSize = 200

// Validate validates the query.
func (q ListQuizAttemptsQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.NewValidationError("quiz", "ListAttempts", "user_id is required")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return shared.NewValidationError("quiz", "ListAttempts", "limit and offset must not be negative")
	}
	return nil
}

// AttemptDTO is a stored attempt without the raw answers.
type AttemptDTO struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quiz_id"`
	ScorePercent   int       `json:"score_percent"`
	Passed         bool      `json:"passed"`
	CorrectCount   int       `json:"correct_count"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// ListQuizAttemptsHandler handles ListQuizAttemptsQuery.
type ListQuizAttemptsHandler struct {
	attempts quiz.AttemptRepository
}

// NewListQuizAttemptsHandler creates a new ListQuizAttemptsHandler.
func NewListQuizAttemptsHandler(attempts quiz.AttemptRepository) *ListQuizAttemptsHandler {
	return &ListQuizAttemptsHandler{attempts: attempts}
}

// Handle executes the query.
func (h *ListQuizAttemptsHandler) Handle(ctx context.Context, q ListQuizAttemptsQuery) ([]AttemptDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	attempts, err := h.attempts.List(ctx, quiz.AttemptFilter{
		UserID:     q.UserID,
		QuizID:     q.QuizID,
		PassedOnly: q.PassedOnly,
		Since:      q.Since,
		Limit:      min(q.Limit, MaxAttemptPageSize),
		Offset:     q.Offset,
	})
	if err != nil {
		return nil, err
	}

	out := make([]AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptDTO{
			ID:             a.ID,
			QuizID:         a.QuizID,
			ScorePercent:   a.Result.ScorePercent,
			Passed:         a.Result.Passed,
			CorrectCount:   a.Result.CorrectCount,
			TotalQuestions: a.Result.TotalQuestions,
			SubmittedAt:    a.SubmittedAt,
		})
	}
	return out, nil
}
