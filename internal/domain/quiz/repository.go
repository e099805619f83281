package quiz

import (
	"context"
	"time"
)

// Attempt is a stored, graded submission.
type Attempt struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	QuizID      string        `json:"quiz_id"`
	Answers     []int         `json:"answers"`
	Result      AttemptResult `json:"result"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// Catalog provides read-only access to quiz definitions.
type Catalog interface {
	// Quiz returns the definition or shared.ErrQuizNotFound.
	Quiz(id string) (*Definition, error)

	// Quizzes returns every definition in catalog order.
	Quizzes() []*Definition
}

// AttemptFilter narrows attempt listings.
type AttemptFilter struct {
	UserID     string
	QuizID     string
	PassedOnly bool
	Since      time.Time
	Limit      int
	Offset     int
}

// DefaultAttemptLimit is used when a filter has no limit.
const DefaultAttemptLimit = 50

// AttemptRepository persists quiz attempts.
type AttemptRepository interface {
	// Save stores a new attempt.
	Save(ctx context.Context, attempt *Attempt) error

	// List returns attempts matching the filter, newest first.
	List(ctx context.Context, filter AttemptFilter) ([]*Attempt, error)

	// Scores returns every score the user achieved, oldest first.
	// It feeds the quiz-based achievement observations.
	Scores(ctx context.Context, userID string) ([]int, error)

	// HasPassed reports whether the user already passed the quiz.
	HasPassed(ctx context.Context, userID, quizID string) (bool, error)
}
