package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// QuizAttemptRepository implements quiz.AttemptRepository.
type QuizAttemptRepository struct {
	mu       sync.RWMutex
	attempts []quiz.Attempt
	ids      map[string]struct{}
}

var _ quiz.AttemptRepository = (*QuizAttemptRepository)(nil)

// NewQuizAttemptRepository creates an empty QuizAttemptRepository.
func NewQuizAttemptRepository() *QuizAttemptRepository {
	return &QuizAttemptRepository{ids: make(map[string]struct{})}
}

// Save appends the attempt.
func (r *QuizAttemptRepository) Save(_ context.Context, a *quiz.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.ids[a.ID]; dup {
		return shared.WrapError("quiz", "SaveAttempt", shared.ErrAlreadyExists, "attempt already stored", nil)
	}
	stored := *a
	stored.Answers = slices.Clone(a.Answers)
	r.attempts = append(r.attempts, stored)
	r.ids[a.ID] = struct{}{}
	return nil
}

// List returns matching attempts, newest first.
func (r *QuizAttemptRepository) List(_ context.Context, filter quiz.AttemptFilter) ([]*quiz.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*quiz.Attempt
	for i := len(r.attempts) - 1; i >= 0; i-- {
		a := r.attempts[i]
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.QuizID != "" && a.QuizID != filter.QuizID {
			continue
		}
		if filter.PassedOnly && !a.Result.Passed {
			continue
		}
		if !filter.Since.IsZero() && a.SubmittedAt.Before(filter.Since) {
			continue
		}
		matched = append(matched, &a)
	}

	slices.SortStableFunc(matched, func(a, b *quiz.Attempt) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = quiz.DefaultAttemptLimit
	}
	return page(matched, filter.Offset, limit), nil
}

// Scores returns the user's scores in submission order.
func (r *QuizAttemptRepository) Scores(_ context.Context, userID string) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var scores []int
	for _, a := range r.attempts {
		if a.UserID == userID {
			scores = append(scores, a.Result.ScorePercent)
		}
	}
	return scores, nil
}

// HasPassed reports whether a passing attempt exists.
func (r *QuizAttemptRepository) HasPassed(_ context.Context, userID, quizID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.attempts {
		if a.UserID == userID && a.QuizID == quizID && a.Result.Passed {
			return true, nil
		}
	}
	return false, nil
}

func page[T any](items []T, offset, limit int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
