package progress

import (
	"context"
)

// Repository persists learner records.
//
// Save implements optimistic concurrency: it succeeds only when the stored
// version equals expectedVersion, and bumps the version by one. A lost race
// returns shared.ErrStaleLearnerVersion, which is retryable.
type Repository interface {
	// Get returns the record or shared.ErrLearnerNotFound.
	Get(ctx context.Context, userID string) (*LearnerRecord, error)

	// Save stores record together with the completion that produced it.
	// expectedVersion 0 creates the learner. A completion that was already
	// recorded returns shared.ErrActivityAlreadyDone and changes nothing.
	Save(ctx context.Context, record *LearnerRecord, completion *Completion, expectedVersion int64) error

	// HasCompleted reports whether the completion key already exists.
	HasCompleted(ctx context.Context, userID string, kind ActivityKind, refID string) (bool, error)
}
