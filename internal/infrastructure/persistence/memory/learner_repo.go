package memory

import (
	"context"
	"sync"

	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

type completionKey struct {
	userID string
	kind   progress.ActivityKind
	refID  string
}

// LearnerRepository implements progress.Repository.
type LearnerRepository struct {
	mu          sync.RWMutex
	records     map[string]progress.LearnerRecord
	completions map[completionKey]progress.Completion
}

var _ progress.Repository = (*LearnerRepository)(nil)

// NewLearnerRepository creates an empty LearnerRepository.
func NewLearnerRepository() *LearnerRepository {
	return &LearnerRepository{
		records:     make(map[string]progress.LearnerRecord),
		completions: make(map[completionKey]progress.Completion),
	}
}

// Get returns a copy of the stored record.
func (r *LearnerRepository) Get(_ context.Context, userID string) (*progress.LearnerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[userID]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return &rec, nil
}

// Save applies the same version and completion checks as the SQL store.
func (r *LearnerRepository) Save(_ context.Context, rec *progress.LearnerRecord, completion *progress.Completion, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := rec.State.UserID
	current, exists := r.records[userID]
	switch {
	case expectedVersion == 0 && exists:
		return shared.ErrStaleLearnerVersion
	case expectedVersion != 0 && (!exists || current.Version != expectedVersion):
		return shared.ErrStaleLearnerVersion
	}

	if completion != nil {
		key := completionKey{userID: completion.UserID, kind: completion.Kind, refID: completion.RefID}
		if _, done := r.completions[key]; done {
			return shared.ErrActivityAlreadyDone
		}
		r.completions[key] = *completion
	}

	stored := *rec
	stored.Version = expectedVersion + 1
	r.records[userID] = stored
	rec.Version = stored.Version
	return nil
}

// HasCompleted reports whether the completion key exists.
func (r *LearnerRepository) HasCompleted(_ context.Context, userID string, kind progress.ActivityKind, refID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.completions[completionKey{userID: userID, kind: kind, refID: refID}]
	return ok, nil
}
