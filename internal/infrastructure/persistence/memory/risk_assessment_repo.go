package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// RiskAssessmentRepository implements risk.Repository.
type RiskAssessmentRepository struct {
	mu    sync.RWMutex
	items []risk.Assessment
	byID  map[string]int
}

var _ risk.Repository = (*RiskAssessmentRepository)(nil)

// NewRiskAssessmentRepository creates an empty RiskAssessmentRepository.
func NewRiskAssessmentRepository() *RiskAssessmentRepository {
	return &RiskAssessmentRepository{byID: make(map[string]int)}
}

// Save stores the assessment.
func (r *RiskAssessmentRepository) Save(_ context.Context, a *risk.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[a.ID]; dup {
		return shared.WrapError("risk", "SaveAssessment", shared.ErrAlreadyExists, "assessment already stored", nil)
	}
	r.byID[a.ID] = len(r.items)
	r.items = append(r.items, *a)
	return nil
}

// Get returns one assessment.
func (r *RiskAssessmentRepository) Get(_ context.Context, id string) (*risk.Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrAssessmentNotFound
	}
	a := r.items[i]
	return &a, nil
}

// List returns matching assessments, newest first.
func (r *RiskAssessmentRepository) List(_ context.Context, filter risk.AssessmentFilter) ([]*risk.Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*risk.Assessment
	for i := len(r.items) - 1; i >= 0; i-- {
		if filter.Matches(r.items[i]) {
			a := r.items[i]
			matched = append(matched, &a)
		}
	}

	slices.SortStableFunc(matched, func(a, b *risk.Assessment) int {
		return b.AssessedAt.Compare(a.AssessedAt)
	})
	return page(matched, filter.Offset, filter.EffectiveLimit()), nil
}

// DeleteBefore drops assessments older than cutoff.
func (r *RiskAssessmentRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0]
	for _, a := range r.items {
		if a.AssessedAt.Before(cutoff) {
			delete(r.byID, a.ID)
			continue
		}
		r.byID[a.ID] = len(kept)
		kept = append(kept, a)
	}
	removed := len(r.items) - len(kept)
	clear(r.items[len(kept):])
	r.items = kept
	return removed, nil
}
