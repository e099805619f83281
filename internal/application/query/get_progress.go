// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns a learner's counters, per-activity completion, streak, next tier
// and the guidance texts selected for the current state.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery identifies the learner.
type GetProgressQuery struct {
	UserID string
}

// Validate validates the query.
func (q GetProgressQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.NewValidationError("progress", "GetProgress", "user_id is required")
	}
	return nil
}

// ProgressDTO is the progress read model.
type ProgressDTO struct {
	UserID string `json:"user_id"`

	// Started is false for a learner with no recorded activity; the report
	// is then the zero state.
	Started bool `json:"started"`

	progress.Report

	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// GuidanceSource supplies the catalog text used in reports.
type GuidanceSource interface {
	Guidance() progress.Guidance
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	learners progress.Repository
	tracker  *progress.Tracker
	guidance GuidanceSource
	now      timeutil.Clock
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(learners progress.Repository, tracker *progress.Tracker, guidance GuidanceSource, clock timeutil.Clock) *GetProgressHandler {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &GetProgressHandler{learners: learners, tracker: tracker, guidance: guidance, now: clock}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	now := h.now().UTC()

	record, err := h.learners.Get(ctx, q.UserID)
	started := true
	switch {
	case errors.Is(err, shared.ErrLearnerNotFound):
		record = progress.NewLearnerRecord(q.UserID, now)
		started = false
	case err != nil:
		return nil, err
	}

	dto := &ProgressDTO{
		UserID:  q.UserID,
		Started: started,
		Report:  h.tracker.Report(*record, h.guidance.Guidance(), now),
	}
	if started {
		updated := record.UpdatedAt
		dto.UpdatedAt = &updated
		if !record.Streak.LastActiveDate.IsZero() {
			last := record.Streak.LastActiveDate
			dto.LastActiveDate = &last
		}
	}
	return dto, nil
}
