package risk

import (
	"context"
	"time"
)

// Assessment is a persisted risk result.
type Assessment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Subject    Subject   `json:"subject"`
	Inputs     Inputs    `json:"inputs"`
	Result     Result    `json:"result"`
	InputsHash string    `json:"inputs_hash"`
	Cached     bool      `json:"cached"`
	AssessedAt time.Time `json:"assessed_at"`
}

// DefaultAssessmentLimit caps List when no limit is given.
const DefaultAssessmentLimit = 50

// AssessmentFilter narrows List. Zero values match everything.
type AssessmentFilter struct {
	UserID      string
	SubjectType SubjectType
	SubjectKey  string
	Level       Level
	Since       time.Time
	Limit       int
	Offset      int
}

// EffectiveLimit returns Limit or DefaultAssessmentLimit.
func (f AssessmentFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultAssessmentLimit
	}
	return f.Limit
}

// Matches reports whether a passes the filter, ignoring paging.
func (f AssessmentFilter) Matches(a Assessment) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.SubjectType != "" && a.Result.SubjectType != f.SubjectType {
		return false
	}
	if f.SubjectKey != "" && a.Result.SubjectKey != NormalizeKey(f.SubjectKey) {
		return false
	}
	if f.Level != "" && a.Result.Level != f.Level {
		return false
	}
	if !f.Since.IsZero() && a.AssessedAt.Before(f.Since) {
		return false
	}
	return true
}

// Repository stores assessment history. Results are ordered newest first.
type Repository interface {
	Save(ctx context.Context, a *Assessment) error
	Get(ctx context.Context, id string) (*Assessment, error)
	List(ctx context.Context, filter AssessmentFilter) ([]*Assessment, error)

	// DeleteBefore removes assessments older than cutoff and returns how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
