package query

import (
	"context"
	"time"

	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RISK QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ReferenceDTO is one row of a protocol or token risk listing.
type ReferenceDTO struct {
	Key           string             `json:"key"`
	Name          string             `json:"name"`
	Overall       int                `json:"overall"`
	Level         risk.Level         `json:"level"`
	SubDimensions risk.SubDimensions `json:"sub_dimensions"`
	Details       map[string]string  `json:"details,omitempty"`
}

// ListReferenceQuery filters a reference listing.
type ListReferenceQuery struct {
	// Level keeps only entries at this level when set.
	Level string
}

// ListProtocolsHandler lists the protocol reference table.
type ListProtocolsHandler struct {
	tables *risk.ReferenceTables
}

// NewListProtocolsHandler creates a new ListProtocolsHandler.
func NewListProtocolsHandler(tables *risk.ReferenceTables) *ListProtocolsHandler {
	return &ListProtocolsHandler{tables: tables}
}

// Handle returns protocols from lowest to highest risk.
func (h *ListProtocolsHandler) Handle(_ context.Context, q ListReferenceQuery) ([]ReferenceDTO, error) {
	return listReference("ListProtocols", h.tables.SortedProtocols(), q)
}

// ListTokensHandler lists the token reference table.
type ListTokensHandler struct {
	tables *risk.ReferenceTables
}

// NewListTokensHandler creates a new ListTokensHandler.
func NewListTokensHandler(tables *risk.ReferenceTables) *ListTokensHandler {
	return &ListTokensHandler{tables: tables}
}

// Handle returns tokens from lowest to highest risk.
func (h *ListTokensHandler) Handle(_ context.Context, q ListReferenceQuery) ([]ReferenceDTO, error) {
	return listReference("ListTokens", h.tables.SortedTokens(), q)
}

func listReference(op string, entries []risk.ReferenceEntry, q ListReferenceQuery) ([]ReferenceDTO, error) {
	var level risk.Level
	if q.Level != "" {
		level = risk.Level(q.Level)
		if !level.IsValid() {
			return nil, shared.NewValidationError("risk", op, "unknown level "+q.Level)
		}
	}

	out := make([]ReferenceDTO, 0, len(entries))
	for _, e := range entries {
		if level != "" && e.Level != level {
			continue
		}
		out = append(out, ReferenceDTO{
			Key:           e.Key,
			Name:          e.Name,
			Overall:       e.Overall,
			Level:         e.Level,
			SubDimensions: e.SubDimensions,
			Details:       e.Details,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Assessment history
// ─────────────────────────────────────────────────────────────────────────────

// ListRiskAssessmentsQuery filters stored assessments.
type ListRiskAssessmentsQuery struct {
	UserID      string
	SubjectType string
	SubjectKey  string
	Level       string
	Since       time.Time
	Limit       int
	Offset      int
}

// MaxAssessmentPageSize caps Limit.
const MaxAssessmentPageSize = 200

// Filter validates the query and converts it to a repository filter.
func (q ListRiskAssessmentsQuery) Filter() (risk.AssessmentFilter, error) {
	const op = "ListAssessments"

	f := risk.AssessmentFilter{
		UserID:     q.UserID,
		SubjectKey: q.SubjectKey,
		Since:      q.Since,
		Limit:      min(q.Limit, MaxAssessmentPageSize),
		Offset:     q.Offset,
	}
	if q.Limit < 0 || q.Offset < 0 {
		return f, shared.NewValidationError("risk", op, "limit and offset must not be negative")
	}
	if q.SubjectType != "" {
		t, err := risk.ParseSubjectType(q.SubjectType)
		if err != nil {
			return f, err
		}
		f.SubjectType = t
	}
	if q.Level != "" {
		f.Level = risk.Level(q.Level)
		if !f.Level.IsValid() {
			return f, shared.NewValidationError("risk", op, "unknown level "+q.Level)
		}
	}
	return f, nil
}

// ListRiskAssessmentsHandler handles ListRiskAssessmentsQuery.
type ListRiskAssessmentsHandler struct {
	history risk.Repository
}

// NewListRiskAssessmentsHandler creates a new ListRiskAssessmentsHandler.
func NewListRiskAssessmentsHandler(history risk.Repository) *ListRiskAssessmentsHandler {
	return &ListRiskAssessmentsHandler{history: history}
}

// Handle executes the query.
func (h *ListRiskAssessmentsHandler) Handle(ctx context.Context, q ListRiskAssessmentsQuery) ([]*risk.Assessment, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}
	out, err := h.history.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*risk.Assessment{}
	}
	return out, nil
}
