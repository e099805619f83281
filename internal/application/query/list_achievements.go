package query

import (
	"context"
	"strings"

	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACHIEVEMENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListAchievementsQuery lists a learner's achievements.
type ListAchievementsQuery struct {
	UserID string

	// UnlockedOnly hides locked achievements. The summary always covers the
	// whole catalog.
	UnlockedOnly bool

	// Category filters by catalog category (case-insensitive).
	Category string
}

// Validate validates the query.
func (q ListAchievementsQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.NewValidationError("achievement", "ListAchievements", "user_id is required")
	}
	return nil
}

// AchievementsDTO is the achievements read model.
type AchievementsDTO struct {
	UserID       string              `json:"user_id"`
	Achievements []achievement.View  `json:"achievements"`
	Summary      achievement.Summary `json:"summary"`
}

// AchievementCatalog lists achievement definitions.
type AchievementCatalog interface {
	Achievements() []achievement.Definition
}

// ListAchievementsHandler handles ListAchievementsQuery.
type ListAchievementsHandler struct {
	catalog      AchievementCatalog
	achievements achievement.Repository
}

// NewListAchievementsHandler creates a new ListAchievementsHandler.
func NewListAchievementsHandler(catalog AchievementCatalog, achievements achievement.Repository) *ListAchievementsHandler {
	return &ListAchievementsHandler{catalog: catalog, achievements: achievements}
}

// Handle executes the query.
func (h *ListAchievementsHandler) Handle(ctx context.Context, q ListAchievementsQuery) (*AchievementsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	stored, err := h.achievements.Get(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	defs := h.catalog.Achievements()
	views := achievement.Views(defs, stored)

	filtered := views[:0]
	for _, v := range views {
		if q.UnlockedOnly && !v.Progress.Unlocked {
			continue
		}
		if q.Category != "" && !strings.EqualFold(v.Definition.Category, q.Category) {
			continue
		}
		filtered = append(filtered, v)
	}

	return &AchievementsDTO{
		UserID:       q.UserID,
		Achievements: filtered,
		Summary:      achievement.Summarize(defs, stored),
	}, nil
}
