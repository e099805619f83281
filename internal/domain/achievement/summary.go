package achievement

import (
	"context"
)

// View pairs a definition with a learner's progress on it.
type View struct {
	Definition      Definition `json:"definition"`
	Progress        Progress   `json:"progress"`
	ProgressPercent float64    `json:"progress_percent"`
}

// Summary aggregates a learner's achievements.
type Summary struct {
	Unlocked           int            `json:"unlocked"`
	Total              int            `json:"total"`
	CompletionRate     float64        `json:"completion_rate"`
	Points             int            `json:"points"`
	AvailablePoints    int            `json:"available_points"`
	RarityDistribution map[Rarity]int `json:"rarity_distribution"`
}

// Views returns one View per catalog entry, in catalog order. Missing
// progress entries are reported at zero.
func Views(catalog []Definition, progress map[string]Progress) []View {
	views := make([]View, 0, len(catalog))
	for _, def := range catalog {
		p, ok := progress[def.ID]
		if !ok {
			p = Progress{AchievementID: def.ID, Target: def.Condition.Target}
		}
		views = append(views, View{
			Definition:      def,
			Progress:        p,
			ProgressPercent: p.Percent(),
		})
	}
	return views
}

// Summarize computes unlock statistics over the catalog. The rarity
// distribution counts unlocked achievements only.
func Summarize(catalog []Definition, progress map[string]Progress) Summary {
	s := Summary{
		Total:              len(catalog),
		RarityDistribution: make(map[Rarity]int),
	}
	for _, def := range catalog {
		s.AvailablePoints += def.Points
		if p, ok := progress[def.ID]; ok && p.Unlocked {
			s.Unlocked++
			s.Points += def.Points
			s.RarityDistribution[def.Rarity]++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = float64(s.Unlocked) / float64(s.Total) * 100
	}
	return s
}

// Repository persists achievement progress.
type Repository interface {
	// Get returns all stored progress for the user keyed by achievement id.
	// A user with no rows yields an empty map.
	Get(ctx context.Context, userID string) (map[string]Progress, error)

	// Upsert stores entries. Stores must never flip Unlocked back to false
	// nor lower Progress.
	Upsert(ctx context.Context, userID string, entries []Progress) error
}
