package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/defi-academy/navigator/internal/domain/achievement"
)

// AchievementRepository implements achievement.Repository.
type AchievementRepository struct {
	mu       sync.RWMutex
	progress map[string]map[string]achievement.Progress
}

var _ achievement.Repository = (*AchievementRepository)(nil)

// NewAchievementRepository creates an empty AchievementRepository.
func NewAchievementRepository() *AchievementRepository {
	return &AchievementRepository{progress: make(map[string]map[string]achievement.Progress)}
}

// Get returns a copy of the user's progress.
func (r *AchievementRepository) Get(_ context.Context, userID string) (map[string]achievement.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]achievement.Progress, len(r.progress[userID]))
	maps.Copy(out, r.progress[userID])
	return out, nil
}

// Upsert merges entries with the same rules as the SQL conflict clause:
// progress keeps the maximum, an unlock is never reverted and the first
// unlock time wins.
func (r *AchievementRepository) Upsert(_ context.Context, userID string, entries []achievement.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.progress[userID]
	if !ok {
		stored = make(map[string]achievement.Progress)
		r.progress[userID] = stored
	}

	for _, next := range entries {
		prev, seen := stored[next.AchievementID]
		if seen {
			next.Progress = max(prev.Progress, next.Progress)
			next.Unlocked = prev.Unlocked || next.Unlocked
			if prev.UnlockedAt != nil {
				next.UnlockedAt = prev.UnlockedAt
			}
		}
		stored[next.AchievementID] = next
	}
	return nil
}
