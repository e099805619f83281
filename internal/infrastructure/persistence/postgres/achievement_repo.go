package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/defi-academy/navigator/internal/domain/achievement"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository.
type AchievementRepository struct {
	conn *Connection
}

var _ achievement.Repository = (*AchievementRepository)(nil)

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// Get returns stored progress keyed by achievement id.
func (r *AchievementRepository) Get(ctx context.Context, userID string) (map[string]achievement.Progress, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT achievement_id, progress, target, unlocked, unlocked_at
		FROM achievement_progress
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievement progress: %w", err)
	}
	defer rows.Close()

	out := make(map[string]achievement.Progress)
	for rows.Next() {
		var (
			p          achievement.Progress
			unlockedAt *time.Time
		)
		if err := rows.Scan(&p.AchievementID, &p.Progress, &p.Target, &p.Unlocked, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement progress: %w", err)
		}
		if unlockedAt != nil {
			t := unlockedAt.UTC()
			p.UnlockedAt = &t
		}
		out[p.AchievementID] = p
	}
	return out, rows.Err()
}

// Upsert stores entries in one batch. The conflict clause keeps unlocks
// one-way and progress non-decreasing even under concurrent writers.
func (r *AchievementRepository) Upsert(ctx context.Context, userID string, entries []achievement.Progress) error {
	if len(entries) == 0 {
		return nil
	}

	const query = `
		INSERT INTO achievement_progress (user_id, achievement_id, progress, target, unlocked, unlocked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id, achievement_id) DO UPDATE SET
			progress = GREATEST(achievement_progress.progress, EXCLUDED.progress),
			target = EXCLUDED.target,
			unlocked = achievement_progress.unlocked OR EXCLUDED.unlocked,
			unlocked_at = COALESCE(achievement_progress.unlocked_at, EXCLUDED.unlocked_at),
			updated_at = NOW()`

	batch := &pgx.Batch{}
	for _, p := range entries {
		batch.Queue(query, userID, p.AchievementID, p.Progress, p.Target, p.Unlocked, p.UnlockedAt)
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range entries {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to upsert achievement progress: %w", err)
			}
		}
		return results.Close()
	})
}
