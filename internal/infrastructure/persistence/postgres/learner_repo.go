package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements progress.Repository.
type LearnerRepository struct {
	conn *Connection
}

var _ progress.Repository = (*LearnerRepository)(nil)

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

const learnerColumns = `
	user_id, lessons_completed, quizzes_passed, simulations_completed,
	overall_progress_percent, level_tier,
	streak_current, streak_best, streak_last_active, streak_start,
	version, created_at, updated_at`

// Get returns a learner record.
func (r *LearnerRepository) Get(ctx context.Context, userID string) (*progress.LearnerRecord, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+learnerColumns+` FROM learners WHERE user_id = $1`, userID)

	rec, err := scanLearner(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to get learner: %w", err)
	}
	return rec, nil
}

// Save writes the record and its completion in one transaction. The
// learner row is guarded by its version column.
func (r *LearnerRepository) Save(ctx context.Context, rec *progress.LearnerRecord, completion *progress.Completion, expectedVersion int64) error {
	s := rec.State
	next := expectedVersion + 1

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var (
			tag pgconn.CommandTag
			err error
		)
		if expectedVersion == 0 {
			tag, err = tx.Exec(ctx, `
				INSERT INTO learners (`+learnerColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				ON CONFLICT (user_id) DO NOTHING`,
				s.UserID, s.LessonsCompleted, s.QuizzesPassed, s.SimulationsCompleted,
				s.OverallProgressPercent, string(s.LevelTier),
				rec.Streak.Current, rec.Streak.Best, nullTime(rec.Streak.LastActiveDate), nullTime(rec.Streak.StartDate),
				next, rec.CreatedAt, rec.UpdatedAt,
			)
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE learners SET
					lessons_completed = $2,
					quizzes_passed = $3,
					simulations_completed = $4,
					overall_progress_percent = $5,
					level_tier = $6,
					streak_current = $7,
					streak_best = $8,
					streak_last_active = $9,
					streak_start = $10,
					version = $11,
					updated_at = $12
				WHERE user_id = $1 AND version = $13`,
				s.UserID, s.LessonsCompleted, s.QuizzesPassed, s.SimulationsCompleted,
				s.OverallProgressPercent, string(s.LevelTier),
				rec.Streak.Current, rec.Streak.Best, nullTime(rec.Streak.LastActiveDate), nullTime(rec.Streak.StartDate),
				next, rec.UpdatedAt, expectedVersion,
			)
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrStaleLearnerVersion
		}

		if completion == nil {
			return nil
		}
		tag, err = tx.Exec(ctx, `
			INSERT INTO activity_completions (user_id, kind, ref_id, completed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, kind, ref_id) DO NOTHING`,
			completion.UserID, string(completion.Kind), completion.RefID, completion.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("record completion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrActivityAlreadyDone
		}
		return nil
	})
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		return translate("progress", "Save", "failed to save learner", err)
	}

	rec.Version = next
	return nil
}

// HasCompleted reports whether a completion key exists.
func (r *LearnerRepository) HasCompleted(ctx context.Context, userID string, kind progress.ActivityKind, refID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM activity_completions
			WHERE user_id = $1 AND kind = $2 AND ref_id = $3
		)`, userID, string(kind), refID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanLearner(row pgx.Row) (*progress.LearnerRecord, error) {
	var (
		rec                 progress.LearnerRecord
		tier                string
		lastActive, started *time.Time
	)
	err := row.Scan(
		&rec.State.UserID,
		&rec.State.LessonsCompleted,
		&rec.State.QuizzesPassed,
		&rec.State.SimulationsCompleted,
		&rec.State.OverallProgressPercent,
		&tier,
		&rec.Streak.Current,
		&rec.Streak.Best,
		&lastActive,
		&started,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.State.LevelTier = scoring.Tier(tier)
	if lastActive != nil {
		rec.Streak.LastActiveDate = lastActive.UTC()
	}
	if started != nil {
		rec.Streak.StartDate = started.UTC()
	}
	return &rec, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
