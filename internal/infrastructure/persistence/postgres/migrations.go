package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one schema step.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return NewMigratorWithMigrations(conn, Migrations())
}

// NewMigratorWithMigrations creates a migrator over a custom set, sorted by version.
func NewMigratorWithMigrations(conn *Connection, migrations []Migration) *Migrator {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	return &Migrator{
		conn:       conn,
		migrations: sorted,
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations in version order and returns how
// many were applied. Each migration runs in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, done := applied[mig.Version]; done {
			continue
		}
		if mig.UpSQL == "" {
			return count, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}
	return count, nil
}

// Rollback reverts the most recently applied migration. It returns the
// reverted version, or 0 when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	last := 0
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return 0, nil
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil || target.DownSQL == "" {
		return 0, fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.DownSQL); err != nil {
			return fmt.Errorf("failed to roll back migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
	if err != nil {
		return 0, err
	}
	return last, nil
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migrations returns the embedded schema.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_learners", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_quiz_attempts", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_achievement_progress", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_risk_assessments", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// 001: learners and activity completions
// ─────────────────────────────────────────────────────────────────────────────

const migration001Up = `
CREATE TABLE IF NOT EXISTS learners (
    user_id TEXT PRIMARY KEY,
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    quizzes_passed INTEGER NOT NULL DEFAULT 0,
    simulations_completed INTEGER NOT NULL DEFAULT 0,
    overall_progress_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
    level_tier VARCHAR(20) NOT NULL DEFAULT 'Beginner',
    streak_current INTEGER NOT NULL DEFAULT 0,
    streak_best INTEGER NOT NULL DEFAULT 0,
    streak_last_active TIMESTAMP WITH TIME ZONE,
    streak_start TIMESTAMP WITH TIME ZONE,
    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_counters CHECK (lessons_completed >= 0 AND quizzes_passed >= 0 AND simulations_completed >= 0),
    CONSTRAINT valid_progress CHECK (overall_progress_percent >= 0 AND overall_progress_percent <= 100),
    CONSTRAINT valid_tier CHECK (level_tier IN ('Beginner', 'Intermediate', 'Advanced', 'Expert'))
);

CREATE INDEX IF NOT EXISTS idx_learners_level_tier ON learners(level_tier);

CREATE TABLE IF NOT EXISTS activity_completions (
    user_id TEXT NOT NULL REFERENCES learners(user_id) ON DELETE CASCADE,
    kind VARCHAR(20) NOT NULL,
    ref_id TEXT NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, kind, ref_id),
    CONSTRAINT valid_kind CHECK (kind IN ('lesson', 'quiz', 'simulation'))
);

CREATE INDEX IF NOT EXISTS idx_activity_completions_user_time ON activity_completions(user_id, completed_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS activity_completions;
DROP TABLE IF EXISTS learners;
`

// ─────────────────────────────────────────────────────────────────────────────
// 002: quiz attempts
// ─────────────────────────────────────────────────────────────────────────────

const migration002Up = `
CREATE TABLE IF NOT EXISTS quiz_attempts (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    quiz_id TEXT NOT NULL,
    answers JSONB NOT NULL,
    score_percent INTEGER NOT NULL,
    passed BOOLEAN NOT NULL,
    correct_count INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    result JSONB NOT NULL,
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_score CHECK (score_percent >= 0 AND score_percent <= 100)
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_time ON quiz_attempts(user_id, submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_quiz_attempts_passed ON quiz_attempts(user_id, quiz_id) WHERE passed;
`

const migration002Down = `
DROP TABLE IF EXISTS quiz_attempts;
`

// ─────────────────────────────────────────────────────────────────────────────
// 003: achievement progress
// ─────────────────────────────────────────────────────────────────────────────

const migration003Up = `
CREATE TABLE IF NOT EXISTS achievement_progress (
    user_id TEXT NOT NULL,
    achievement_id TEXT NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    target INTEGER NOT NULL DEFAULT 0,
    unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    unlocked_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, achievement_id),
    CONSTRAINT valid_progress CHECK (progress >= 0 AND target >= 0)
);

CREATE INDEX IF NOT EXISTS idx_achievement_progress_unlocked ON achievement_progress(achievement_id) WHERE unlocked;
`

const migration003Down = `
DROP TABLE IF EXISTS achievement_progress;
`

// ─────────────────────────────────────────────────────────────────────────────
// 004: risk assessments
// ─────────────────────────────────────────────────────────────────────────────

const migration004Up = `
CREATE TABLE IF NOT EXISTS risk_assessments (
    id UUID PRIMARY KEY,
    user_id TEXT,
    subject_type VARCHAR(20) NOT NULL,
    subject_key TEXT NOT NULL,
    inputs_hash TEXT NOT NULL,
    overall INTEGER NOT NULL,
    level VARCHAR(10) NOT NULL,
    subject JSONB NOT NULL,
    inputs JSONB NOT NULL,
    result JSONB NOT NULL,
    cached BOOLEAN NOT NULL DEFAULT FALSE,
    assessed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_subject_type CHECK (subject_type IN ('protocol', 'token', 'portfolio', 'transaction')),
    CONSTRAINT valid_level CHECK (level IN ('low', 'medium', 'high')),
    CONSTRAINT valid_overall CHECK (overall >= 0 AND overall <= 100)
);

CREATE INDEX IF NOT EXISTS idx_risk_assessments_subject ON risk_assessments(subject_type, subject_key, assessed_at DESC);
CREATE INDEX IF NOT EXISTS idx_risk_assessments_user ON risk_assessments(user_id, assessed_at DESC) WHERE user_id IS NOT NULL;
`

const migration004Down = `
DROP TABLE IF EXISTS risk_assessments;
`
