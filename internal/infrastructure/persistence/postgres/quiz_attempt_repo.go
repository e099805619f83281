package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/defi-academy/navigator/internal/domain/quiz"
)

// sqlBuilder renders filtered listings with PostgreSQL placeholders.
var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ATTEMPT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// QuizAttemptRepository implements quiz.AttemptRepository.
type QuizAttemptRepository struct {
	conn *Connection
}

var _ quiz.AttemptRepository = (*QuizAttemptRepository)(nil)

// NewQuizAttemptRepository creates a new QuizAttemptRepository.
func NewQuizAttemptRepository(conn *Connection) *QuizAttemptRepository {
	return &QuizAttemptRepository{conn: conn}
}

// Save stores a graded attempt.
func (r *QuizAttemptRepository) Save(ctx context.Context, a *quiz.Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO quiz_attempts (
			id, user_id, quiz_id, answers, score_percent, passed,
			correct_count, total_questions, result, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.QuizID, answers, a.Result.ScorePercent, a.Result.Passed,
		a.Result.CorrectCount, a.Result.TotalQuestions, result, a.SubmittedAt,
	)
	if err != nil {
		return translate("quiz", "SaveAttempt", "failed to save quiz attempt", err)
	}
	return nil
}

// List returns attempts matching filter, newest first.
func (r *QuizAttemptRepository) List(ctx context.Context, filter quiz.AttemptFilter) ([]*quiz.Attempt, error) {
	sql, args, err := attemptListQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build attempt query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*quiz.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Scores returns every score of the user, oldest first.
func (r *QuizAttemptRepository) Scores(ctx context.Context, userID string) ([]int, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT score_percent FROM quiz_attempts
		WHERE user_id = $1
		ORDER BY submitted_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}

	scores, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("failed to scan scores: %w", err)
	}
	return scores, nil
}

// HasPassed reports whether a passing attempt exists.
func (r *QuizAttemptRepository) HasPassed(ctx context.Context, userID, quizID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM quiz_attempts
			WHERE user_id = $1 AND quiz_id = $2 AND passed
		)`, userID, quizID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check passed attempt: %w", err)
	}
	return exists, nil
}

func attemptListQuery(filter quiz.AttemptFilter) squirrel.SelectBuilder {
	query := sqlBuilder.
		Select("id", "user_id", "quiz_id", "answers", "result", "submitted_at").
		From("quiz_attempts")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.QuizID != "" {
		query = query.Where(squirrel.Eq{"quiz_id": filter.QuizID})
	}
	if filter.PassedOnly {
		query = query.Where(squirrel.Eq{"passed": true})
	}
	if !filter.Since.IsZero() {
		query = query.Where(squirrel.GtOrEq{"submitted_at": filter.Since})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = quiz.DefaultAttemptLimit
	}
	return query.OrderBy("submitted_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(max(filter.Offset, 0)))
}

func scanAttempt(row pgx.Row) (*quiz.Attempt, error) {
	var (
		a               quiz.Attempt
		answers, result []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &answers, &result, &a.SubmittedAt); err != nil {
		return nil, fmt.Errorf("failed to scan quiz attempt: %w", err)
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(result, &a.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &a, nil
}
