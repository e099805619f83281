package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RISK ASSESSMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RiskAssessmentRepository implements risk.Repository.
type RiskAssessmentRepository struct {
	conn *Connection
}

var _ risk.Repository = (*RiskAssessmentRepository)(nil)

// NewRiskAssessmentRepository creates a new RiskAssessmentRepository.
func NewRiskAssessmentRepository(conn *Connection) *RiskAssessmentRepository {
	return &RiskAssessmentRepository{conn: conn}
}

var assessmentColumns = []string{
	"id", "COALESCE(user_id, '')", "subject", "inputs", "result", "inputs_hash", "cached", "assessed_at",
}

// Save stores an assessment.
func (r *RiskAssessmentRepository) Save(ctx context.Context, a *risk.Assessment) error {
	subject, err := json.Marshal(a.Subject)
	if err != nil {
		return fmt.Errorf("failed to marshal subject: %w", err)
	}
	inputs, err := json.Marshal(a.Inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal inputs: %w", err)
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var userID *string
	if a.UserID != "" {
		userID = &a.UserID
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO risk_assessments (
			id, user_id, subject_type, subject_key, inputs_hash, overall, level,
			subject, inputs, result, cached, assessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, userID, string(a.Result.SubjectType), a.Result.SubjectKey, a.InputsHash,
		a.Result.Overall, string(a.Result.Level), subject, inputs, result, a.Cached, a.AssessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save risk assessment: %w", err)
	}
	return nil
}

// Get returns one assessment.
func (r *RiskAssessmentRepository) Get(ctx context.Context, id string) (*risk.Assessment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrAssessmentNotFound
	}

	query, args, err := sqlBuilder.Select(assessmentColumns...).
		From("risk_assessments").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build assessment query: %w", err)
	}

	a, err := scanAssessment(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns assessments matching filter, newest first.
func (r *RiskAssessmentRepository) List(ctx context.Context, filter risk.AssessmentFilter) ([]*risk.Assessment, error) {
	sql, args, err := assessmentListQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build assessment query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk assessments: %w", err)
	}
	defer rows.Close()

	var out []*risk.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteBefore removes assessments older than cutoff.
func (r *RiskAssessmentRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	sql, args, err := sqlBuilder.Delete("risk_assessments").
		Where(squirrel.Lt{"assessed_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build assessment delete: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune risk assessments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func assessmentListQuery(filter risk.AssessmentFilter) squirrel.SelectBuilder {
	query := sqlBuilder.Select(assessmentColumns...).From("risk_assessments")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.SubjectType != "" {
		query = query.Where(squirrel.Eq{"subject_type": string(filter.SubjectType)})
	}
	if filter.SubjectKey != "" {
		query = query.Where(squirrel.Eq{"subject_key": risk.NormalizeKey(filter.SubjectKey)})
	}
	if filter.Level != "" {
		query = query.Where(squirrel.Eq{"level": string(filter.Level)})
	}
	if !filter.Since.IsZero() {
		query = query.Where(squirrel.GtOrEq{"assessed_at": filter.Since})
	}

	return query.OrderBy("assessed_at DESC", "id").
		Limit(uint64(filter.EffectiveLimit())).
		Offset(uint64(max(filter.Offset, 0)))
}

func scanAssessment(row pgx.Row) (*risk.Assessment, error) {
	var (
		a                       risk.Assessment
		subject, inputs, result []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &subject, &inputs, &result, &a.InputsHash, &a.Cached, &a.AssessedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(subject, &a.Subject); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subject: %w", err)
	}
	if err := json.Unmarshal(inputs, &a.Inputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inputs: %w", err)
	}
	if err := json.Unmarshal(result, &a.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &a, nil
}
