package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/defi-academy/navigator/pkg/logger"
)

// AssessmentPruner deletes risk assessments older than a cutoff.
type AssessmentPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// PruneAssessmentsJob enforces the retention window of the assessment
// history.
type PruneAssessmentsJob struct {
	repo      AssessmentPruner
	retention time.Duration
	now       func() time.Time
	log       *logger.Logger
}

var _ Job = (*PruneAssessmentsJob)(nil)

// NewPruneAssessmentsJob creates the job. retention must be positive.
func NewPruneAssessmentsJob(repo AssessmentPruner, retention time.Duration, log *logger.Logger) (*PruneAssessmentsJob, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PruneAssessmentsJob{
		repo:      repo,
		retention: retention,
		now:       time.Now,
		log:       log,
	}, nil
}

// Name implements Job.
func (j *PruneAssessmentsJob) Name() string { return "prune-assessments" }

// Description implements Job.
func (j *PruneAssessmentsJob) Description() string {
	return fmt.Sprintf("Delete risk assessments older than %s", j.retention)
}

// Run implements Job.
func (j *PruneAssessmentsJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	removed, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune assessments: %w", err)
	}
	if removed > 0 {
		j.log.Info("pruned risk assessments",
			logger.Int("removed", removed),
			logger.Time("cutoff", cutoff),
		)
	}
	return nil
}
