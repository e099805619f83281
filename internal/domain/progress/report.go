package progress

import (
	"time"

	"github.com/defi-academy/navigator/internal/domain/scoring"
)

// Guidance is the catalog text used to build progress reports. The tracker
// selects entries; it never composes text.
type Guidance struct {
	// Milestones is the next-milestone text keyed by the learner's current tier.
	Milestones map[scoring.Tier]string `json:"milestones" yaml:"milestones"`

	// BasicLessonsTarget is the lesson count below which ContinueLessons is suggested.
	BasicLessonsTarget int `json:"basic_lessons_target" yaml:"basic_lessons_target"`

	ContinueLessons string `json:"continue_lessons" yaml:"continue_lessons"`
	TakeQuizzes     string `json:"take_quizzes" yaml:"take_quizzes"`
	TrySimulation   string `json:"try_simulation" yaml:"try_simulation"`
	KeepGoing       string `json:"keep_going" yaml:"keep_going"`
}

// ActivityProgress is completion for one activity kind.
type ActivityProgress struct {
	Kind      ActivityKind `json:"kind"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Percent   float64      `json:"percent"`
}

// Report is a read model of a learner's progress.
type Report struct {
	State             LearnerState       `json:"state"`
	Activities        []ActivityProgress `json:"activities"`
	CurrentStreak     int                `json:"current_streak"`
	BestStreak        int                `json:"best_streak"`
	NextTier          scoring.Tier       `json:"next_tier,omitempty"`
	NextTierAtPercent float64            `json:"next_tier_at_percent,omitempty"`
	NextMilestone     string             `json:"next_milestone"`
	Recommendations   []string           `json:"recommendations"`
}

// Report builds the progress report for record as seen at now.
func (t *Tracker) Report(record LearnerRecord, guidance Guidance, now time.Time) Report {
	state := record.State

	activities := make([]ActivityProgress, 0, len(AllActivityKinds))
	for _, kind := range AllActivityKinds {
		activities = append(activities, ActivityProgress{
			Kind:      kind,
			Completed: state.Count(kind),
			Total:     t.totals.For(kind),
			Percent:   scoring.RoundTo(t.Ratio(state, kind)*100, 2),
		})
	}

	report := Report{
		State:           state,
		Activities:      activities,
		CurrentStreak:   record.Streak.ActiveDays(now),
		BestStreak:      record.Streak.Best,
		NextMilestone:   guidance.Milestones[state.LevelTier],
		Recommendations: guidance.Recommend(state),
	}
	if next, ok := state.LevelTier.Next(); ok {
		report.NextTier = next
		report.NextTierAtPercent = t.calc.Config().Thresholds.For(next)
	}
	return report
}

// Recommend applies the rule set in order; when no rule fires it returns
// KeepGoing alone.
func (g Guidance) Recommend(state LearnerState) []string {
	var out []string
	if state.LessonsCompleted < g.BasicLessonsTarget && g.ContinueLessons != "" {
		out = append(out, g.ContinueLessons)
	}
	if state.QuizzesPassed < state.LessonsCompleted && g.TakeQuizzes != "" {
		out = append(out, g.TakeQuizzes)
	}
	if state.SimulationsCompleted == 0 && g.TrySimulation != "" {
		out = append(out, g.TrySimulation)
	}
	if len(out) == 0 && g.KeepGoing != "" {
		out = append(out, g.KeepGoing)
	}
	if out == nil {
		out = []string{}
	}
	return out
}
