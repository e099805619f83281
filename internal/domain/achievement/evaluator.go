package achievement

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

// Evaluation is the result of one evaluation pass.
type Evaluation struct {
	// Progress holds an entry for every catalog achievement.
	Progress map[string]Progress
	// NewlyUnlocked lists achievements that became unlocked in this pass,
	// in catalog order.
	NewlyUnlocked []Definition
}

// Changed returns the entries whose progress or unlock state differ from
// existing, ordered by achievement id.
func (e Evaluation) Changed(existing map[string]Progress) []Progress {
	var out []Progress
	for id, p := range e.Progress {
		prev, ok := existing[id]
		if !ok || prev.Progress != p.Progress || prev.Unlocked != p.Unlocked || prev.Target != p.Target {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Progress) int {
		return strings.Compare(a.AchievementID, b.AchievementID)
	})
	return out
}

// Evaluator applies achievement conditions. It is pure apart from the clock
// used to stamp UnlockedAt.
type Evaluator struct {
	now timeutil.Clock
}

// NewEvaluator creates an Evaluator. A nil clock uses the system clock.
func NewEvaluator(clock timeutil.Clock) *Evaluator {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &Evaluator{now: clock}
}

// Evaluate computes progress for every definition in catalog.
//
// progress = min(max(prior, observed), target). An achievement unlocks the
// first time progress reaches its target and never locks again. Entries in
// existing that are not in catalog are carried over unchanged.
func (e *Evaluator) Evaluate(state progress.LearnerState, obs Observations, existing map[string]Progress, catalog []Definition) (Evaluation, error) {
	result := Evaluation{
		Progress: make(map[string]Progress, len(catalog)+len(existing)),
	}
	for id, p := range existing {
		result.Progress[id] = p
	}

	var unlockedAt time.Time
	for _, def := range catalog {
		observed, err := observe(def.Condition, state, obs)
		if err != nil {
			return Evaluation{}, shared.WrapError("achievement", "Evaluate", shared.ErrConfiguration,
				fmt.Sprintf("achievement %q", def.ID), err)
		}

		target := def.Condition.Target
		prior, seen := existing[def.ID]

		current := min(observed, target)
		if seen && prior.Progress > current {
			// A lowered target caps carried-over progress.
			current = min(prior.Progress, target)
		}

		next := Progress{
			AchievementID: def.ID,
			Progress:      current,
			Target:        target,
		}

		switch {
		case seen && prior.Unlocked:
			next.Unlocked = true
			next.UnlockedAt = prior.UnlockedAt
		case current >= target:
			if unlockedAt.IsZero() {
				unlockedAt = e.now()
			}
			at := unlockedAt
			next.Unlocked = true
			next.UnlockedAt = &at
			result.NewlyUnlocked = append(result.NewlyUnlocked, def)
		}

		result.Progress[def.ID] = next
	}

	return result, nil
}

// observe maps a condition to the learner's current value for it.
func observe(c Condition, state progress.LearnerState, obs Observations) (int, error) {
	switch c.Kind {
	case KindLessonCount:
		return state.LessonsCompleted, nil
	case KindSimulationCount:
		return state.SimulationsCompleted, nil
	case KindExpertLevel:
		if state.LevelTier == scoring.TierExpert {
			return 1, nil
		}
		return 0, nil
	case KindQuizHighScoreCount:
		if c.MinScore == nil {
			return 0, shared.NewConfigurationError("achievement", "observe",
				"quiz_high_score_count requires min_score")
		}
		return countScores(obs.QuizScores, func(s int) bool { return s >= *c.MinScore }), nil
	case KindPerfectQuizScore:
		return countScores(obs.QuizScores, func(s int) bool { return s == 100 }), nil
	case KindLearningStreak:
		return max(obs.LongestStreakDays, 0), nil
	default:
		return 0, shared.NewConfigurationError("achievement", "observe",
			fmt.Sprintf("unsupported condition kind %q", c.Kind))
	}
}

func countScores(scores []int, match func(int) bool) int {
	n := 0
	for _, s := range scores {
		if match(s) {
			n++
		}
	}
	return n
}
