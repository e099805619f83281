// Package achievement evaluates unlock conditions against learner counters
// and caller-supplied observations.
package achievement

import (
	"fmt"
	"strings"
	"time"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONDITION KINDS
// ══════════════════════════════════════════════════════════════════════════════

// ConditionKind is the closed set of unlock rules. Every kind has exactly
// one case in Evaluator.observe.
type ConditionKind string

const (
	// KindLessonCount counts completed lessons.
	KindLessonCount ConditionKind = "lesson_count"
	// KindQuizHighScoreCount counts observed quiz scores at or above MinScore.
	KindQuizHighScoreCount ConditionKind = "quiz_high_score_count"
	// KindSimulationCount counts completed simulations.
	KindSimulationCount ConditionKind = "simulation_count"
	// KindLearningStreak is the longest run of consecutive active days.
	KindLearningStreak ConditionKind = "learning_streak"
	// KindPerfectQuizScore counts observed quiz scores of exactly 100.
	KindPerfectQuizScore ConditionKind = "perfect_quiz_score"
	// KindExpertLevel is 1 once the learner reaches the Expert tier.
	KindExpertLevel ConditionKind = "expert_level"
)

// AllConditionKinds lists every supported kind.
var AllConditionKinds = []ConditionKind{
	KindLessonCount,
	KindQuizHighScoreCount,
	KindSimulationCount,
	KindLearningStreak,
	KindPerfectQuizScore,
	KindExpertLevel,
}

// IsValid checks if the kind is supported.
func (k ConditionKind) IsValid() bool {
	for _, known := range AllConditionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Rarity is how rare an achievement is.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// AllRarities lists rarities from most to least common.
var AllRarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

// IsValid checks if the rarity is known.
func (r Rarity) IsValid() bool {
	for _, known := range AllRarities {
		if r == known {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Condition is the unlock rule of an achievement.
type Condition struct {
	Kind     ConditionKind `json:"kind" yaml:"kind"`
	Target   int           `json:"target" yaml:"target"`
	MinScore *int          `json:"min_score,omitempty" yaml:"min_score"`
}

// Definition is immutable catalog data.
type Definition struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Icon        string    `json:"icon,omitempty" yaml:"icon"`
	Category    string    `json:"category,omitempty" yaml:"category"`
	Rarity      Rarity    `json:"rarity" yaml:"rarity"`
	Points      int       `json:"points" yaml:"points"`
	Condition   Condition `json:"condition" yaml:"condition"`
}

// Validate checks a single definition.
func (d Definition) Validate() error {
	const op = "ValidateDefinition"

	if strings.TrimSpace(d.ID) == "" {
		return shared.NewConfigurationError("achievement", op, "achievement id cannot be empty")
	}
	if !d.Condition.Kind.IsValid() {
		return shared.NewConfigurationError("achievement", op,
			fmt.Sprintf("achievement %q: unknown condition kind %q", d.ID, d.Condition.Kind))
	}
	if d.Condition.Target < 0 {
		return shared.NewConfigurationError("achievement", op,
			fmt.Sprintf("achievement %q: target cannot be negative", d.ID))
	}
	if d.Condition.Kind == KindQuizHighScoreCount {
		if d.Condition.MinScore == nil {
			return shared.NewConfigurationError("achievement", op,
				fmt.Sprintf("achievement %q: %s requires min_score", d.ID, d.Condition.Kind))
		}
		if *d.Condition.MinScore < 0 || *d.Condition.MinScore > 100 {
			return shared.NewConfigurationError("achievement", op,
				fmt.Sprintf("achievement %q: min_score must be within [0,100]", d.ID))
		}
	}
	if d.Rarity != "" && !d.Rarity.IsValid() {
		return shared.NewConfigurationError("achievement", op,
			fmt.Sprintf("achievement %q: unknown rarity %q", d.ID, d.Rarity))
	}
	if d.Points < 0 {
		return shared.NewConfigurationError("achievement", op,
			fmt.Sprintf("achievement %q: points cannot be negative", d.ID))
	}
	return nil
}

// ValidateCatalog validates every definition and rejects duplicate ids.
func ValidateCatalog(defs []Definition) error {
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.ID]; dup {
			return shared.NewConfigurationError("achievement", "ValidateCatalog",
				fmt.Sprintf("duplicate achievement id %q", d.ID))
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress is a learner's standing on one achievement. Once Unlocked is
// true it stays true, and Progress never decreases.
type Progress struct {
	AchievementID string     `json:"achievement_id"`
	Progress      int        `json:"progress"`
	Target        int        `json:"target"`
	Unlocked      bool       `json:"unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
}

// Percent returns min(progress/target*100, 100). A zero target is 100.
func (p Progress) Percent() float64 {
	if p.Target <= 0 {
		return 100
	}
	pct := float64(p.Progress) / float64(p.Target) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// Observations carries history the learner state does not hold.
type Observations struct {
	// QuizScores are all quiz scores the learner achieved.
	QuizScores []int `json:"quiz_scores"`
	// LongestStreakDays is the best run of consecutive active days.
	LongestStreakDays int `json:"longest_streak_days"`
}
