// Package quiz contains quiz definitions, the pure grader and the attempt
// records the application layer persists.
package quiz

import (
	"fmt"
	"strings"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

// Difficulty describes how demanding a quiz is.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid checks if the difficulty is valid. Empty means unspecified.
func (d Difficulty) IsValid() bool {
	switch d {
	case "", DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Question is a single multiple-choice question.
type Question struct {
	Text               string   `json:"text" yaml:"text"`
	Options            []string `json:"options" yaml:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index" yaml:"correct_answer_index"`
	Explanation        string   `json:"explanation" yaml:"explanation"`
}

// Definition is immutable catalog data for a quiz.
type Definition struct {
	ID                  string     `json:"id" yaml:"id"`
	Title               string     `json:"title" yaml:"title"`
	Description         string     `json:"description,omitempty" yaml:"description"`
	Topic               string     `json:"topic,omitempty" yaml:"topic"`
	Difficulty          Difficulty `json:"difficulty,omitempty" yaml:"difficulty"`
	PassingScorePercent int        `json:"passing_score_percent" yaml:"passing_score_percent"`
	Questions           []Question `json:"questions" yaml:"questions"`
}

// Validate checks the definition for structural problems. It is run once
// when a catalog is loaded; the grader then trusts the definition.
func (d *Definition) Validate() error {
	const op = "ValidateDefinition"

	if strings.TrimSpace(d.ID) == "" {
		return shared.NewConfigurationError("quiz", op, "quiz id cannot be empty")
	}
	if d.PassingScorePercent < 0 || d.PassingScorePercent > 100 {
		return shared.NewConfigurationError("quiz", op,
			fmt.Sprintf("quiz %q: passing score must be within [0,100], got %d", d.ID, d.PassingScorePercent))
	}
	if !d.Difficulty.IsValid() {
		return shared.NewConfigurationError("quiz", op,
			fmt.Sprintf("quiz %q: unknown difficulty %q", d.ID, d.Difficulty))
	}
	if len(d.Questions) == 0 {
		return shared.NewConfigurationError("quiz", op,
			fmt.Sprintf("quiz %q has no questions", d.ID))
	}
	for i, q := range d.Questions {
		if len(q.Options) < 2 {
			return shared.NewConfigurationError("quiz", op,
				fmt.Sprintf("quiz %q question %d: needs at least two options", d.ID, i))
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return shared.NewConfigurationError("quiz", op,
				fmt.Sprintf("quiz %q question %d: correct answer index %d out of range", d.ID, i, q.CorrectAnswerIndex))
		}
	}
	return nil
}

// QuestionCount returns the number of questions.
func (d *Definition) QuestionCount() int {
	return len(d.Questions)
}

// AnswerKey returns the correct option index for every question.
func (d *Definition) AnswerKey() []int {
	key := make([]int, len(d.Questions))
	for i, q := range d.Questions {
		key[i] = q.CorrectAnswerIndex
	}
	return key
}

// ─────────────────────────────────────────────────────────────────────────────
// Public view
// ─────────────────────────────────────────────────────────────────────────────

// PublicQuestion is a question without its answer or explanation.
type PublicQuestion struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// PublicView is what a learner sees before submitting.
type PublicView struct {
	ID                  string           `json:"id"`
	Title               string           `json:"title"`
	Description         string           `json:"description,omitempty"`
	Topic               string           `json:"topic,omitempty"`
	Difficulty          Difficulty       `json:"difficulty,omitempty"`
	PassingScorePercent int              `json:"passing_score_percent"`
	Questions           []PublicQuestion `json:"questions"`
}

// Public strips answer keys and explanations. Question IDs are 1-based.
func (d *Definition) Public() PublicView {
	questions := make([]PublicQuestion, len(d.Questions))
	for i, q := range d.Questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		questions[i] = PublicQuestion{ID: i + 1, Text: q.Text, Options: opts}
	}
	return PublicView{
		ID:                  d.ID,
		Title:               d.Title,
		Description:         d.Description,
		Topic:               d.Topic,
		Difficulty:          d.Difficulty,
		PassingScorePercent: d.PassingScorePercent,
		Questions:           questions,
	}
}
