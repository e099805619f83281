// Package catalog holds the static reference data the engine reads:
// quizzes, achievements, curriculum totals, progress guidance text and the
// risk reference tables. A Catalog is immutable once loaded and safe for
// concurrent use.
package catalog

import (
	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// Catalog is validated reference data.
type Catalog struct {
	name     string
	version  int
	source   string
	revision string

	totals       progress.Totals
	guidance     progress.Guidance
	quizzes      []*quiz.Definition
	quizByID     map[string]*quiz.Definition
	achievements []achievement.Definition
	risk         *risk.ReferenceTables
}

var _ quiz.Catalog = (*Catalog)(nil)

// Name is the catalog's declared name.
func (c *Catalog) Name() string { return c.name }

// Version is the declared document version.
func (c *Catalog) Version() int { return c.version }

// Source describes where the catalog was loaded from.
func (c *Catalog) Source() string { return c.source }

// Revision is a content hash of the source document. It changes whenever
// any reference value does.
func (c *Catalog) Revision() string { return c.revision }

// Totals returns the curriculum totals.
func (c *Catalog) Totals() progress.Totals { return c.totals }

// Guidance returns the progress guidance text.
func (c *Catalog) Guidance() progress.Guidance { return c.guidance }

// Quiz implements quiz.Catalog.
func (c *Catalog) Quiz(id string) (*quiz.Definition, error) {
	q, ok := c.quizByID[id]
	if !ok {
		return nil, shared.ErrQuizNotFound
	}
	return q, nil
}

// Quizzes implements quiz.Catalog.
func (c *Catalog) Quizzes() []*quiz.Definition {
	out := make([]*quiz.Definition, len(c.quizzes))
	copy(out, c.quizzes)
	return out
}

// Achievements returns the achievement definitions in catalog order.
func (c *Catalog) Achievements() []achievement.Definition {
	out := make([]achievement.Definition, len(c.achievements))
	copy(out, c.achievements)
	return out
}

// Achievement looks up one definition.
func (c *Catalog) Achievement(id string) (achievement.Definition, error) {
	for _, d := range c.achievements {
		if d.ID == id {
			return d, nil
		}
	}
	return achievement.Definition{}, shared.ErrAchievementNotFound
}

// RiskTables returns the risk reference tables.
func (c *Catalog) RiskTables() *risk.ReferenceTables { return c.risk }

// Stats summarizes catalog contents for logs and the CLI.
type Stats struct {
	Quizzes          int `json:"quizzes"`
	Questions        int `json:"questions"`
	Achievements     int `json:"achievements"`
	Protocols        int `json:"protocols"`
	Tokens           int `json:"tokens"`
	TransactionTiers int `json:"transaction_tiers"`
}

// Stats counts catalog entries.
func (c *Catalog) Stats() Stats {
	s := Stats{
		Quizzes:          len(c.quizzes),
		Achievements:     len(c.achievements),
		Protocols:        len(c.risk.Protocols),
		Tokens:           len(c.risk.Tokens),
		TransactionTiers: len(c.risk.TransactionTiers),
	}
	for _, q := range c.quizzes {
		s.Questions += q.QuestionCount()
	}
	return s
}
