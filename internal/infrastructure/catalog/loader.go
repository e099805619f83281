package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// DocumentName is the expected value of the top-level catalog field.
const DocumentName = "navigator"

//go:embed default_catalog.yaml
var defaultCatalog []byte

// DefaultSource names the embedded catalog.
const DefaultSource = "embedded:default_catalog.yaml"

type document struct {
	Catalog    string             `yaml:"catalog"`
	Version    int                `yaml:"version"`
	Curriculum curriculumDocument `yaml:"curriculum"`
	Guidance   progress.Guidance  `yaml:"guidance"`

	Quizzes      []quiz.Definition        `yaml:"quizzes"`
	Achievements []achievement.Definition `yaml:"achievements"`
	Risk         riskDocument             `yaml:"risk"`
}

type curriculumDocument struct {
	Totals progress.Totals `yaml:"totals"`
}

type riskDocument struct {
	Protocols        []risk.ReferenceEntry                           `yaml:"protocols"`
	Tokens           []risk.ReferenceEntry                           `yaml:"tokens"`
	Unknown          risk.DefaultEntry                               `yaml:"unknown"`
	TransactionTiers []risk.TransactionTier                          `yaml:"transaction_tiers"`
	Advice           map[risk.SubjectType]map[risk.Level]risk.Advice `yaml:"advice"`
	Concentration    struct {
		Share  float64     `yaml:"share"`
		Advice risk.Advice `yaml:"advice"`
	} `yaml:"concentration"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

type options struct {
	source string
	bands  risk.Bands
}

// Option configures loading.
type Option func(*options)

// WithSource sets the source label reported by Catalog.Source.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

// WithRiskBands validates reference levels against bands instead of the defaults.
func WithRiskBands(bands risk.Bands) Option {
	return func(o *options) { o.bands = bands }
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading
// ─────────────────────────────────────────────────────────────────────────────

// LoadDefault parses the embedded catalog.
func LoadDefault(opts ...Option) (*Catalog, error) {
	return Parse(defaultCatalog, append([]Option{WithSource(DefaultSource)}, opts...)...)
}

// Load reads and parses the catalog at path. An empty path loads the
// embedded default.
func Load(path string, opts ...Option) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault(opts...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.WrapError("catalog", "Load", shared.ErrConfiguration,
			fmt.Sprintf("read catalog %s", path), err)
	}
	return Parse(data, append([]Option{WithSource(path)}, opts...)...)
}

// DefaultDocument returns the embedded catalog bytes.
func DefaultDocument() []byte {
	return bytes.Clone(defaultCatalog)
}

// Parse decodes and validates a catalog document. Unknown fields are
// rejected so that typos surface at start-up.
func Parse(data []byte, opts ...Option) (*Catalog, error) {
	o := options{source: "inline", bands: risk.DefaultBands()}
	for _, opt := range opts {
		opt(&o)
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, shared.NewConfigurationError("catalog", "Parse", "catalog document is empty")
		}
		return nil, shared.WrapError("catalog", "Parse", shared.ErrConfiguration,
			fmt.Sprintf("decode %s", o.source), err)
	}

	c, err := build(doc, o)
	if err != nil {
		return nil, err
	}
	c.revision = strconv.FormatUint(xxhash.Sum64(data), 16)
	return c, nil
}

func build(doc document, o options) (*Catalog, error) {
	const op = "Parse"

	if strings.TrimSpace(doc.Catalog) != DocumentName {
		return nil, shared.NewConfigurationError("catalog", op,
			fmt.Sprintf("unexpected catalog %q, want %q", doc.Catalog, DocumentName))
	}
	if doc.Version != 1 {
		return nil, shared.NewConfigurationError("catalog", op,
			fmt.Sprintf("unsupported catalog version %d", doc.Version))
	}

	totals := progress.DefaultTotals().Override(doc.Curriculum.Totals)
	if err := totals.Validate(); err != nil {
		return nil, err
	}
	if err := validateGuidance(doc.Guidance); err != nil {
		return nil, err
	}

	quizzes := make([]*quiz.Definition, 0, len(doc.Quizzes))
	quizByID := make(map[string]*quiz.Definition, len(doc.Quizzes))
	for i := range doc.Quizzes {
		q := doc.Quizzes[i]
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := quizByID[q.ID]; dup {
			return nil, shared.NewConfigurationError("catalog", op,
				fmt.Sprintf("duplicate quiz id %q", q.ID))
		}
		quizzes = append(quizzes, &q)
		quizByID[q.ID] = &q
	}

	if err := achievement.ValidateCatalog(doc.Achievements); err != nil {
		return nil, err
	}

	tables, err := buildRiskTables(doc.Risk)
	if err != nil {
		return nil, err
	}
	if err := tables.Validate(o.bands); err != nil {
		return nil, err
	}

	return &Catalog{
		name:         doc.Catalog,
		version:      doc.Version,
		source:       o.source,
		totals:       totals,
		guidance:     doc.Guidance,
		quizzes:      quizzes,
		quizByID:     quizByID,
		achievements: doc.Achievements,
		risk:         tables,
	}, nil
}

func buildRiskTables(doc riskDocument) (*risk.ReferenceTables, error) {
	protocols, err := risk.NormalizeTable(doc.Protocols)
	if err != nil {
		return nil, err
	}
	tokens, err := risk.NormalizeTable(doc.Tokens)
	if err != nil {
		return nil, err
	}
	advice := make(risk.AdviceTable, len(doc.Advice))
	for t, byLevel := range doc.Advice {
		advice[t] = byLevel
	}
	return &risk.ReferenceTables{
		Protocols:           protocols,
		Tokens:              tokens,
		Unknown:             doc.Unknown,
		TransactionTiers:    doc.TransactionTiers,
		Advice:              advice,
		ConcentrationShare:  doc.Concentration.Share,
		ConcentrationAdvice: doc.Concentration.Advice,
	}, nil
}

func validateGuidance(g progress.Guidance) error {
	for tier := range g.Milestones {
		if !tier.IsValid() {
			return shared.NewConfigurationError("catalog", "ValidateGuidance",
				fmt.Sprintf("milestone for unknown tier %q", tier))
		}
	}
	for _, tier := range scoring.AllTiers {
		if strings.TrimSpace(g.Milestones[tier]) == "" {
			return shared.NewConfigurationError("catalog", "ValidateGuidance",
				fmt.Sprintf("missing milestone text for tier %s", tier))
		}
	}
	if g.BasicLessonsTarget < 0 {
		return shared.NewConfigurationError("catalog", "ValidateGuidance", "basic_lessons_target cannot be negative")
	}
	return nil
}
