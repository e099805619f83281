package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

// Advice is catalog text attached to a result. The scorer selects advice,
// it never composes it.
type Advice struct {
	Warnings        []string `json:"warnings" yaml:"warnings"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// IsEmpty reports whether the advice has no text at all.
func (a Advice) IsEmpty() bool {
	return len(a.Warnings) == 0 && len(a.Recommendations) == 0
}

// ReferenceEntry is a known protocol or token. Overall is authoritative and
// Level must agree with the configured bands.
type ReferenceEntry struct {
	Key           string            `json:"key" yaml:"key"`
	Name          string            `json:"name" yaml:"name"`
	SubDimensions SubDimensions     `json:"sub_dimensions" yaml:"sub_dimensions"`
	Overall       int               `json:"overall" yaml:"overall"`
	Level         Level             `json:"level" yaml:"level"`
	Advice        Advice            `json:"advice" yaml:"advice"`
	Details       map[string]string `json:"details,omitempty" yaml:"details"`
}

// DefaultEntry is used for subjects missing from the reference data.
type DefaultEntry struct {
	SubDimensions SubDimensions `json:"sub_dimensions" yaml:"sub_dimensions"`
	Overall       int           `json:"overall" yaml:"overall"`
	Level         Level         `json:"level" yaml:"level"`
	Advice        Advice        `json:"advice" yaml:"advice"`
}

// TransactionTier applies to amounts strictly above AboveAmount.
type TransactionTier struct {
	Name          string        `json:"name" yaml:"name"`
	AboveAmount   float64       `json:"above_amount" yaml:"above_amount"`
	SubDimensions SubDimensions `json:"sub_dimensions" yaml:"sub_dimensions"`
}

// AdviceTable is advice keyed by subject type and level.
type AdviceTable map[SubjectType]map[Level]Advice

// Lookup returns the advice for (t, l) or empty advice.
func (a AdviceTable) Lookup(t SubjectType, l Level) Advice {
	if byLevel, ok := a[t]; ok {
		return byLevel[l]
	}
	return Advice{}
}

// ReferenceTables is all static data the scorer reads.
type ReferenceTables struct {
	Protocols map[string]ReferenceEntry
	Tokens    map[string]ReferenceEntry
	Unknown   DefaultEntry

	// TransactionTiers are ordered by AboveAmount ascending; the first tier
	// has AboveAmount 0 and also covers an amount of exactly 0.
	TransactionTiers []TransactionTier

	Advice AdviceTable

	// ConcentrationShare is the largest-position share (percent) at which
	// ConcentrationAdvice is added to a portfolio result.
	ConcentrationShare  float64
	ConcentrationAdvice Advice
}

// Protocol looks up a protocol by name (case-insensitive).
func (t *ReferenceTables) Protocol(name string) (ReferenceEntry, bool) {
	e, ok := t.Protocols[NormalizeKey(name)]
	return e, ok
}

// Token looks up a token by address (case-insensitive).
func (t *ReferenceTables) Token(address string) (ReferenceEntry, bool) {
	e, ok := t.Tokens[NormalizeKey(address)]
	return e, ok
}

// TierFor returns the highest tier whose threshold the amount exceeds.
func (t *ReferenceTables) TierFor(amount float64) TransactionTier {
	tier := t.TransactionTiers[0]
	for _, candidate := range t.TransactionTiers[1:] {
		if amount > candidate.AboveAmount {
			tier = candidate
		}
	}
	return tier
}

// SortedProtocols returns the protocol table ordered by overall, then key.
func (t *ReferenceTables) SortedProtocols() []ReferenceEntry {
	return sortedEntries(t.Protocols)
}

// SortedTokens returns the token table ordered by overall, then key.
func (t *ReferenceTables) SortedTokens() []ReferenceEntry {
	return sortedEntries(t.Tokens)
}

func sortedEntries(m map[string]ReferenceEntry) []ReferenceEntry {
	out := make([]ReferenceEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall < out[j].Overall
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Validate checks the tables against bands. It enforces that every entry's
// level agrees with its overall, that the default entry is high risk, and
// that transaction tiers are ordered and component-wise non-decreasing so
// that transaction risk is monotonic in amount.
func (t *ReferenceTables) Validate(bands Bands) error {
	const op = "ValidateTables"

	for name, table := range map[string]map[string]ReferenceEntry{"protocol": t.Protocols, "token": t.Tokens} {
		for key, e := range table {
			if key != NormalizeKey(key) || key == "" {
				return shared.NewConfigurationError("risk", op,
					fmt.Sprintf("%s key %q must be non-empty lower-case", name, key))
			}
			if err := validateEntry(bands, e.SubDimensions, e.Overall, e.Level); err != nil {
				return shared.WrapError("risk", op, shared.ErrConfiguration,
					fmt.Sprintf("%s %q", name, key), err)
			}
		}
	}

	if err := validateEntry(bands, t.Unknown.SubDimensions, t.Unknown.Overall, t.Unknown.Level); err != nil {
		return shared.WrapError("risk", op, shared.ErrConfiguration, "unknown default", err)
	}
	if t.Unknown.Level != LevelHigh {
		return shared.NewConfigurationError("risk", op, "unknown default must be high risk")
	}

	if len(t.TransactionTiers) == 0 {
		return shared.NewConfigurationError("risk", op, "at least one transaction tier is required")
	}
	if t.TransactionTiers[0].AboveAmount != 0 {
		return shared.NewConfigurationError("risk", op, "first transaction tier must start at amount 0")
	}
	for i, tier := range t.TransactionTiers {
		if err := tier.SubDimensions.Validate(); err != nil {
			return shared.WrapError("risk", op, shared.ErrConfiguration,
				fmt.Sprintf("transaction tier %q", tier.Name), err)
		}
		if i == 0 {
			continue
		}
		prev := t.TransactionTiers[i-1]
		if tier.AboveAmount <= prev.AboveAmount {
			return shared.NewConfigurationError("risk", op,
				fmt.Sprintf("transaction tier %q threshold must exceed %v", tier.Name, prev.AboveAmount))
		}
		if !tier.SubDimensions.AtLeast(prev.SubDimensions) {
			return shared.NewConfigurationError("risk", op,
				fmt.Sprintf("transaction tier %q must not lower any sub-dimension of %q", tier.Name, prev.Name))
		}
	}

	for subjectType, byLevel := range t.Advice {
		if !subjectType.IsValid() {
			return shared.NewConfigurationError("risk", op,
				fmt.Sprintf("advice for unknown subject type %q", subjectType))
		}
		for level := range byLevel {
			if !level.IsValid() {
				return shared.NewConfigurationError("risk", op,
					fmt.Sprintf("advice for unknown level %q", level))
			}
		}
	}

	if math.IsNaN(t.ConcentrationShare) || t.ConcentrationShare < 0 || t.ConcentrationShare > 100 {
		return shared.NewConfigurationError("risk", op, "concentration share must be within [0,100]")
	}
	return nil
}

func validateEntry(bands Bands, dims SubDimensions, overall int, level Level) error {
	if err := dims.Validate(); err != nil {
		return err
	}
	if overall < 0 || overall > 100 {
		return shared.NewConfigurationError("risk", "validateEntry",
			fmt.Sprintf("overall %d out of range [0,100]", overall))
	}
	if want := bands.LevelFor(overall); level != want {
		return shared.NewConfigurationError("risk", "validateEntry",
			fmt.Sprintf("level %q disagrees with overall %d (expected %q)", level, overall, want))
	}
	return nil
}

// NormalizeTable keys entries by their lower-cased key and rejects duplicates.
func NormalizeTable(entries []ReferenceEntry) (map[string]ReferenceEntry, error) {
	out := make(map[string]ReferenceEntry, len(entries))
	for _, e := range entries {
		key := NormalizeKey(e.Key)
		if key == "" {
			return nil, shared.NewConfigurationError("risk", "NormalizeTable", "reference entry key cannot be empty")
		}
		if _, dup := out[key]; dup {
			return nil, shared.NewConfigurationError("risk", "NormalizeTable",
				fmt.Sprintf("duplicate reference key %q", key))
		}
		e.Key = key
		e.Level = Level(strings.ToLower(string(e.Level)))
		out[key] = e
	}
	return out, nil
}
