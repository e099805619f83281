package risk

import (
	"fmt"
	"math"
	"strconv"

	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// Scorer assesses risk subjects against validated reference tables.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	cfg    Config
	tables *ReferenceTables
}

// NewScorer validates cfg and tables and returns a Scorer.
func NewScorer(cfg Config, tables *ReferenceTables) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tables == nil {
		return nil, shared.NewConfigurationError("risk", "NewScorer", "reference tables are required")
	}
	if err := tables.Validate(cfg.Bands); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg, tables: tables}, nil
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Tables returns the reference tables.
func (s *Scorer) Tables() *ReferenceTables {
	return s.tables
}

// Assess computes the risk result for subject. Unknown protocols and tokens
// yield the high-risk default carrying UnknownSubjectWarning; that is a
// result, not an error. Errors are returned only for malformed input.
func (s *Scorer) Assess(subject Subject, inputs Inputs) (Result, error) {
	if err := subject.Validate(); err != nil {
		return Result{}, err
	}
	if err := inputs.Validate(subject.Type); err != nil {
		return Result{}, err
	}

	subject = subject.Normalize()
	switch subject.Type {
	case SubjectProtocol:
		return s.assessReference(subject, s.tables.Protocols), nil
	case SubjectToken:
		return s.assessReference(subject, s.tables.Tokens), nil
	case SubjectTransaction:
		return s.assessTransaction(subject), nil
	case SubjectPortfolio:
		return s.assessPortfolio(subject, inputs), nil
	default:
		return Result{}, shared.ErrUnknownSubjectType
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Protocols and tokens
// ─────────────────────────────────────────────────────────────────────────────

func (s *Scorer) assessReference(subject Subject, table map[string]ReferenceEntry) Result {
	key := subject.Key()
	entry, ok := table[key]
	if !ok {
		return s.unknownResult(subject.Type, key)
	}

	advice := entry.Advice
	if advice.IsEmpty() {
		advice = s.tables.Advice.Lookup(subject.Type, entry.Level)
	}

	var details map[string]string
	if len(entry.Details) > 0 || entry.Name != "" {
		details = make(map[string]string, len(entry.Details)+1)
		for k, v := range entry.Details {
			details[k] = v
		}
		if entry.Name != "" {
			details["name"] = entry.Name
		}
	}

	return Result{
		SubjectType:     subject.Type,
		SubjectKey:      key,
		SubDimensions:   entry.SubDimensions,
		Overall:         entry.Overall,
		Level:           entry.Level,
		Warnings:        cloneStrings(advice.Warnings),
		Recommendations: cloneStrings(advice.Recommendations),
		Details:         details,
		Known:           true,
	}
}

func (s *Scorer) unknownResult(t SubjectType, key string) Result {
	u := s.tables.Unknown
	return Result{
		SubjectType:     t,
		SubjectKey:      key,
		SubDimensions:   u.SubDimensions,
		Overall:         u.Overall,
		Level:           u.Level,
		Warnings:        append([]string{UnknownSubjectWarning}, u.Advice.Warnings...),
		Recommendations: cloneStrings(u.Advice.Recommendations),
		Known:           false,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transactions
// ─────────────────────────────────────────────────────────────────────────────

// assessTransaction picks the amount tier and raises the smart-contract and
// team dimensions to the protocol's own values. Both steps are monotonic,
// so overall never decreases as the amount grows.
func (s *Scorer) assessTransaction(subject Subject) Result {
	tier := s.tables.TierFor(subject.Amount)
	dims := tier.SubDimensions

	protocol, known := s.tables.Protocol(subject.ProtocolName)
	base := s.tables.Unknown.SubDimensions
	if known {
		base = protocol.SubDimensions
	}
	dims.SmartContract = max(dims.SmartContract, base.SmartContract)
	dims.Team = max(dims.Team, base.Team)

	overall := s.cfg.Weights.Overall(dims)
	level := s.cfg.Bands.LevelFor(overall)
	advice := s.tables.Advice.Lookup(SubjectTransaction, level)

	warnings := cloneStrings(advice.Warnings)
	if !known {
		warnings = append([]string{UnknownSubjectWarning}, warnings...)
	}

	return Result{
		SubjectType:     SubjectTransaction,
		SubjectKey:      subject.Key(),
		SubDimensions:   dims,
		Overall:         overall,
		Level:           level,
		Warnings:        warnings,
		Recommendations: cloneStrings(advice.Recommendations),
		Details: map[string]string{
			"amount_tier": tier.Name,
			"amount":      strconv.FormatFloat(subject.Amount, 'f', -1, 64),
			"protocol":    subject.ProtocolName,
		},
		Known: known,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Portfolios
// ─────────────────────────────────────────────────────────────────────────────

func (s *Scorer) assessPortfolio(subject Subject, inputs Inputs) Result {
	key := subject.Key()
	if len(inputs.Positions) == 0 {
		r := s.unknownResult(SubjectPortfolio, key)
		r.Portfolio = &PortfolioMetrics{}
		return r
	}

	var (
		total, largest, defi float64
		weighted             [5]float64
		allKnown             = true
	)
	for _, p := range inputs.Positions {
		total += p.ValueUSD
	}

	shares := make([]float64, 0, len(inputs.Positions))
	for _, p := range inputs.Positions {
		dims, known := s.positionDimensions(p)
		if !known {
			allKnown = false
		}
		share := p.ValueUSD / total
		shares = append(shares, share)
		for i, v := range dims.Values() {
			weighted[i] += float64(v) * share
		}
		if p.Kind == PositionProtocol {
			defi += p.ValueUSD
		}
		largest = math.Max(largest, share)
	}

	dims := SubDimensions{
		SmartContract: roundDimension(weighted[0]),
		Liquidity:     roundDimension(weighted[1]),
		Volatility:    roundDimension(weighted[2]),
		Regulatory:    roundDimension(weighted[3]),
		Team:          roundDimension(weighted[4]),
	}
	overall := s.cfg.Weights.Overall(dims)
	level := s.cfg.Bands.LevelFor(overall)

	hhi := 0.0
	for _, sh := range shares {
		hhi += sh * sh
	}
	metrics := &PortfolioMetrics{
		PositionCount:        len(inputs.Positions),
		TotalValueUSD:        scoring.RoundTo(total, 2),
		LargestPositionShare: scoring.RoundTo(largest*100, 2),
		DeFiExposurePercent:  scoring.RoundTo(defi/total*100, 2),
		DiversificationScore: scoring.ClampScore(scoring.RoundHalfUp(scoring.RoundTo(100*(1-hhi), 6))),
	}

	advice := s.tables.Advice.Lookup(SubjectPortfolio, level)
	warnings := cloneStrings(advice.Warnings)
	recommendations := cloneStrings(advice.Recommendations)
	if metrics.LargestPositionShare >= s.tables.ConcentrationShare && s.tables.ConcentrationShare > 0 {
		warnings = append(warnings, s.tables.ConcentrationAdvice.Warnings...)
		recommendations = append(recommendations, s.tables.ConcentrationAdvice.Recommendations...)
	}
	if !allKnown {
		warnings = append([]string{UnknownSubjectWarning}, warnings...)
	}

	return Result{
		SubjectType:     SubjectPortfolio,
		SubjectKey:      key,
		SubDimensions:   dims,
		Overall:         overall,
		Level:           level,
		Warnings:        warnings,
		Recommendations: recommendations,
		Details: map[string]string{
			"positions": strconv.Itoa(len(inputs.Positions)),
		},
		Known:     allKnown,
		Portfolio: metrics,
	}
}

func (s *Scorer) positionDimensions(p Position) (SubDimensions, bool) {
	var (
		entry ReferenceEntry
		ok    bool
	)
	switch p.Kind {
	case PositionProtocol:
		entry, ok = s.tables.Protocol(p.Ref)
	case PositionToken:
		entry, ok = s.tables.Token(p.Ref)
	}
	if !ok {
		return s.tables.Unknown.SubDimensions, false
	}
	return entry.SubDimensions, true
}

func roundDimension(v float64) int {
	return scoring.ClampScore(scoring.RoundHalfUp(scoring.RoundTo(v, 6)))
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// String implements fmt.Stringer for log output.
func (r Result) String() string {
	return fmt.Sprintf("%s/%s overall=%d level=%s", r.SubjectType, r.SubjectKey, r.Overall, r.Level)
}
