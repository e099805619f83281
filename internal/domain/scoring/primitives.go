// Package scoring holds the numeric building blocks shared by the progress,
// quiz and risk engines: percent clamping, ratios, weighted progress,
// round-half-up and tier classification.
//
// Everything here is pure and safe for concurrent use once constructed.
package scoring

import (
	"fmt"
	"math"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

// WeightTolerance is the allowed deviation of a weight sum from 1.0.
const WeightTolerance = 1e-9

// ══════════════════════════════════════════════════════════════════════════════
// TIERS
// ══════════════════════════════════════════════════════════════════════════════

// Tier is a learner's discrete level.
type Tier string

// Learner tiers, in ascending order.
const (
	TierBeginner     Tier = "Beginner"
	TierIntermediate Tier = "Intermediate"
	TierAdvanced     Tier = "Advanced"
	TierExpert       Tier = "Expert"
)

// AllTiers lists tiers in ascending order.
var AllTiers = []Tier{TierBeginner, TierIntermediate, TierAdvanced, TierExpert}

// IsValid checks if the tier is one of the known values.
func (t Tier) IsValid() bool {
	switch t {
	case TierBeginner, TierIntermediate, TierAdvanced, TierExpert:
		return true
	}
	return false
}

// Rank returns the tier's position (Beginner = 0).
func (t Tier) Rank() int {
	for i, tier := range AllTiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Next returns the tier above t and false when t is already the top tier.
func (t Tier) Next() (Tier, bool) {
	r := t.Rank()
	if r < 0 || r >= len(AllTiers)-1 {
		return t, false
	}
	return AllTiers[r+1], true
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Weights are the contributions of each activity kind to overall progress.
type Weights struct {
	Lessons     float64 `json:"lessons" yaml:"lessons"`
	Quizzes     float64 `json:"quizzes" yaml:"quizzes"`
	Simulations float64 `json:"simulations" yaml:"simulations"`
}

// DefaultWeights returns 0.5 / 0.3 / 0.2.
func DefaultWeights() Weights {
	return Weights{Lessons: 0.5, Quizzes: 0.3, Simulations: 0.2}
}

// Validate checks that every weight is in [0,1] and that they sum to 1.
func (w Weights) Validate() error {
	return ValidateWeights("scoring", "ValidateWeights", w.Lessons, w.Quizzes, w.Simulations)
}

// Thresholds are the inclusive lower bounds of the upper three tiers.
type Thresholds struct {
	Intermediate float64 `json:"intermediate" yaml:"intermediate"`
	Advanced     float64 `json:"advanced" yaml:"advanced"`
	Expert       float64 `json:"expert" yaml:"expert"`
}

// DefaultThresholds returns 20 / 50 / 80.
func DefaultThresholds() Thresholds {
	return Thresholds{Intermediate: 20, Advanced: 50, Expert: 80}
}

// Validate checks 0 < Intermediate < Advanced < Expert <= 100.
func (t Thresholds) Validate() error {
	if !(t.Intermediate > 0 && t.Intermediate < t.Advanced && t.Advanced < t.Expert && t.Expert <= 100) {
		return shared.NewConfigurationError("scoring", "ValidateThresholds",
			fmt.Sprintf("tier thresholds must satisfy 0 < intermediate < advanced < expert <= 100, got %v/%v/%v",
				t.Intermediate, t.Advanced, t.Expert))
	}
	return nil
}

// For returns the minimum percent of the given tier.
func (t Thresholds) For(tier Tier) float64 {
	switch tier {
	case TierIntermediate:
		return t.Intermediate
	case TierAdvanced:
		return t.Advanced
	case TierExpert:
		return t.Expert
	default:
		return 0
	}
}

// Config configures a Calculator.
type Config struct {
	Weights    Weights
	Thresholds Thresholds
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Calculator computes weighted progress and tiers for a validated Config.
type Calculator struct {
	cfg Config
}

// NewCalculator validates cfg and returns a Calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// MustNewCalculator is NewCalculator for static configuration. It panics on error.
func MustNewCalculator(cfg Config) *Calculator {
	c, err := NewCalculator(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// WeightedProgress combines three completion ratios into a percent in [0,100].
// Ratios outside [0,1] are clamped. Only float noise below the sixth decimal
// is rounded away; 19.995 stays below the Intermediate bound.
func (c *Calculator) WeightedProgress(lessonRatio, quizRatio, simRatio float64) float64 {
	w := c.cfg.Weights
	sum := clampUnit(lessonRatio)*w.Lessons +
		clampUnit(quizRatio)*w.Quizzes +
		clampUnit(simRatio)*w.Simulations
	return ClampPercent(RoundTo(sum*100, 6))
}

// TierFromPercent maps a percent to a tier. Lower bounds are inclusive.
func (c *Calculator) TierFromPercent(p float64) Tier {
	p = ClampPercent(p)
	t := c.cfg.Thresholds
	switch {
	case p >= t.Expert:
		return TierExpert
	case p >= t.Advanced:
		return TierAdvanced
	case p >= t.Intermediate:
		return TierIntermediate
	default:
		return TierBeginner
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PURE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// ClampPercent clamps x into [0,100]. NaN becomes 0.
func ClampPercent(x float64) float64 {
	switch {
	case math.IsNaN(x), x <= 0:
		return 0
	case x >= 100:
		return 100
	default:
		return x
	}
}

// ClampScore clamps an integer score into [0,100].
func ClampScore(x int) int {
	switch {
	case x < 0:
		return 0
	case x > 100:
		return 100
	default:
		return x
	}
}

// Ratio returns count/total capped at 1. A non-positive total yields 0.
func Ratio(count, total int) float64 {
	if total <= 0 || count <= 0 {
		return 0
	}
	if count >= total {
		return 1
	}
	return float64(count) / float64(total)
}

// RoundPercent returns round_half_up(100*numerator/denominator) using
// integer arithmetic. A non-positive denominator yields 0.
func RoundPercent(numerator, denominator int) int {
	if denominator <= 0 || numerator <= 0 {
		return 0
	}
	return (200*numerator + denominator) / (2 * denominator)
}

// RoundHalfUp rounds x to the nearest integer, halves away from zero.
func RoundHalfUp(x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	if x < 0 {
		return -int(math.Floor(-x + 0.5))
	}
	return int(math.Floor(x + 0.5))
}

// RoundTo rounds x half-up to the given number of decimals.
func RoundTo(x float64, decimals int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	// Past 2^52 a float64 has no fractional digits left to round.
	if math.Abs(x) >= 1<<52 {
		return x
	}
	p := math.Pow10(decimals)
	// Nudge by a few ulps so that 0.1+0.2 style noise rounds as written.
	return math.Floor(x*p+0.5+1e-9) / p
}

// ValidateWeights checks that every weight is finite, in [0,1], and that the
// weights sum to 1 within WeightTolerance.
func ValidateWeights(domain, op string, weights ...float64) error {
	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
			return shared.NewConfigurationError(domain, op,
				fmt.Sprintf("weight %d must be within [0,1], got %v", i, w))
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return shared.NewConfigurationError(domain, op,
			fmt.Sprintf("weights must sum to 1.0, got %v", sum))
	}
	return nil
}

func clampUnit(x float64) float64 {
	switch {
	case math.IsNaN(x), x <= 0:
		return 0
	case x >= 1:
		return 1
	default:
		return x
	}
}
