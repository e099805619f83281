package risk

import (
	"fmt"
	"time"

	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

// UnknownSubjectWarning is attached to every result built from the default
// entry because the subject is missing from the reference data.
const UnknownSubjectWarning = "Insufficient information: not found in reference data, treated as high risk"

// Level is the risk classification.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// AllLevels lists levels in ascending order.
var AllLevels = []Level{LevelLow, LevelMedium, LevelHigh}

// IsValid checks if the level is known.
func (l Level) IsValid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// SubDimensions are the five risk components, each in [0,100].
type SubDimensions struct {
	SmartContract int `json:"smart_contract" yaml:"smart_contract"`
	Liquidity     int `json:"liquidity" yaml:"liquidity"`
	Volatility    int `json:"volatility" yaml:"volatility"`
	Regulatory    int `json:"regulatory" yaml:"regulatory"`
	Team          int `json:"team" yaml:"team"`
}

// Values returns the components in declaration order.
func (d SubDimensions) Values() [5]int {
	return [5]int{d.SmartContract, d.Liquidity, d.Volatility, d.Regulatory, d.Team}
}

// Validate checks that every component is within [0,100].
func (d SubDimensions) Validate() error {
	for _, v := range d.Values() {
		if v < 0 || v > 100 {
			return shared.NewConfigurationError("risk", "ValidateSubDimensions",
				fmt.Sprintf("sub-dimension %d out of range [0,100]", v))
		}
	}
	return nil
}

// AtLeast reports whether every component of d is >= the matching one in o.
func (d SubDimensions) AtLeast(o SubDimensions) bool {
	a, b := d.Values(), o.Values()
	for i := range a {
		if a[i] < b[i] {
			return false
		}
	}
	return true
}

// PortfolioMetrics describes the shape of a portfolio.
type PortfolioMetrics struct {
	PositionCount        int     `json:"position_count"`
	TotalValueUSD        float64 `json:"total_value_usd"`
	LargestPositionShare float64 `json:"largest_position_share"`
	DeFiExposurePercent  float64 `json:"defi_exposure_percent"`
	DiversificationScore int     `json:"diversification_score"`
}

// Result is an immutable assessment value.
type Result struct {
	SubjectType     SubjectType       `json:"subject_type"`
	SubjectKey      string            `json:"subject_key"`
	SubDimensions   SubDimensions     `json:"sub_dimensions"`
	Overall         int               `json:"overall"`
	Level           Level             `json:"level"`
	Warnings        []string          `json:"warnings"`
	Recommendations []string          `json:"recommendations"`
	Details         map[string]string `json:"details,omitempty"`
	Known           bool              `json:"known"`
	Portfolio       *PortfolioMetrics `json:"portfolio,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Weights combine sub-dimensions into the overall score.
type Weights struct {
	SmartContract float64 `json:"smart_contract" yaml:"smart_contract"`
	Liquidity     float64 `json:"liquidity" yaml:"liquidity"`
	Volatility    float64 `json:"volatility" yaml:"volatility"`
	Regulatory    float64 `json:"regulatory" yaml:"regulatory"`
	Team          float64 `json:"team" yaml:"team"`
}

// DefaultWeights weighs every dimension equally.
func DefaultWeights() Weights {
	return Weights{SmartContract: 0.2, Liquidity: 0.2, Volatility: 0.2, Regulatory: 0.2, Team: 0.2}
}

// Validate checks the weights sum to 1.
func (w Weights) Validate() error {
	return scoring.ValidateWeights("risk", "ValidateWeights",
		w.SmartContract, w.Liquidity, w.Volatility, w.Regulatory, w.Team)
}

// Overall returns round_half_up of the weighted average of d.
func (w Weights) Overall(d SubDimensions) int {
	sum := float64(d.SmartContract)*w.SmartContract +
		float64(d.Liquidity)*w.Liquidity +
		float64(d.Volatility)*w.Volatility +
		float64(d.Regulatory)*w.Regulatory +
		float64(d.Team)*w.Team
	return scoring.ClampScore(scoring.RoundHalfUp(scoring.RoundTo(sum, 6)))
}

// Bands are the lower bounds of the medium and high levels.
type Bands struct {
	MediumFrom int `json:"medium_from" yaml:"medium_from"`
	HighFrom   int `json:"high_from" yaml:"high_from"`
}

// DefaultBands returns 33 and 66.
func DefaultBands() Bands {
	return Bands{MediumFrom: 33, HighFrom: 66}
}

// Validate checks 0 < MediumFrom < HighFrom <= 100.
func (b Bands) Validate() error {
	if !(b.MediumFrom > 0 && b.MediumFrom < b.HighFrom && b.HighFrom <= 100) {
		return shared.NewConfigurationError("risk", "ValidateBands",
			fmt.Sprintf("risk bands must satisfy 0 < medium < high <= 100, got %d/%d", b.MediumFrom, b.HighFrom))
	}
	return nil
}

// LevelFor classifies an overall score.
func (b Bands) LevelFor(overall int) Level {
	switch {
	case overall < b.MediumFrom:
		return LevelLow
	case overall < b.HighFrom:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// DefaultCacheTTL is how long assessment results may be cached.
const DefaultCacheTTL = 300 * time.Second

// Config configures a Scorer.
type Config struct {
	Weights  Weights
	Bands    Bands
	CacheTTL time.Duration
}

// DefaultConfig returns the default risk configuration.
func DefaultConfig() Config {
	return Config{
		Weights:  DefaultWeights(),
		Bands:    DefaultBands(),
		CacheTTL: DefaultCacheTTL,
	}
}

// Validate checks weights, bands and TTL.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if c.CacheTTL < 0 {
		return shared.NewConfigurationError("risk", "ValidateConfig", "cache TTL cannot be negative")
	}
	return nil
}
