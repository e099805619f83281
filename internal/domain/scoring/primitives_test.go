package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

func TestClampPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{250, 100},
		{math.NaN(), 0},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampPercent(tt.in), "ClampPercent(%v)", tt.in)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(0, 20))
	assert.Equal(t, 0.5, Ratio(10, 20))
	assert.Equal(t, 1.0, Ratio(20, 20))
	assert.Equal(t, 1.0, Ratio(35, 20), "ratio is capped at 1")
	assert.Equal(t, 0.0, Ratio(5, 0))
	assert.Equal(t, 0.0, Ratio(-1, 10))
}

func TestRoundPercent(t *testing.T) {
	tests := []struct {
		num, den, want int
	}{
		{0, 5, 0},
		{3, 5, 60},
		{5, 5, 100},
		{2, 3, 67},
		{1, 3, 33},
		{1, 2, 50},
		{1, 8, 13}, // 12.5 rounds up
		{3, 8, 38}, // 37.5 rounds up
		{7, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundPercent(tt.num, tt.den), "RoundPercent(%d,%d)", tt.num, tt.den)
	}
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 33, RoundHalfUp(32.5))
	assert.Equal(t, 32, RoundHalfUp(32.49))
	assert.Equal(t, 68, RoundHalfUp(67.5))
	assert.Equal(t, 0, RoundHalfUp(math.NaN()))
	assert.Equal(t, -3, RoundHalfUp(-2.5))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 0.3, RoundTo(0.1+0.2, 2))
	assert.Equal(t, 2.35, RoundTo(2.345, 2))
	assert.Equal(t, 1e308, RoundTo(1e308, 2))
	assert.False(t, math.IsInf(RoundTo(math.MaxFloat64, 6), 0))
	assert.True(t, math.IsNaN(RoundTo(math.NaN(), 2)))
}

func TestWeightedProgress(t *testing.T) {
	calc := MustNewCalculator(DefaultConfig())

	assert.Equal(t, 0.0, calc.WeightedProgress(0, 0, 0))
	assert.Equal(t, 50.0, calc.WeightedProgress(1, 0, 0))
	assert.Equal(t, 80.0, calc.WeightedProgress(1, 1, 0))
	assert.Equal(t, 100.0, calc.WeightedProgress(1, 1, 1))
	assert.Equal(t, 100.0, calc.WeightedProgress(3, 2, 5), "ratios above 1 are clamped")
	assert.Equal(t, 0.0, calc.WeightedProgress(-1, math.NaN(), 0))
}

func TestWeightedProgress_KeepsSubPercentPrecision(t *testing.T) {
	calc := MustNewCalculator(DefaultConfig())

	p := calc.WeightedProgress(0.3999, 0, 0)
	assert.InDelta(t, 19.995, p, 1e-9)
	assert.Equal(t, TierBeginner, calc.TierFromPercent(p))

	p = calc.WeightedProgress(0.4, 0, 0)
	assert.Equal(t, 20.0, p)
	assert.Equal(t, TierIntermediate, calc.TierFromPercent(p))
}

func TestWeightedProgress_Monotonic(t *testing.T) {
	calc := MustNewCalculator(DefaultConfig())

	prev := -1.0
	for lessons := 0; lessons <= 25; lessons++ {
		p := calc.WeightedProgress(Ratio(lessons, 20), Ratio(3, 15), Ratio(1, 10))
		assert.GreaterOrEqual(t, p, prev)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
		prev = p
	}
}

func TestTierFromPercent(t *testing.T) {
	calc := MustNewCalculator(DefaultConfig())

	tests := []struct {
		p    float64
		want Tier
	}{
		{0, TierBeginner},
		{19.99, TierBeginner},
		{19.999, TierBeginner},
		{20, TierIntermediate},
		{49.99, TierIntermediate},
		{49.999, TierIntermediate},
		{50, TierAdvanced},
		{79.99, TierAdvanced},
		{79.999, TierAdvanced},
		{80, TierExpert},
		{100, TierExpert},
		{math.NaN(), TierBeginner},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calc.TierFromPercent(tt.p), "TierFromPercent(%v)", tt.p)
	}
}

func TestTierFromPercent_CustomThresholds(t *testing.T) {
	calc, err := NewCalculator(Config{
		Weights:    DefaultWeights(),
		Thresholds: Thresholds{Intermediate: 10, Advanced: 40, Expert: 90},
	})
	require.NoError(t, err)

	assert.Equal(t, TierIntermediate, calc.TierFromPercent(10))
	assert.Equal(t, TierAdvanced, calc.TierFromPercent(89.9))
	assert.Equal(t, TierExpert, calc.TierFromPercent(90))
}

func TestNewCalculator_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"weights sum below one", Config{Weights: Weights{0.5, 0.3, 0.1}, Thresholds: DefaultThresholds()}},
		{"weights sum above one", Config{Weights: Weights{0.6, 0.3, 0.2}, Thresholds: DefaultThresholds()}},
		{"negative weight", Config{Weights: Weights{1.2, -0.2, 0}, Thresholds: DefaultThresholds()}},
		{"unordered thresholds", Config{Weights: DefaultWeights(), Thresholds: Thresholds{50, 20, 80}}},
		{"threshold above 100", Config{Weights: DefaultWeights(), Thresholds: Thresholds{20, 50, 120}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalculator(tt.cfg)
			require.Error(t, err)
			assert.True(t, shared.IsConfiguration(err))
		})
	}
}

func TestTier_Next(t *testing.T) {
	next, ok := TierBeginner.Next()
	assert.True(t, ok)
	assert.Equal(t, TierIntermediate, next)

	_, ok = TierExpert.Next()
	assert.False(t, ok)
}
