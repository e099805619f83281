package risk

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

const (
	usdc = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	weth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

var txAdvice = Advice{
	Warnings:        []string{"Verify all transaction parameters"},
	Recommendations: []string{"Simulate transaction first"},
}

func testTables() *ReferenceTables {
	return &ReferenceTables{
		Protocols: map[string]ReferenceEntry{
			"uniswap": {
				Key: "uniswap", Name: "Uniswap V3",
				SubDimensions: SubDimensions{15, 10, 30, 20, 10}, Overall: 25, Level: LevelLow,
				Advice: Advice{
					Warnings:        []string{"Impermanent loss risk when providing liquidity"},
					Recommendations: []string{"Start with small amounts"},
				},
				Details: map[string]string{"tvl": "$4.2B"},
			},
			"aave": {
				Key: "aave", Name: "Aave V3",
				SubDimensions: SubDimensions{20, 15, 25, 25, 15}, Overall: 30, Level: LevelLow,
			},
			"compound": {
				Key: "compound", Name: "Compound V3",
				SubDimensions: SubDimensions{25, 20, 30, 30, 20}, Overall: 35, Level: LevelMedium,
			},
		},
		Tokens: map[string]ReferenceEntry{
			usdc: {Key: usdc, Name: "USDC", SubDimensions: SubDimensions{20, 10, 10, 40, 15}, Overall: 20, Level: LevelLow},
			weth: {Key: weth, Name: "WETH", SubDimensions: SubDimensions{15, 10, 55, 20, 10}, Overall: 25, Level: LevelLow},
		},
		Unknown: DefaultEntry{
			SubDimensions: SubDimensions{70, 60, 70, 80, 70},
			Overall:       70,
			Level:         LevelHigh,
			Advice: Advice{
				Warnings:        []string{"Unknown protocol - exercise extreme caution"},
				Recommendations: []string{"Research thoroughly before using"},
			},
		},
		TransactionTiers: []TransactionTier{
			{Name: "low", AboveAmount: 0, SubDimensions: SubDimensions{20, 15, 30, 20, 15}},
			{Name: "medium", AboveAmount: 1000, SubDimensions: SubDimensions{25, 35, 50, 35, 20}},
			{Name: "high", AboveAmount: 10000, SubDimensions: SubDimensions{50, 80, 95, 70, 45}},
		},
		Advice: AdviceTable{
			SubjectProtocol: {
				LevelLow: {Warnings: []string{"Smart contract risk always present"}},
			},
			SubjectTransaction: {
				LevelLow:    txAdvice,
				LevelMedium: txAdvice,
				LevelHigh:   txAdvice,
			},
			SubjectPortfolio: {
				LevelLow: {Recommendations: []string{"Rebalance periodically"}},
			},
		},
		ConcentrationShare: 50,
		ConcentrationAdvice: Advice{
			Warnings:        []string{"High concentration in volatile assets"},
			Recommendations: []string{"Diversify across uncorrelated assets"},
		},
	}
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultConfig(), testTables())
	require.NoError(t, err)
	return s
}

func TestAssess_KnownProtocol(t *testing.T) {
	s := newTestScorer(t)

	r, err := s.Assess(ProtocolSubject("  Uniswap "), Inputs{})
	require.NoError(t, err)

	assert.Equal(t, SubjectProtocol, r.SubjectType)
	assert.Equal(t, "uniswap", r.SubjectKey)
	assert.Equal(t, 25, r.Overall)
	assert.Equal(t, LevelLow, r.Level)
	assert.True(t, r.Known)
	assert.Equal(t, []string{"Impermanent loss risk when providing liquidity"}, r.Warnings)
	assert.Equal(t, "Uniswap V3", r.Details["name"])
	assert.Equal(t, "$4.2B", r.Details["tvl"])
}

func TestAssess_EntryWithoutAdviceUsesTable(t *testing.T) {
	r, err := newTestScorer(t).Assess(ProtocolSubject("aave"), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Smart contract risk always present"}, r.Warnings)
	assert.Empty(t, r.Recommendations)
}

func TestAssess_UnknownProtocolIsHighRisk(t *testing.T) {
	r, err := newTestScorer(t).Assess(ProtocolSubject("rugpull-finance"), Inputs{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, r.Overall, 66)
	assert.Equal(t, LevelHigh, r.Level)
	assert.False(t, r.Known)
	require.NotEmpty(t, r.Warnings)
	assert.Equal(t, UnknownSubjectWarning, r.Warnings[0])
	assert.Contains(t, r.Warnings, "Unknown protocol - exercise extreme caution")
	assert.Nil(t, r.Details)
}

func TestAssess_TokenLookupIsCaseInsensitive(t *testing.T) {
	r, err := newTestScorer(t).Assess(TokenSubject("0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48"), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, usdc, r.SubjectKey)
	assert.Equal(t, 20, r.Overall)
	assert.True(t, r.Known)
}

func TestAssess_TransactionTiers(t *testing.T) {
	s := newTestScorer(t)

	small, err := s.Assess(TransactionSubject("uniswap", 500), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 20, small.Overall)
	assert.Equal(t, LevelLow, small.Level)
	assert.Equal(t, "low", small.Details["amount_tier"])

	large, err := s.Assess(TransactionSubject("uniswap", 15000), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 68, large.Overall)
	assert.Equal(t, LevelHigh, large.Level)
	assert.Greater(t, large.Overall, small.Overall)
	assert.Equal(t, txAdvice.Warnings, large.Warnings)
}

func TestAssess_TransactionBoundaryIsStrict(t *testing.T) {
	s := newTestScorer(t)

	at, err := s.Assess(TransactionSubject("aave", 1000), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, "low", at.Details["amount_tier"])

	above, err := s.Assess(TransactionSubject("aave", 1000.01), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, "medium", above.Details["amount_tier"])
}

func TestAssess_TransactionMonotonicInAmount(t *testing.T) {
	s := newTestScorer(t)
	for _, protocol := range []string{"uniswap", "compound", "unknown-dex"} {
		prev := -1
		for _, amount := range []float64{0, 1, 999, 1000, 1001, 5000, 10000, 10001, 1e6} {
			r, err := s.Assess(TransactionSubject(protocol, amount), Inputs{})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, r.Overall, prev, "%s at %v", protocol, amount)
			prev = r.Overall
		}
	}
}

func TestAssess_TransactionUnknownProtocol(t *testing.T) {
	r, err := newTestScorer(t).Assess(TransactionSubject("mystery", 500), Inputs{})
	require.NoError(t, err)

	// smart contract and team raised to the unknown default of 70
	assert.Equal(t, SubDimensions{70, 15, 30, 20, 70}, r.SubDimensions)
	assert.Equal(t, 41, r.Overall)
	assert.Equal(t, LevelMedium, r.Level)
	assert.False(t, r.Known)
	assert.Equal(t, UnknownSubjectWarning, r.Warnings[0])
}

func TestAssess_TransactionRejectsBadAmount(t *testing.T) {
	_, err := newTestScorer(t).Assess(TransactionSubject("aave", -1), Inputs{})
	assert.True(t, shared.IsValidation(err))
}

func TestAssess_Portfolio(t *testing.T) {
	inputs := Inputs{Positions: []Position{
		{Kind: PositionProtocol, Ref: "Aave", ValueUSD: 600},
		{Kind: PositionToken, Ref: usdc, ValueUSD: 400},
	}}

	r, err := newTestScorer(t).Assess(PortfolioSubject("0xWallet"), inputs)
	require.NoError(t, err)

	assert.Equal(t, "0xwallet", r.SubjectKey)
	assert.Equal(t, SubDimensions{20, 13, 19, 31, 15}, r.SubDimensions)
	assert.Equal(t, 20, r.Overall)
	assert.Equal(t, LevelLow, r.Level)
	assert.True(t, r.Known)

	require.NotNil(t, r.Portfolio)
	assert.Equal(t, 2, r.Portfolio.PositionCount)
	assert.Equal(t, 1000.0, r.Portfolio.TotalValueUSD)
	assert.Equal(t, 60.0, r.Portfolio.LargestPositionShare)
	assert.Equal(t, 60.0, r.Portfolio.DeFiExposurePercent)
	assert.Equal(t, 48, r.Portfolio.DiversificationScore)

	assert.Contains(t, r.Warnings, "High concentration in volatile assets")
	assert.Equal(t, []string{"Rebalance periodically", "Diversify across uncorrelated assets"}, r.Recommendations)
}

func TestAssess_PortfolioWithUnknownPosition(t *testing.T) {
	inputs := Inputs{Positions: []Position{{Kind: PositionToken, Ref: "0xdead", ValueUSD: 100}}}

	r, err := newTestScorer(t).Assess(PortfolioSubject("0xwallet"), inputs)
	require.NoError(t, err)
	assert.Equal(t, 70, r.Overall)
	assert.Equal(t, LevelHigh, r.Level)
	assert.False(t, r.Known)
	assert.Equal(t, UnknownSubjectWarning, r.Warnings[0])
	assert.Equal(t, 0, r.Portfolio.DiversificationScore)
}

func TestAssess_EmptyPortfolio(t *testing.T) {
	r, err := newTestScorer(t).Assess(PortfolioSubject("0xwallet"), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, r.Level)
	assert.False(t, r.Known)
	require.NotNil(t, r.Portfolio)
	assert.Zero(t, r.Portfolio.PositionCount)
}

func TestAssess_InvalidInput(t *testing.T) {
	s := newTestScorer(t)

	_, err := s.Assess(Subject{Type: "nft"}, Inputs{})
	assert.ErrorIs(t, err, shared.ErrUnknownSubjectType)

	_, err = s.Assess(ProtocolSubject("  "), Inputs{})
	assert.True(t, shared.IsValidation(err))

	_, err = s.Assess(PortfolioSubject("0xw"), Inputs{Positions: []Position{{Kind: PositionToken, Ref: weth, ValueUSD: 0}}})
	assert.True(t, shared.IsValidation(err))
}

func TestAssess_PortfolioTotalOverflow(t *testing.T) {
	s := newTestScorer(t)
	huge := Inputs{Positions: []Position{
		{Kind: PositionProtocol, Ref: "ghost-a", ValueUSD: 1e308},
		{Kind: PositionProtocol, Ref: "ghost-b", ValueUSD: 1e308},
	}}

	_, err := s.Assess(PortfolioSubject("0xw"), huge)
	assert.True(t, shared.IsValidation(err))

	single := Inputs{Positions: []Position{{Kind: PositionProtocol, Ref: "ghost-a", ValueUSD: 1e308}}}
	r, err := s.Assess(PortfolioSubject("0xw"), single)
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, r.Level)
	assert.False(t, r.Known)

	_, err = json.Marshal(r)
	require.NoError(t, err)
}

func TestAssess_Deterministic(t *testing.T) {
	s := newTestScorer(t)
	a, err := s.Assess(TransactionSubject("compound", 2500), Inputs{})
	require.NoError(t, err)
	b, err := s.Assess(TransactionSubject("COMPOUND", 2500), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResult_JSONRoundTrip(t *testing.T) {
	s := newTestScorer(t)
	subjects := []struct {
		subject Subject
		inputs  Inputs
	}{
		{ProtocolSubject("uniswap"), Inputs{}},
		{ProtocolSubject("nope"), Inputs{}},
		{TransactionSubject("aave", 12000), Inputs{}},
		{PortfolioSubject("0xw"), Inputs{Positions: []Position{{Kind: PositionToken, Ref: weth, ValueUSD: 10}}}},
	}
	for _, tc := range subjects {
		r, err := s.Assess(tc.subject, tc.inputs)
		require.NoError(t, err)

		data, err := json.Marshal(r)
		require.NoError(t, err)
		var back Result
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, r, back, string(tc.subject.Type))
	}
}

func TestReferenceTables_Validate(t *testing.T) {
	bands := DefaultBands()
	require.NoError(t, testTables().Validate(bands))

	wrongLevel := testTables()
	e := wrongLevel.Protocols["compound"]
	e.Level = LevelLow
	wrongLevel.Protocols["compound"] = e
	assert.True(t, shared.IsConfiguration(wrongLevel.Validate(bands)))

	softDefault := testTables()
	softDefault.Unknown = DefaultEntry{SubDimensions: SubDimensions{10, 10, 10, 10, 10}, Overall: 10, Level: LevelLow}
	assert.True(t, shared.IsConfiguration(softDefault.Validate(bands)))

	decreasing := testTables()
	decreasing.TransactionTiers[2].SubDimensions.Liquidity = 10
	assert.True(t, shared.IsConfiguration(decreasing.Validate(bands)))

	unordered := testTables()
	unordered.TransactionTiers[2].AboveAmount = 500
	assert.True(t, shared.IsConfiguration(unordered.Validate(bands)))

	_, err := NewScorer(DefaultConfig(), nil)
	assert.True(t, shared.IsConfiguration(err))
}

func TestNormalizeTable(t *testing.T) {
	m, err := NormalizeTable([]ReferenceEntry{{Key: "Aave", Level: "LOW"}})
	require.NoError(t, err)
	assert.Equal(t, LevelLow, m["aave"].Level)

	_, err = NormalizeTable([]ReferenceEntry{{Key: "aave"}, {Key: "AAVE"}})
	assert.True(t, shared.IsConfiguration(err))
}

func TestBands_LevelFor(t *testing.T) {
	b := DefaultBands()
	assert.Equal(t, LevelLow, b.LevelFor(32))
	assert.Equal(t, LevelMedium, b.LevelFor(33))
	assert.Equal(t, LevelMedium, b.LevelFor(65))
	assert.Equal(t, LevelHigh, b.LevelFor(66))
}

func TestCacheKey(t *testing.T) {
	a, err := NewCacheKey(ProtocolSubject("Aave"), Inputs{}, "rev1")
	require.NoError(t, err)
	b, err := NewCacheKey(ProtocolSubject(" aave"), Inputs{}, "rev1")
	require.NoError(t, err)
	c, err := NewCacheKey(ProtocolSubject("aave"), Inputs{}, "rev2")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.InputsHash, c.InputsHash)
	assert.Equal(t, "risk:v1:protocol:aave:"+a.InputsHash, a.String())

	p1, _ := NewCacheKey(PortfolioSubject("0xw"), Inputs{Positions: []Position{{Kind: PositionToken, Ref: weth, ValueUSD: 1}}}, "rev1")
	p2, _ := NewCacheKey(PortfolioSubject("0xw"), Inputs{Positions: []Position{{Kind: PositionToken, Ref: weth, ValueUSD: 2}}}, "rev1")
	assert.NotEqual(t, p1, p2)
}

func TestCachedResult_Encoding(t *testing.T) {
	r, err := newTestScorer(t).Assess(ProtocolSubject("uniswap"), Inputs{})
	require.NoError(t, err)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := EncodeCachedResult(r, at)
	require.NoError(t, err)

	back, cachedAt, err := DecodeCachedResult(data)
	require.NoError(t, err)
	assert.Equal(t, r, back)
	assert.Equal(t, at, cachedAt)

	_, _, err = DecodeCachedResult([]byte(`{"kind":"risk_assessment","version":2,"result":{}}`))
	assert.True(t, errors.Is(err, ErrCacheMiss))

	_, _, err = DecodeCachedResult([]byte(`{"kind":"learner","version":1}`))
	assert.True(t, errors.Is(err, ErrCacheMiss))

	_, _, err = DecodeCachedResult([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrCacheMiss))
}
