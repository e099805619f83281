package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/domain/shared"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("CATALOG_PATH", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogValidate(t *testing.T) {
	out, err := execute(t, "", "catalog", "validate")
	require.NoError(t, err)

	assert.Contains(t, out, "quizzes")
	assert.Contains(t, out, "catalog OK")
}

func TestCatalogValidate_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quizzes: [\n"), 0o600))

	_, err := execute(t, "", "--catalog", path, "catalog", "validate")
	assert.Error(t, err)
}

func TestGrade(t *testing.T) {
	out, err := execute(t, "", "grade", "defi-basics", "--answers", "1,1,1,2,0")
	require.NoError(t, err)

	var result quiz.AttemptResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "defi-basics", result.QuizID)
	assert.Equal(t, 80, result.ScorePercent)
	assert.True(t, result.Passed)
	assert.Len(t, result.Feedback, 5)
	assert.False(t, result.Feedback[4].IsCorrect)
}

func TestGrade_Errors(t *testing.T) {
	_, err := execute(t, "", "grade", "liquidity-pools", "--answers", "1")
	assert.True(t, shared.IsNotFound(err))

	_, err = execute(t, "", "grade", "defi-basics", "--answers", "1,1")
	assert.True(t, shared.IsInvalidSubmission(err))

	_, err = execute(t, "", "grade", "defi-basics")
	assert.Error(t, err)
}

func TestAssessProtocol(t *testing.T) {
	out, err := execute(t, "", "assess", "protocol", "Uniswap")
	require.NoError(t, err)

	var result risk.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, risk.SubjectProtocol, result.SubjectType)
	assert.Equal(t, "uniswap", result.SubjectKey)
	assert.Equal(t, 25, result.Overall)
	assert.Equal(t, risk.LevelLow, result.Level)
	assert.True(t, result.Known)
}

func TestAssessProtocol_Unknown(t *testing.T) {
	out, err := execute(t, "", "assess", "protocol", "nonexistent-dex")
	require.NoError(t, err)

	var result risk.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Known)
	assert.Equal(t, risk.LevelHigh, result.Level)
	assert.Contains(t, result.Warnings, risk.UnknownSubjectWarning)
}

func TestAssessPortfolio(t *testing.T) {
	out, err := execute(t, "", "assess", "portfolio", "0xWallet",
		"--position", "protocol:uniswap=1000",
		"--position", "token:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48=500",
	)
	require.NoError(t, err)

	var result risk.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, risk.SubjectPortfolio, result.SubjectType)
	require.NotNil(t, result.Portfolio)
}

func TestAssessPortfolio_BadPosition(t *testing.T) {
	_, err := execute(t, "", "assess", "portfolio", "0xWallet", "--position", "uniswap")
	assert.True(t, shared.IsValidation(err))
}

func TestAssessBatch(t *testing.T) {
	in := `[
		{"subject": {"type": "protocol", "protocol_name": "uniswap"}},
		{"subject": {"type": "transaction", "protocol_name": "uniswap", "amount": 500}},
		{"subject": {"type": "token"}}
	]`
	out, err := execute(t, in, "assess", "batch")
	require.NoError(t, err)

	var outcomes []batchOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcomes))
	require.Len(t, outcomes, 3)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, 25, outcomes[0].Result.Overall)
	require.NotNil(t, outcomes[1].Result)
	assert.Equal(t, risk.SubjectTransaction, outcomes[1].Result.SubjectType)
	assert.Nil(t, outcomes[2].Result)
	assert.NotEmpty(t, outcomes[2].Error)
}

func TestAssessBatch_InvalidJSON(t *testing.T) {
	_, err := execute(t, "{", "assess", "batch")
	assert.True(t, shared.IsValidation(err))
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	_, err := execute(t, "", "migrate", "status")
	assert.True(t, shared.IsConfiguration(err))
}

func TestCachePurge_RedisDisabled(t *testing.T) {
	t.Setenv("REDIS_DISABLED", "true")

	_, err := execute(t, "", "cache", "purge")
	assert.True(t, shared.IsConfiguration(err))
}

func TestCachePurge_Unreachable(t *testing.T) {
	t.Setenv("REDIS_DISABLED", "false")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "127.0.0.1")
	t.Setenv("REDIS_PORT", "1")
	t.Setenv("REDIS_DIAL_TIMEOUT", "200ms")

	out, err := execute(t, "", "cache", "purge")
	assert.Error(t, err)
	assert.NotContains(t, out, "purged")
}

func TestParsePositions(t *testing.T) {
	inputs, err := parsePositions([]string{"Protocol:aave=12.5"})
	require.NoError(t, err)
	require.Len(t, inputs.Positions, 1)
	assert.Equal(t, risk.PositionProtocol, inputs.Positions[0].Kind)
	assert.Equal(t, "aave", inputs.Positions[0].Ref)
	assert.Equal(t, 12.5, inputs.Positions[0].ValueUSD)

	for _, bad := range []string{"aave=1", "protocol:aave", "protocol:=1", "protocol:aave=x"} {
		_, err := parsePositions([]string{bad})
		assert.Error(t, err, bad)
	}
}
