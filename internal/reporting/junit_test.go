package reporting

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutcome() *models.ValidationOutcome {
	return &models.ValidationOutcome{
		RunID:     "run-1",
		SpecName:  "release-claims",
		Timestamp: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
		Setup: models.OutcomeSetup{
			TrialsPerClaim:  1,
			Providers:       []string{"openai", "anthropic"},
			ConsensusMethod: "weighted_mean",
			Quorum:          2,
			TimeoutSec:      60,
		},
		Digest: models.OutcomeDigest{
			TotalClaims:    3,
			Supported:      2,
			Refuted:        1,
			PassRate:       0.67,
			AggregateScore: 0.75,
			EvidenceScore:  0.9,
			DurationMs:     3500,
		},
		ClaimOutcomes: []models.ClaimOutcome{
			{
				ClaimID:     "latency-p99",
				DisplayName: "p99 latency",
				Status:      models.StatusPassed,
				Verdict:     models.VerdictSupported,
				Expected:    models.VerdictSupported,
				Stats:       &models.ClaimStats{AvgScore: 0.95, AvgDurationMs: 1000},
				Trials: []models.TrialResult{
					{
						TrialNumber: 1, Status: models.StatusPassed, DurationMs: 1000,
						Verdicts: map[string]models.ProviderVerdict{
							"openai":    {Provider: "openai", Verdict: models.VerdictSupported, Confidence: 0.9},
							"anthropic": {Provider: "anthropic", Verdict: models.VerdictSupported, Confidence: 0.9},
						},
					},
				},
			},
			{
				ClaimID:     "uptime-sla",
				DisplayName: "uptime SLA",
				Category:    "reliability",
				Status:      models.StatusFailed,
				Verdict:     models.VerdictRefuted,
				Expected:    models.VerdictSupported,
				Stats:       &models.ClaimStats{AvgScore: 0.20, AvgDurationMs: 1500},
				Trials: []models.TrialResult{
					{
						TrialNumber: 1, Status: models.StatusFailed, DurationMs: 1500,
						Verdicts: map[string]models.ProviderVerdict{
							"openai":    {Provider: "openai", Verdict: models.VerdictRefuted, Confidence: 0.8, Rationale: "metrics show 98.2% uptime"},
							"anthropic": {Provider: "anthropic", Verdict: models.VerdictRefuted, Confidence: 0.7},
						},
					},
				},
			},
			{
				ClaimID:     "throughput",
				DisplayName: "sustained throughput",
				Status:      models.StatusPassed,
				Verdict:     models.VerdictSupported,
				Expected:    models.VerdictSupported,
				Stats:       &models.ClaimStats{AvgScore: 0.90, AvgDurationMs: 1000},
			},
		},
	}
}

func TestConvertToJUnit_Structure(t *testing.T) {
	outcome := newTestOutcome()
	suites := ConvertToJUnit(outcome)

	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 0, suites.Errors)
	assert.InDelta(t, 3.5, suites.Time, 0.01)

	require.Len(t, suites.TestSuites, 1)
	suite := suites.TestSuites[0]

	assert.Equal(t, "release-claims", suite.Name)
	assert.Equal(t, 3, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, "2026-06-15T12:00:00Z", suite.Timestamp)
	require.Len(t, suite.TestCases, 3)
}

func TestConvertToJUnit_PassedTestCase(t *testing.T) {
	outcome := newTestOutcome()
	suites := ConvertToJUnit(outcome)
	tc := suites.TestSuites[0].TestCases[0]

	assert.Equal(t, "p99 latency", tc.Name)
	assert.Equal(t, "release-claims", tc.Classname)
	assert.InDelta(t, 1.0, tc.Time, 0.01)
	assert.Nil(t, tc.Failure)
	assert.Nil(t, tc.Error)
}

func TestConvertToJUnit_FailedTestCase(t *testing.T) {
	outcome := newTestOutcome()
	suites := ConvertToJUnit(outcome)
	tc := suites.TestSuites[0].TestCases[1]

	assert.Equal(t, "uptime SLA", tc.Name)
	assert.Equal(t, "release-claims.reliability", tc.Classname)
	require.NotNil(t, tc.Failure)
	assert.Equal(t, "VerdictMismatch", tc.Failure.Type)
	assert.Contains(t, tc.Failure.Message, "expected supported, consensus refuted")
	assert.Contains(t, tc.Failure.Message, "score=0.20")
	assert.Contains(t, tc.Failure.Body, "[REFUTED] openai")
	assert.Contains(t, tc.Failure.Body, "metrics show 98.2% uptime")
}

func TestConvertToJUnit_ErrorTestCase(t *testing.T) {
	outcome := &models.ValidationOutcome{
		SpecName:  "err-spec",
		Timestamp: time.Now(),
		Digest:    models.OutcomeDigest{TotalClaims: 1, Errors: 1, DurationMs: 500},
		ClaimOutcomes: []models.ClaimOutcome{
			{
				DisplayName: "broken-claim",
				Status:      models.StatusError,
				Trials: []models.TrialResult{
					{Status: models.StatusError, ErrorMsg: "timeout after 60s"},
				},
			},
		},
	}

	suites := ConvertToJUnit(outcome)
	tc := suites.TestSuites[0].TestCases[0]

	assert.Nil(t, tc.Failure)
	require.NotNil(t, tc.Error)
	assert.Equal(t, "ValidationError", tc.Error.Type)
	assert.Equal(t, "timeout after 60s", tc.Error.Message)
}

func TestConvertToJUnit_Properties(t *testing.T) {
	outcome := newTestOutcome()
	suites := ConvertToJUnit(outcome)
	props := suites.TestSuites[0].Properties

	propMap := make(map[string]string)
	for _, p := range props {
		propMap[p.Name] = p.Value
	}

	assert.Equal(t, "run-1", propMap["run_id"])
	assert.Equal(t, "openai,anthropic", propMap["providers"])
	assert.Equal(t, "weighted_mean", propMap["consensus_method"])
	assert.Contains(t, propMap["aggregate_score"], "0.75")
	assert.Contains(t, propMap["evidence_score"], "0.9")
}

func TestConvertToJUnit_EmptyOutcome(t *testing.T) {
	outcome := &models.ValidationOutcome{
		SpecName:  "empty",
		Timestamp: time.Now(),
		Digest:    models.OutcomeDigest{},
	}

	suites := ConvertToJUnit(outcome)
	assert.Equal(t, 0, suites.Tests)
	require.Len(t, suites.TestSuites, 1)
	assert.Empty(t, suites.TestSuites[0].TestCases)
}

func TestWriteJUnitXML_ValidXML(t *testing.T) {
	outcome := newTestOutcome()
	dir := t.TempDir()
	path := filepath.Join(dir, "results.xml")

	err := WriteJUnitXML(outcome, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.True(t, strings.HasPrefix(content, "<?xml"))

	// Verify it parses as valid XML
	var parsed JUnitTestSuites
	err = xml.Unmarshal(data, &parsed)
	require.NoError(t, err)
	assert.Equal(t, 3, parsed.Tests)
	assert.Equal(t, 1, parsed.Failures)
	require.Len(t, parsed.TestSuites, 1)
	assert.Len(t, parsed.TestSuites[0].TestCases, 3)
}

func TestConvertToJUnit_DurationFromTrials(t *testing.T) {
	// Duration is computed from trials when stats are nil
	outcome := &models.ValidationOutcome{
		SpecName:  "dur-spec",
		Timestamp: time.Now(),
		Digest:    models.OutcomeDigest{TotalClaims: 1, Supported: 1, DurationMs: 2000},
		ClaimOutcomes: []models.ClaimOutcome{
			{
				DisplayName: "claim-a",
				Status:      models.StatusPassed,
				Trials: []models.TrialResult{
					{DurationMs: 1000},
					{DurationMs: 3000},
				},
			},
		},
	}

	suites := ConvertToJUnit(outcome)
	tc := suites.TestSuites[0].TestCases[0]
	// Average of 1000ms and 3000ms = 2000ms = 2.0s
	assert.InDelta(t, 2.0, tc.Time, 0.01)
}
