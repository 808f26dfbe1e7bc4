package reporting

import (
	"strings"
	"testing"

	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestInterpretScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"strongly supported high", 0.95, "Strongly supported (>=0.90)"},
		{"strongly supported boundary", 0.90, "Strongly supported (>=0.90)"},
		{"supported high", 0.89, "Supported (0.70-0.90)"},
		{"supported boundary", 0.70, "Supported (0.70-0.90)"},
		{"uncertain high", 0.69, "Uncertain (0.40-0.70)"},
		{"uncertain neutral", 0.50, "Uncertain (0.40-0.70)"},
		{"refuted", 0.30, "Refuted (0.10-0.40)"},
		{"strongly refuted", 0.05, "Strongly refuted (<0.10)"},
		{"strongly refuted zero", 0.0, "Strongly refuted (<0.10)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpretScore(tt.score)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretPassRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"all passed", 1.0, "All claims passed (100%)"},
		{"most passed", 0.85, "Most claims passed (85%)"},
		{"about half", 0.60, "About half the claims passed (60%)"},
		{"few passed", 0.30, "Few claims passed (30%)"},
		{"none passed", 0.0, "Few claims passed (0%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpretPassRate(tt.rate)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretFlaky(t *testing.T) {
	tests := []struct {
		name     string
		flaky    bool
		passRate float64
		contains string
	}{
		{"not flaky", false, 1.0, "consistent"},
		{"flaky", true, 0.6, "flaky"},
		{"flaky low rate", true, 0.3, "30% pass rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpretFlaky(tt.flaky, tt.passRate)
			assert.Contains(t, got, tt.contains)
		})
	}
}

func TestInterpretEvidence(t *testing.T) {
	assert.Contains(t, InterpretEvidence(0, 0), "No evidence")
	assert.Contains(t, InterpretEvidence(0.9, 3), "strong")
	assert.Contains(t, InterpretEvidence(0.6, 3), "moderate")
	assert.Contains(t, InterpretEvidence(0.2, 3), "weak")
}

func TestInterpretAgreement(t *testing.T) {
	assert.Contains(t, InterpretAgreement(0.95), "agree closely")
	assert.Contains(t, InterpretAgreement(0.7), "mostly agree")
	assert.Contains(t, InterpretAgreement(0.3), "disagree")
}

func TestFormatSummaryReport(t *testing.T) {
	outcome := &models.ValidationOutcome{
		Digest: models.OutcomeDigest{
			TotalClaims:    3,
			Supported:      2,
			Refuted:        1,
			Uncertain:      0,
			Errors:         0,
			PassRate:       0.67,
			AggregateScore: 0.75,
			DurationMs:     1500,
		},
		ClaimOutcomes: []models.ClaimOutcome{
			{
				DisplayName: "Claim A",
				Status:      models.StatusPassed,
				Verdict:     models.VerdictSupported,
				Expected:    models.VerdictSupported,
				Stats: &models.ClaimStats{
					AvgScore: 0.95,
					PassRate: 1.0,
					Flaky:    false,
				},
			},
			{
				DisplayName: "Claim B",
				Status:      models.StatusFailed,
				Verdict:     models.VerdictRefuted,
				Expected:    models.VerdictSupported,
				Stats: &models.ClaimStats{
					AvgScore: 0.40,
					PassRate: 0.5,
					Flaky:    true,
				},
			},
		},
	}

	report := FormatSummaryReport(outcome)

	assert.Contains(t, report, "=== Interpretation ===")
	assert.Contains(t, report, "Supported (0.70-0.90)")
	assert.Contains(t, report, "2 supported, 1 refuted, 0 uncertain, 0 errors out of 3 total")
	assert.Contains(t, report, "Claim A")
	assert.Contains(t, report, "Claim B")
	assert.Contains(t, report, "Strongly supported (>=0.90)")
	assert.Contains(t, report, "flaky")
	assert.Contains(t, report, "consistent")
}

func TestFormatSummaryReport_Empty(t *testing.T) {
	outcome := &models.ValidationOutcome{
		Digest: models.OutcomeDigest{},
	}
	report := FormatSummaryReport(outcome)
	assert.True(t, strings.Contains(report, "Interpretation"))
}
