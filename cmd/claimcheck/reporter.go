package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	// Use the built-in formatting but ensure we control it
	return d.String()
}

// sortedVerdicts returns a trial's provider verdicts in provider-name order.
func sortedVerdicts(verdicts map[string]models.ProviderVerdict) []models.ProviderVerdict {
	names := make([]string, 0, len(verdicts))
	for name := range verdicts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.ProviderVerdict, 0, len(names))
	for _, name := range names {
		out = append(out, verdicts[name])
	}
	return out
}

// FormatGitHubComment formats a ValidationOutcome as a markdown comment for GitHub PRs
func FormatGitHubComment(outcome *models.ValidationOutcome) string {
	var b strings.Builder

	digest := outcome.Digest
	duration := time.Duration(digest.DurationMs) * time.Millisecond
	failed := countFailed(outcome)

	// Header with overall status
	b.WriteString("## 🔎 Claim Validation Results\n\n")

	// Overall status badge
	statusIcon := "✅ Passed"
	if failed > 0 || digest.Errors > 0 {
		statusIcon = "❌ Failed"
	}

	b.WriteString(fmt.Sprintf("**Status:** %s | **Score:** %.2f | **Duration:** %s\n\n",
		statusIcon, digest.AggregateScore, formatDuration(duration)))

	// Summary stats
	b.WriteString(fmt.Sprintf("- **Claims:** %d total, %d supported, %d refuted, %d uncertain, %d errors\n",
		digest.TotalClaims, digest.Supported, digest.Refuted, digest.Uncertain, digest.Errors))
	b.WriteString(fmt.Sprintf("- **Pass Rate:** %.1f%%\n", digest.PassRate*100))
	b.WriteString(fmt.Sprintf("- **Score Range:** %.2f - %.2f (σ=%.4f)\n", digest.MinScore, digest.MaxScore, digest.StdDev))
	if len(outcome.Evidence) > 0 {
		b.WriteString(fmt.Sprintf("- **Evidence:** %d probe(s), strength %.2f\n", len(outcome.Evidence), digest.EvidenceScore))
	}
	b.WriteString("\n")

	// Per-claim breakdown table
	b.WriteString("### Claim Results\n\n")
	b.WriteString("| Claim | Verdict | Score | Agreement | Status |\n")
	b.WriteString("|-------|---------|-------|-----------|--------|\n")

	for _, co := range outcome.ClaimOutcomes {
		statusIcon := "✅"
		if co.Status != models.StatusPassed {
			statusIcon = "❌"
		}

		avgScore := 0.0
		agreement := 0.0
		if co.Stats != nil {
			avgScore = co.Stats.AvgScore
		}
		if len(co.Trials) > 0 {
			agreement = co.Trials[len(co.Trials)-1].Consensus.Agreement
		}

		b.WriteString(fmt.Sprintf("| %s | %s | %.2f | %.2f | %s |\n",
			co.DisplayName, co.Verdict, avgScore, agreement, statusIcon))
	}

	b.WriteString("\n")

	// Flaky claims warning
	var flakyClaims []models.ClaimOutcome
	for _, co := range outcome.ClaimOutcomes {
		if co.Stats != nil && co.Stats.Flaky {
			flakyClaims = append(flakyClaims, co)
		}
	}
	if len(flakyClaims) > 0 {
		b.WriteString("### ⚠️ Flaky Claims\n\n")
		b.WriteString("The following claims showed inconsistent verdicts across trials:\n\n")
		for _, co := range flakyClaims {
			b.WriteString(fmt.Sprintf("- **%s**: %.0f%% pass rate, score=%.2f±%.2f\n",
				co.DisplayName,
				co.Stats.PassRate*100,
				co.Stats.AvgScore,
				co.Stats.StdDevScore,
			))
		}
		b.WriteString("\n")
	}

	// Provider breakdown for failed claims
	if failed > 0 || digest.Errors > 0 {
		b.WriteString("### Failed Claim Details\n\n")
		for _, co := range outcome.ClaimOutcomes {
			if co.Status == models.StatusPassed {
				continue
			}
			b.WriteString(fmt.Sprintf("#### %s\n\n", co.DisplayName))
			b.WriteString(fmt.Sprintf("Expected **%s**, consensus was **%s**.\n\n", co.Expected, co.Verdict))

			if len(co.Trials) > 0 {
				last := co.Trials[len(co.Trials)-1]
				if last.ErrorMsg != "" {
					b.WriteString(fmt.Sprintf("Error: %s\n\n", last.ErrorMsg))
				}
				for _, v := range sortedVerdicts(last.Verdicts) {
					if v.Failed() {
						b.WriteString(fmt.Sprintf("- ❌ **%s**: error: %s\n", v.Provider, v.ErrorMsg))
						continue
					}
					icon := "✅"
					if v.Verdict != co.Expected {
						icon = "❌"
					}
					b.WriteString(fmt.Sprintf("- %s **%s** (%s, %.2f): %s\n",
						icon, v.Provider, v.Verdict, v.Confidence, v.Rationale))
				}
				b.WriteString("\n")
			}
		}
	}

	// Footer with metadata
	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Spec:** %s | **Providers:** %s | **Consensus:** %s\n",
		outcome.SpecName, strings.Join(outcome.Setup.Providers, ", "), outcome.Setup.ConsensusMethod))

	return b.String()
}
