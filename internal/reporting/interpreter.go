package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
)

// InterpretScore returns a plain-language label for a consensus score (0-1).
// The scale is centered: 0.5 is neutral, not "half good".
func InterpretScore(score float64) string {
	switch {
	case score >= 0.9:
		return "Strongly supported (>=0.90)"
	case score >= 0.7:
		return "Supported (0.70-0.90)"
	case score >= 0.4:
		return "Uncertain (0.40-0.70)"
	case score >= 0.1:
		return "Refuted (0.10-0.40)"
	default:
		return "Strongly refuted (<0.10)"
	}
}

// InterpretPassRate returns a human-readable explanation of a pass rate (0-1).
func InterpretPassRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All claims passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most claims passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the claims passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few claims passed (%.0f%%)", pct)
	}
}

// InterpretFlaky explains whether trial results were consistent.
func InterpretFlaky(flaky bool, passRate float64) string {
	if !flaky {
		return "Trials are consistent."
	}
	pct := passRate * 100
	return fmt.Sprintf("Trials are flaky: the same claim passes and fails across trials (%.0f%% pass rate). Consider increasing trials_per_claim or investigating provider nondeterminism.", pct)
}

// InterpretEvidence explains the evidence strength score (0-1).
func InterpretEvidence(score float64, probes int) string {
	if probes == 0 {
		return "No evidence was collected; providers judged claims unaided."
	}
	switch {
	case score >= 0.8:
		return fmt.Sprintf("Evidence is strong (%.2f across %d probes).", score, probes)
	case score >= 0.5:
		return fmt.Sprintf("Evidence is moderate (%.2f across %d probes).", score, probes)
	default:
		return fmt.Sprintf("Evidence is weak (%.2f across %d probes); verdicts lean on provider judgment.", score, probes)
	}
}

// InterpretAgreement explains how tightly providers clustered for one trial.
func InterpretAgreement(agreement float64) string {
	switch {
	case agreement >= 0.9:
		return "Providers agree closely."
	case agreement >= 0.6:
		return "Providers mostly agree."
	default:
		return "Providers disagree; treat the consensus with caution."
	}
}

// FormatSummaryReport produces a full plain-language report from a ValidationOutcome.
func FormatSummaryReport(outcome *models.ValidationOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	b.WriteString(fmt.Sprintf("Aggregate Score: %.2f (%s)\n", d.AggregateScore, InterpretScore(d.AggregateScore)))
	b.WriteString(fmt.Sprintf("Pass Rate:       %s\n", InterpretPassRate(d.PassRate)))
	b.WriteString(fmt.Sprintf("Evidence:        %s\n", InterpretEvidence(d.EvidenceScore, len(outcome.Evidence))))
	b.WriteString(fmt.Sprintf("Duration:        %v\n", duration))

	if d.TotalClaims > 0 {
		b.WriteString(fmt.Sprintf("Claims:          %d supported, %d refuted, %d uncertain, %d errors out of %d total\n",
			d.Supported, d.Refuted, d.Uncertain, d.Errors, d.TotalClaims))
	}

	if d.Statistics != nil {
		ci := d.Statistics.BootstrapCI
		b.WriteString(fmt.Sprintf("Bootstrap CI:    [%.3f, %.3f] at %.0f%% confidence\n",
			ci.Lower, ci.Upper, ci.ConfidenceLevel*100))
	}

	// Per-claim interpretation
	if len(outcome.ClaimOutcomes) > 0 {
		b.WriteString("\nPer-Claim Interpretation:\n")
		for _, co := range outcome.ClaimOutcomes {
			icon := "✓"
			if co.Status != models.StatusPassed {
				icon = "✗"
			}
			b.WriteString(fmt.Sprintf("  %s %s: %s (expected %s, got %s)\n",
				icon, co.DisplayName, co.Status, co.Expected, co.Verdict))
			if co.Stats != nil {
				b.WriteString(fmt.Sprintf("    Score: %.2f (%s)\n", co.Stats.AvgScore, InterpretScore(co.Stats.AvgScore)))
				b.WriteString(fmt.Sprintf("    %s\n", InterpretFlaky(co.Stats.Flaky, co.Stats.PassRate)))
			}
		}
	}

	return b.String()
}
