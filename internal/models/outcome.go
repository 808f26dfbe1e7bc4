package models

import (
	"math"
	"time"

	"github.com/mwhelan/claimcheck/internal/statistics"
)

// Status represents the outcome status of a claim or trial.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// Verdict is a provider's (or the consensus) judgment of a claim.
type Verdict string

const (
	VerdictSupported Verdict = "supported"
	VerdictRefuted   Verdict = "refuted"
	VerdictUncertain Verdict = "uncertain"
)

// Evidence is one JSON-serializable probe result fed into provider prompts.
type Evidence struct {
	Source      string         `json:"source"`
	Kind        string         `json:"kind"`
	CollectedAt time.Time      `json:"collected_at"`
	OK          bool           `json:"ok"`
	LatencyMs   int64          `json:"latency_ms"`
	Summary     string         `json:"summary,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// ProviderVerdict is one provider's judgment of one claim.
type ProviderVerdict struct {
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	Verdict    Verdict `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Weight     float64 `json:"weight"`
	TokensIn   int     `json:"tokens_in,omitempty"`
	TokensOut  int     `json:"tokens_out,omitempty"`
	DurationMs int64   `json:"duration_ms"`
	// ErrorMsg is set when the provider call failed; such verdicts are
	// excluded from consensus.
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Failed reports whether the provider call produced no usable verdict.
func (v *ProviderVerdict) Failed() bool {
	return v.ErrorMsg != ""
}

// ConsensusResult is the weighted aggregate of provider verdicts for one trial.
type ConsensusResult struct {
	Score     float64 `json:"score"`
	Verdict   Verdict `json:"verdict"`
	Method    string  `json:"method"`
	Agreement float64 `json:"agreement"`
	QuorumMet bool    `json:"quorum_met"`
	// EvidenceGated is true when weak evidence forced an uncertain verdict.
	EvidenceGated bool `json:"evidence_gated,omitempty"`
	Scored        int  `json:"scored"`
	Excluded      int  `json:"excluded"`
}

// ValidationOutcome represents the complete result of a validation run
type ValidationOutcome struct {
	RunID         string         `json:"run_id"`
	SpecName      string         `json:"spec_name"`
	Timestamp     time.Time      `json:"timestamp"`
	Setup         OutcomeSetup   `json:"config"`
	Digest        OutcomeDigest  `json:"summary"`
	Evidence      []Evidence     `json:"evidence,omitempty"`
	ClaimOutcomes []ClaimOutcome `json:"claims"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type OutcomeSetup struct {
	TrialsPerClaim  int      `json:"trials_per_claim"`
	Providers       []string `json:"providers"`
	ConsensusMethod string   `json:"consensus_method"`
	Quorum          int      `json:"quorum"`
	TimeoutSec      int      `json:"timeout_sec"`
	// SkippedProviders lists configured providers left out of the run for
	// missing credentials.
	SkippedProviders []string `json:"skipped_providers,omitempty"`
}

type OutcomeDigest struct {
	TotalClaims    int     `json:"total_claims"`
	Supported      int     `json:"supported"`
	Refuted        int     `json:"refuted"`
	Uncertain      int     `json:"uncertain"`
	Errors         int     `json:"errors"`
	PassRate       float64 `json:"pass_rate"`
	AggregateScore float64 `json:"aggregate_score"`
	MinScore       float64 `json:"min_score"`
	MaxScore       float64 `json:"max_score"`
	StdDev         float64 `json:"std_dev"`
	EvidenceScore  float64 `json:"evidence_score"`
	DurationMs     int64   `json:"duration_ms"`

	// Statistical summary populated when trials_per_claim > 1
	Statistics *StatisticalSummary `json:"statistics,omitempty"`
}

// ClaimOutcome represents the result of one claim
type ClaimOutcome struct {
	ClaimID     string        `json:"claim_id"`
	DisplayName string        `json:"display_name"`
	Category    string        `json:"category,omitempty"`
	Status      Status        `json:"status"`
	Verdict     Verdict       `json:"verdict"`
	Expected    Verdict       `json:"expected"`
	Trials      []TrialResult `json:"trials"`
	Stats       *ClaimStats   `json:"stats,omitempty"`
}

// TrialResult is the result of a single trial of a claim
type TrialResult struct {
	TrialNumber int `json:"trial_number"`
	Attempts    int `json:"attempts"`
	// Status contains the overall status of the trial.
	// NOTE: if Status == [StatusError], then [ErrorMsg] will be set to the
	// message from the error.
	Status     Status                     `json:"status"`
	DurationMs int64                      `json:"duration_ms"`
	Verdicts   map[string]ProviderVerdict `json:"verdicts"`
	Consensus  ConsensusResult            `json:"consensus"`
	ErrorMsg   string                     `json:"error_msg,omitempty"`
}

type ClaimStats struct {
	PassRate      float64 `json:"pass_rate"`
	AvgScore      float64 `json:"avg_score"`
	MinScore      float64 `json:"min_score"`
	MaxScore      float64 `json:"max_score"`
	StdDevScore   float64 `json:"std_dev_score"`
	CI95Lo        float64 `json:"ci95_lo"`
	CI95Hi        float64 `json:"ci95_hi"`
	Flaky         bool    `json:"flaky"`
	AvgDurationMs int64   `json:"avg_duration_ms"`

	// Bootstrap confidence interval over consensus scores (populated when trials > 1)
	BootstrapCI *statistics.ConfidenceInterval `json:"bootstrap_ci,omitempty"`
}

// StatisticalSummary holds aggregate statistical data for the digest when trials > 1.
type StatisticalSummary struct {
	BootstrapCI   statistics.ConfidenceInterval `json:"bootstrap_ci"`
	IsSignificant bool                          `json:"is_significant"`
}

// ComputeStdDev returns the population standard deviation for a slice of float64 values.
func ComputeStdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(n))
}
