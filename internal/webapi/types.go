package webapi

import "time"

// RunSummary is the API response for a single run in the list.
type RunSummary struct {
	ID            string    `json:"id"`
	Spec          string    `json:"spec"`
	Providers     []string  `json:"providers"`
	Outcome       string    `json:"outcome"`
	PassCount     int       `json:"passCount"`
	ClaimCount    int       `json:"claimCount"`
	Score         float64   `json:"score"`
	EvidenceScore float64   `json:"evidenceScore"`
	Duration      float64   `json:"duration"`
	Timestamp     time.Time `json:"timestamp"`
}

// RunDetail is the API response for a single run with per-claim results.
type RunDetail struct {
	RunSummary
	Claims   []ClaimResult    `json:"claims"`
	Evidence []EvidenceResult `json:"evidence"`
}

// ClaimResult is a per-claim result within a run.
type ClaimResult struct {
	Name      string          `json:"name"`
	Outcome   string          `json:"outcome"`
	Verdict   string          `json:"verdict"`
	Expected  string          `json:"expected"`
	Score     float64         `json:"score"`
	Agreement float64         `json:"agreement"`
	Duration  float64         `json:"duration"`
	Verdicts  []VerdictResult `json:"verdicts"`
}

// VerdictResult is a single provider verdict.
type VerdictResult struct {
	Provider   string  `json:"provider"`
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Error      string  `json:"error,omitempty"`
	Duration   float64 `json:"duration"`
}

// EvidenceResult is one probe result attached to a run.
type EvidenceResult struct {
	Source  string  `json:"source"`
	Kind    string  `json:"kind"`
	OK      bool    `json:"ok"`
	Latency float64 `json:"latency"`
	Summary string  `json:"summary,omitempty"`
}

// SummaryResponse is the aggregate KPI response.
type SummaryResponse struct {
	TotalRuns   int     `json:"totalRuns"`
	TotalClaims int     `json:"totalClaims"`
	PassRate    float64 `json:"passRate"`
	AvgScore    float64 `json:"avgScore"`
	AvgDuration float64 `json:"avgDuration"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
