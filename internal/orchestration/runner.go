// Package orchestration drives validation runs: evidence collection,
// provider fan-out, consensus, statistics and persistence.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwhelan/claimcheck/internal/config"
	"github.com/mwhelan/claimcheck/internal/consensus"
	"github.com/mwhelan/claimcheck/internal/credentials"
	"github.com/mwhelan/claimcheck/internal/dataset"
	"github.com/mwhelan/claimcheck/internal/evidence"
	"github.com/mwhelan/claimcheck/internal/hooks"
	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/mwhelan/claimcheck/internal/providers"
	"github.com/mwhelan/claimcheck/internal/statistics"
	"github.com/mwhelan/claimcheck/internal/store"
	"github.com/mwhelan/claimcheck/internal/template"
)

// Runner orchestrates the execution of a validation run
type Runner struct {
	cfg     *config.ValidationConfig
	verbose bool

	// Claim filtering
	claimFilters []string

	// Tag filtering for claims
	tagFilters []string

	// Result persistence and trial caching
	db *store.Store

	// Provider instances, built once per run. Providers without
	// credentials land in skipped instead.
	providers []providers.Provider
	weights   map[string]float64
	skipped   []string

	// Strength of the run-level evidence, computed once after collection
	evidenceStrength float64

	// Consensus engine
	engine *consensus.Engine

	// Evidence collector
	collector *evidence.Collector

	// Lifecycle hooks
	hookRunner *hooks.Runner

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart         EventType = "run_start"
	EventRunComplete      EventType = "run_complete"
	EventRunStopped       EventType = "run_stopped"
	EventEvidenceComplete EventType = "evidence_complete"
	EventClaimStart       EventType = "claim_start"
	EventClaimComplete    EventType = "claim_complete"
	EventClaimCached      EventType = "claim_cached"
	EventTrialStart       EventType = "trial_start"
	EventTrialComplete    EventType = "trial_complete"
	EventProviderVerdict  EventType = "provider_verdict"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	ClaimName   string
	ClaimNum    int
	TotalClaims int
	TrialNum    int
	TotalTrials int
	Status      models.Status
	DurationMs  int64
	Details     map[string]any
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClaimFilters sets glob patterns used to filter claims by DisplayName or ClaimID.
func WithClaimFilters(patterns ...string) RunnerOption {
	return func(r *Runner) {
		r.claimFilters = patterns
	}
}

func WithTagFilters(patterns ...string) RunnerOption {
	return func(r *Runner) {
		r.tagFilters = patterns
	}
}

// WithStore enables run persistence and trial caching.
func WithStore(db *store.Store) RunnerOption {
	return func(r *Runner) {
		r.db = db
	}
}

// NewRunner creates a new validation runner
func NewRunner(cfg *config.ValidationConfig, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:       cfg,
		verbose:   cfg.Verbose(),
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// claimOutcomeDetails extracts score and duration from a ClaimOutcome for
// inclusion in EventClaimComplete Details.
func claimOutcomeDetails(o *models.ClaimOutcome) map[string]any {
	score := 0.0
	durationMs := int64(0)
	if o.Stats != nil {
		score = o.Stats.AvgScore
		durationMs = o.Stats.AvgDurationMs
	}
	return map[string]any{
		"score":       score,
		"duration_ms": durationMs,
	}
}

// Run executes the entire validation run.
func (r *Runner) Run(ctx context.Context) (*models.ValidationOutcome, error) {
	startTime := time.Now()
	spec := r.cfg.Spec()

	if err := r.setupProviders(); err != nil {
		return nil, err
	}

	r.hookRunner = &hooks.Runner{Verbose: r.verbose}

	// Run after_run hooks on exit (even on error)
	defer func() {
		if len(spec.Hooks.AfterRun) > 0 {
			if err := r.hookRunner.Execute(ctx, "after_run", spec.Hooks.AfterRun); err != nil {
				fmt.Printf("[WARN] after_run hook error: %v\n", err)
			}
		}
	}()

	// Run before_run hooks
	if len(spec.Hooks.BeforeRun) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_run", spec.Hooks.BeforeRun); err != nil {
			return nil, fmt.Errorf("before_run hook failed: %w", err)
		}
	}

	// Load claims
	claims, err := r.loadClaims()
	if err != nil {
		return nil, fmt.Errorf("failed to load claims: %w", err)
	}

	// Apply claim/tag filters
	if len(r.claimFilters) > 0 || len(r.tagFilters) > 0 {
		claims, err = FilterClaims(claims, r.claimFilters, r.tagFilters)
		if err != nil {
			return nil, fmt.Errorf("claim/tag filter error: %w", err)
		}
		fmt.Printf("Claim and tag filters matched %d claim(s):\n", len(claims))
		for _, c := range claims {
			fmt.Printf("  • %s (%s)\n", c.Name(), c.ClaimID)
		}
		fmt.Println()
	}

	if len(claims) == 0 {
		return nil, fmt.Errorf("no claims found")
	}

	r.notifyProgress(ProgressEvent{
		EventType:   EventRunStart,
		TotalClaims: len(claims),
	})

	// Collect run-level evidence once, before any provider sees a claim
	runEvidence, err := r.collectEvidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("evidence collection failed: %w", err)
	}

	// Consensus is gated on evidence strength only when probes actually ran;
	// a spec with no probes leaves providers to judge claims unaided.
	var engineOpts []consensus.EngineOption
	if len(runEvidence) > 0 {
		engineOpts = append(engineOpts, consensus.WithEvidenceStrength(r.evidenceStrength))
	}
	r.engine = consensus.NewEngine(spec.Consensus, engineOpts...)

	// Score claims
	var claimOutcomes []models.ClaimOutcome
	if spec.Config.Concurrent {
		claimOutcomes = r.runConcurrent(ctx, claims, runEvidence)
	} else {
		claimOutcomes = r.runSequential(ctx, claims, runEvidence)
	}

	outcome := r.buildOutcome(claimOutcomes, runEvidence, startTime)

	if r.db != nil {
		if err := r.db.PutRun(outcome); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to persist run %s: %v\n", outcome.RunID, err)
		}
		if len(runEvidence) > 0 {
			if err := r.db.PutEvidence(outcome.RunID, runEvidence); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to persist evidence for run %s: %v\n", outcome.RunID, err)
			}
		}
	}

	r.notifyProgress(ProgressEvent{
		EventType:  EventRunComplete,
		DurationMs: time.Since(startTime).Milliseconds(),
	})

	return outcome, nil
}

// setupProviders instantiates every configured provider. A provider whose
// API key is missing is skipped with a warning and recorded in the outcome;
// the run fails only when nobody is left to score.
func (r *Runner) setupProviders() error {
	spec := r.cfg.Spec()

	r.providers = make([]providers.Provider, 0, len(spec.Providers))
	r.weights = make(map[string]float64, len(spec.Providers))

	for i := range spec.Providers {
		pc := &spec.Providers[i]

		key, err := credentials.KeyFor(pc.Kind)
		if err != nil {
			if errors.Is(err, credentials.ErrMissingKey) {
				fmt.Fprintf(os.Stderr, "[WARN] Skipping provider %s: %v\n", pc.Name(), err)
				r.skipped = append(r.skipped, pc.Name())
				continue
			}
			return fmt.Errorf("provider %s: %w", pc.Name(), err)
		}

		provider, err := providers.Create(pc, key)
		if err != nil {
			return fmt.Errorf("failed to create provider %s: %w", pc.Name(), err)
		}

		r.providers = append(r.providers, provider)
		r.weights[provider.Name()] = pc.EffectiveWeight()
	}

	if len(r.providers) == 0 {
		return fmt.Errorf("no provider has credentials configured (skipped: %s)",
			strings.Join(r.skipped, ", "))
	}

	return nil
}

func (r *Runner) collectEvidence(ctx context.Context) ([]models.Evidence, error) {
	spec := r.cfg.Spec()
	if len(spec.Probes) == 0 {
		return nil, nil
	}

	collector, err := evidence.NewCollectorFromConfig(spec.Probes, r.cfg.SpecDir())
	if err != nil {
		return nil, err
	}
	r.collector = collector

	start := time.Now()
	collected, err := collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	ok := 0
	for _, ev := range collected {
		if ev.OK {
			ok++
		}
	}

	r.evidenceStrength = evidence.Strength(collected, time.Now())

	r.notifyProgress(ProgressEvent{
		EventType:  EventEvidenceComplete,
		DurationMs: time.Since(start).Milliseconds(),
		Details: map[string]any{
			"probes":   len(collected),
			"ok":       ok,
			"strength": r.evidenceStrength,
		},
	})

	return collected, nil
}

func (r *Runner) loadClaims() ([]*models.Claim, error) {
	spec := r.cfg.Spec()

	// CSV dataset path: generate claims from CSV rows
	if spec.ClaimsFrom != "" {
		return r.loadClaimsFromCSV()
	}

	return r.loadClaimsFromFiles()
}

// loadClaimsFromCSV generates in-memory Claims from CSV rows.
func (r *Runner) loadClaimsFromCSV() ([]*models.Claim, error) {
	spec := r.cfg.Spec()

	// Resolve CSV path relative to spec directory
	csvPath := spec.ClaimsFrom
	baseDir := r.cfg.SpecDir()
	if baseDir == "" {
		baseDir = "."
	}
	if !filepath.IsAbs(csvPath) {
		csvPath = filepath.Join(baseDir, csvPath)
	}

	// Path containment: CSV must resolve within spec directory
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving spec directory: %w", err)
	}
	absCSVPath, err := filepath.Abs(csvPath)
	if err != nil {
		return nil, fmt.Errorf("resolving CSV path: %w", err)
	}
	if !strings.HasPrefix(absCSVPath, absBaseDir+string(filepath.Separator)) {
		return nil, fmt.Errorf("claims_from path %q escapes spec directory", spec.ClaimsFrom)
	}

	var rows []dataset.Row
	rowOffset := 0
	if spec.ClaimsRows != "" {
		start, end, err := parseRowRange(spec.ClaimsRows)
		if err != nil {
			return nil, err
		}
		rows, err = dataset.LoadCSVRange(csvPath, start, end)
		if err != nil {
			return nil, fmt.Errorf("loading CSV dataset: %w", err)
		}
		rowOffset = start - 1
	} else {
		rows, err = dataset.LoadCSV(csvPath)
		if err != nil {
			return nil, fmt.Errorf("loading CSV dataset: %w", err)
		}
	}

	now := time.Now()
	runID := fmt.Sprintf("run-%d", now.Unix())

	claims := make([]*models.Claim, 0, len(rows))
	for i, row := range rows {
		rowNum := rowOffset + i + 1

		claimID := fmt.Sprintf("row-%d", rowNum)
		if v, ok := row["id"]; ok && v != "" {
			claimID = v
		} else if v, ok := row["name"]; ok && v != "" {
			claimID = v
		}

		displayName := fmt.Sprintf("row-%d", rowNum)
		if v, ok := row["name"]; ok && v != "" {
			displayName = v
		}

		// Build per-row template context: inputs + CSV row (CSV overrides inputs on conflict)
		rowCtx := &template.Context{
			RunID:     runID,
			ClaimName: displayName,
			Timestamp: now.Format(time.RFC3339),
			Vars:      make(map[string]string),
		}
		for k, v := range spec.Inputs {
			rowCtx.Vars[k] = v
		}
		for k, v := range row {
			rowCtx.Vars[k] = v
		}

		statement := row["statement"]
		if strings.Contains(statement, "{{") {
			statement, err = template.Render(statement, rowCtx)
			if err != nil {
				return nil, fmt.Errorf("resolving statement template for row %d: %w", rowNum, err)
			}
		}
		if statement == "" {
			return nil, fmt.Errorf("row %d: missing 'statement' column value", rowNum)
		}

		claims = append(claims, &models.Claim{
			ClaimID:     claimID,
			DisplayName: displayName,
			Statement:   statement,
			Category:    row["category"],
			Context:     row["context"],
			Expected:    models.Verdict(row["expected"]),
		})
	}

	return claims, nil
}

// parseRowRange parses a 1-based inclusive "start-end" data row range.
func parseRowRange(s string) (int, int, error) {
	lo, hi, found := strings.Cut(s, "-")
	if found {
		start, errLo := strconv.Atoi(strings.TrimSpace(lo))
		end, errHi := strconv.Atoi(strings.TrimSpace(hi))
		if errLo == nil && errHi == nil {
			return start, end, nil
		}
	}
	return 0, 0, fmt.Errorf("claims_rows must look like \"2-10\", got %q", s)
}

// loadClaimsFromFiles loads claims from YAML or Markdown files via glob patterns.
func (r *Runner) loadClaimsFromFiles() ([]*models.Claim, error) {
	spec := r.cfg.Spec()

	baseDir := r.cfg.ClaimsDir()
	if baseDir == "" {
		baseDir = "."
	}

	claimFiles, err := spec.ResolveClaimFiles(baseDir)
	if err != nil {
		return nil, err
	}

	if len(claimFiles) == 0 {
		return nil, fmt.Errorf("no claim files matched patterns: %v in directory: %s", spec.Claims, baseDir)
	}

	var claims []*models.Claim
	for _, path := range claimFiles {
		claim, err := models.LoadClaim(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load claim %s: %w", path, err)
		}
		// LoadClaim defaults Active to true (nil case), so include nil or explicitly true
		if claim.Active == nil || *claim.Active {
			claims = append(claims, claim)
		}
	}

	return claims, nil
}

func (r *Runner) runSequential(ctx context.Context, claims []*models.Claim, runEvidence []models.Evidence) []models.ClaimOutcome {
	outcomes := make([]models.ClaimOutcome, 0, len(claims))
	spec := r.cfg.Spec()

	for i, claim := range claims {
		if spec.Config.StopOnError && i > 0 {
			for _, prev := range outcomes {
				if prev.Status != models.StatusPassed {
					r.notifyProgress(ProgressEvent{
						EventType: EventRunStopped,
						Details:   map[string]any{"reason": "fail_fast enabled and previous claim failed"},
					})
					return outcomes
				}
			}
		}

		// Run before_claim hooks
		if r.hookRunner != nil && len(spec.Hooks.BeforeClaim) > 0 {
			if err := r.hookRunner.Execute(ctx, "before_claim", spec.Hooks.BeforeClaim); err != nil {
				outcomes = append(outcomes, models.ClaimOutcome{
					ClaimID:     claim.ClaimID,
					DisplayName: claim.Name(),
					Status:      models.StatusFailed,
					Trials:      []models.TrialResult{},
				})
				r.notifyProgress(ProgressEvent{
					EventType:   EventClaimComplete,
					ClaimName:   claim.Name(),
					ClaimNum:    i + 1,
					TotalClaims: len(claims),
					Status:      models.StatusFailed,
					Details:     map[string]any{"score": 0.0, "duration_ms": int64(0)},
				})
				continue
			}
		}

		r.notifyProgress(ProgressEvent{
			EventType:   EventClaimStart,
			ClaimName:   claim.Name(),
			ClaimNum:    i + 1,
			TotalClaims: len(claims),
		})

		outcome, wasCached := r.runClaim(ctx, claim, runEvidence)
		outcomes = append(outcomes, outcome)

		// Run after_claim hooks
		if r.hookRunner != nil && len(spec.Hooks.AfterClaim) > 0 {
			if err := r.hookRunner.Execute(ctx, "after_claim", spec.Hooks.AfterClaim); err != nil {
				fmt.Printf("[WARN] after_claim hook error for %s: %v\n", claim.Name(), err)
			}
		}

		if wasCached {
			r.notifyProgress(ProgressEvent{
				EventType:   EventClaimCached,
				ClaimName:   claim.Name(),
				ClaimNum:    i + 1,
				TotalClaims: len(claims),
				Status:      outcome.Status,
			})
		} else {
			r.notifyProgress(ProgressEvent{
				EventType:   EventClaimComplete,
				ClaimName:   claim.Name(),
				ClaimNum:    i + 1,
				TotalClaims: len(claims),
				Status:      outcome.Status,
				Details:     claimOutcomeDetails(&outcome),
			})
		}
	}

	return outcomes
}

func (r *Runner) runConcurrent(ctx context.Context, claims []*models.Claim, runEvidence []models.Evidence) []models.ClaimOutcome {
	spec := r.cfg.Spec()
	workers := spec.Config.Workers
	if workers <= 0 {
		workers = 4
	}

	type result struct {
		index   int
		outcome models.ClaimOutcome
	}

	resultChan := make(chan result, len(claims))
	semaphore := make(chan struct{}, workers)

	var wg sync.WaitGroup

	for i, claim := range claims {
		wg.Add(1)
		go func(idx int, c *models.Claim) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			// Run before_claim hooks
			if r.hookRunner != nil && len(spec.Hooks.BeforeClaim) > 0 {
				if err := r.hookRunner.Execute(ctx, "before_claim", spec.Hooks.BeforeClaim); err != nil {
					resultChan <- result{index: idx, outcome: models.ClaimOutcome{
						ClaimID:     c.ClaimID,
						DisplayName: c.Name(),
						Status:      models.StatusFailed,
						Trials:      []models.TrialResult{},
					}}
					r.notifyProgress(ProgressEvent{
						EventType:   EventClaimComplete,
						ClaimName:   c.Name(),
						ClaimNum:    idx + 1,
						TotalClaims: len(claims),
						Status:      models.StatusFailed,
						Details:     map[string]any{"score": 0.0, "duration_ms": int64(0)},
					})
					return
				}
			}

			r.notifyProgress(ProgressEvent{
				EventType:   EventClaimStart,
				ClaimName:   c.Name(),
				ClaimNum:    idx + 1,
				TotalClaims: len(claims),
			})

			outcome, wasCached := r.runClaim(ctx, c, runEvidence)
			resultChan <- result{index: idx, outcome: outcome}

			// Run after_claim hooks
			if r.hookRunner != nil && len(spec.Hooks.AfterClaim) > 0 {
				if err := r.hookRunner.Execute(ctx, "after_claim", spec.Hooks.AfterClaim); err != nil {
					fmt.Printf("[WARN] after_claim hook error for %s: %v\n", c.Name(), err)
				}
			}

			if wasCached {
				r.notifyProgress(ProgressEvent{
					EventType:   EventClaimCached,
					ClaimName:   c.Name(),
					ClaimNum:    idx + 1,
					TotalClaims: len(claims),
					Status:      outcome.Status,
				})
			} else {
				r.notifyProgress(ProgressEvent{
					EventType:   EventClaimComplete,
					ClaimName:   c.Name(),
					ClaimNum:    idx + 1,
					TotalClaims: len(claims),
					Status:      outcome.Status,
					Details:     claimOutcomeDetails(&outcome),
				})
			}
		}(i, claim)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]models.ClaimOutcome, len(claims))
	for res := range resultChan {
		results[res.index] = res.outcome
	}

	return results
}

func (r *Runner) runClaim(ctx context.Context, claim *models.Claim, runEvidence []models.Evidence) (models.ClaimOutcome, bool) {
	spec := r.cfg.Spec()
	trialsPerClaim := spec.Config.TrialsPerClaim
	maxAttempts := spec.Config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	// Deterministic trials are cacheable: provider verdicts depend only on
	// spec, claim and evidence content. Multi-trial claims exist to measure
	// provider nondeterminism, so they bypass the cache.
	cacheable := r.db != nil && !r.cfg.NoCache() && trialsPerClaim == 1

	var cacheKey string
	if cacheable {
		key, err := store.CacheKey(spec, claim, runEvidence)
		if err == nil {
			cacheKey = key
			if cached, found := r.db.GetCachedTrial(cacheKey); found {
				return r.buildClaimOutcome(claim, []models.TrialResult{*cached}), true
			}
		}
	}

	trials := make([]models.TrialResult, 0, trialsPerClaim)

	for trialNum := 1; trialNum <= trialsPerClaim; trialNum++ {
		r.notifyProgress(ProgressEvent{
			EventType:   EventTrialStart,
			ClaimName:   claim.Name(),
			TrialNum:    trialNum,
			TotalTrials: trialsPerClaim,
		})

		var trial models.TrialResult
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			trial = r.executeTrial(ctx, claim, runEvidence, trialNum)
			trial.Attempts = attempt

			if trial.Status != models.StatusError {
				break
			}

			if attempt < maxAttempts && r.verbose {
				fmt.Printf("[RETRY] %s trial %d: attempt %d/%d errored, retrying\n",
					claim.Name(), trialNum, attempt, maxAttempts)
			}
		}

		// Surface errors even in non-verbose mode because they're critical for understanding failures
		if trial.ErrorMsg != "" && !r.verbose {
			fmt.Printf("[ERROR] %s\n\n", trial.ErrorMsg)
		}

		trials = append(trials, trial)

		r.notifyProgress(ProgressEvent{
			EventType:   EventTrialComplete,
			ClaimName:   claim.Name(),
			TrialNum:    trialNum,
			TotalTrials: trialsPerClaim,
			Status:      trial.Status,
			DurationMs:  trial.DurationMs,
		})
	}

	if cacheable && cacheKey != "" && len(trials) == 1 && trials[0].Status != models.StatusError {
		if err := r.db.PutCachedTrial(cacheKey, &trials[0]); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to write cache for claim %q: %v\n", claim.Name(), err)
		}
	}

	return r.buildClaimOutcome(claim, trials), false
}

// executeTrial fans the claim out to every provider, then aggregates.
func (r *Runner) executeTrial(ctx context.Context, claim *models.Claim, runEvidence []models.Evidence, trialNum int) models.TrialResult {
	startTime := time.Now()
	spec := r.cfg.Spec()

	timeout := spec.Config.TimeoutSec
	if claim.TimeoutSec != nil {
		timeout = *claim.TimeoutSec
	}

	trialCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	promptOverride, err := r.resolvePromptOverride(claim, trialNum)
	if err != nil {
		return models.TrialResult{
			TrialNumber: trialNum,
			Status:      models.StatusError,
			DurationMs:  time.Since(startTime).Milliseconds(),
			ErrorMsg:    err.Error(),
		}
	}

	req := &providers.ScoreRequest{
		Claim:            claim,
		Evidence:         runEvidence,
		EvidenceStrength: r.evidenceStrength,
		PromptOverride:   promptOverride,
	}

	// Every provider gets the same request concurrently. A provider error
	// becomes a failed verdict; it never sinks the trial.
	selected := r.selectProviders(claim)

	type scored struct {
		name    string
		verdict models.ProviderVerdict
	}

	verdictChan := make(chan scored, len(selected))

	var wg sync.WaitGroup
	for _, p := range selected {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()

			verdict, err := p.Score(trialCtx, req)
			if err != nil {
				verdictChan <- scored{name: p.Name(), verdict: models.ProviderVerdict{
					Provider: p.Name(),
					Weight:   r.weights[p.Name()],
					ErrorMsg: err.Error(),
				}}
				return
			}

			verdict.Weight = r.weights[p.Name()]
			verdictChan <- scored{name: p.Name(), verdict: *verdict}
		}(p)
	}

	wg.Wait()
	close(verdictChan)

	verdicts := make(map[string]models.ProviderVerdict, len(selected))
	for sv := range verdictChan {
		verdicts[sv.name] = sv.verdict
	}

	r.emitProviderVerdicts(claim, verdicts)

	all := make([]models.ProviderVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		all = append(all, v)
	}

	result, err := r.engine.Evaluate(all)
	if err != nil {
		return models.TrialResult{
			TrialNumber: trialNum,
			Status:      models.StatusError,
			DurationMs:  time.Since(startTime).Milliseconds(),
			Verdicts:    verdicts,
			ErrorMsg:    "computing consensus: " + err.Error(),
		}
	}

	status := models.StatusPassed
	if claim.ExpectedVerdict() != result.Verdict {
		status = models.StatusFailed
	}

	return models.TrialResult{
		TrialNumber: trialNum,
		Status:      status,
		DurationMs:  time.Since(startTime).Milliseconds(),
		Verdicts:    verdicts,
		Consensus:   *result,
	}
}

// resolvePromptOverride renders the spec's prompt template, when set.
func (r *Runner) resolvePromptOverride(claim *models.Claim, trialNum int) (string, error) {
	spec := r.cfg.Spec()
	if spec.Config.PromptTemplate == "" {
		return "", nil
	}

	tmplCtx := &template.Context{
		ClaimName: claim.Name(),
		Trial:     trialNum,
		Timestamp: time.Now().Format(time.RFC3339),
		Vars:      make(map[string]string),
	}
	for k, v := range spec.Inputs {
		tmplCtx.Vars[k] = v
	}
	tmplCtx.Vars["statement"] = claim.Statement
	tmplCtx.Vars["context"] = claim.Context

	rendered, err := template.Render(spec.Config.PromptTemplate, tmplCtx)
	if err != nil {
		return "", fmt.Errorf("resolving prompt template: %w", err)
	}
	return rendered, nil
}

// selectProviders honors a claim's provider restriction list.
func (r *Runner) selectProviders(claim *models.Claim) []providers.Provider {
	if len(claim.Providers) == 0 {
		return r.providers
	}

	wanted := make(map[string]bool, len(claim.Providers))
	for _, name := range claim.Providers {
		wanted[name] = true
	}

	selected := make([]providers.Provider, 0, len(claim.Providers))
	for _, p := range r.providers {
		if wanted[p.Name()] {
			selected = append(selected, p)
		}
	}
	return selected
}

// emitProviderVerdicts emits one event per provider (sorted for stable output).
func (r *Runner) emitProviderVerdicts(claim *models.Claim, verdicts map[string]models.ProviderVerdict) {
	names := make([]string, 0, len(verdicts))
	for name := range verdicts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := verdicts[name]
		r.notifyProgress(ProgressEvent{
			EventType:  EventProviderVerdict,
			ClaimName:  claim.Name(),
			DurationMs: v.DurationMs,
			Details: map[string]any{
				"provider":   name,
				"verdict":    string(v.Verdict),
				"confidence": v.Confidence,
				"failed":     v.Failed(),
				"error":      v.ErrorMsg,
			},
		})
	}
}

func (r *Runner) buildClaimOutcome(claim *models.Claim, trials []models.TrialResult) models.ClaimOutcome {
	stats := r.computeClaimStats(trials)

	// A claim passes only when every trial's consensus matched the expected verdict.
	status := models.StatusPassed
	verdict := models.VerdictUncertain
	for _, trial := range trials {
		if trial.Status == models.StatusError {
			status = models.StatusError
			break
		}
		if trial.Status != models.StatusPassed {
			status = models.StatusFailed
		}
	}
	if len(trials) > 0 && status != models.StatusError {
		verdict = trials[len(trials)-1].Consensus.Verdict
	}

	return models.ClaimOutcome{
		ClaimID:     claim.ClaimID,
		DisplayName: claim.Name(),
		Category:    claim.Category,
		Status:      status,
		Verdict:     verdict,
		Expected:    claim.ExpectedVerdict(),
		Trials:      trials,
		Stats:       stats,
	}
}

func (r *Runner) computeClaimStats(trials []models.TrialResult) *models.ClaimStats {
	if len(trials) == 0 {
		return nil
	}

	passed := 0
	totalScore := 0.0
	minScore := math.Inf(1)
	maxScore := math.Inf(-1)
	totalDuration := int64(0)
	scores := make([]float64, 0, len(trials))

	for _, trial := range trials {
		score := trial.Consensus.Score
		totalScore += score
		scores = append(scores, score)

		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}

		if trial.Status == models.StatusPassed {
			passed++
		}

		totalDuration += trial.DurationMs
	}

	stats := &models.ClaimStats{
		PassRate:      float64(passed) / float64(len(trials)),
		AvgScore:      totalScore / float64(len(trials)),
		MinScore:      minScore,
		MaxScore:      maxScore,
		StdDevScore:   models.ComputeStdDev(scores),
		AvgDurationMs: totalDuration / int64(len(trials)),
	}

	stats.Flaky = stats.PassRate > 0 && stats.PassRate < 1

	if len(trials) >= 2 {
		ci := statistics.BootstrapCI(scores, 0.95)
		stats.BootstrapCI = &ci
		stats.CI95Lo = ci.Lower
		stats.CI95Hi = ci.Upper
	}

	return stats
}

func (r *Runner) buildOutcome(claimOutcomes []models.ClaimOutcome, runEvidence []models.Evidence, startTime time.Time) *models.ValidationOutcome {
	spec := r.cfg.Spec()

	supported := 0
	refuted := 0
	uncertain := 0
	errors := 0
	passed := 0

	for _, co := range claimOutcomes {
		if co.Status == models.StatusError {
			errors++
			continue
		}
		if co.Status == models.StatusPassed {
			passed++
		}
		switch co.Verdict {
		case models.VerdictSupported:
			supported++
		case models.VerdictRefuted:
			refuted++
		default:
			uncertain++
		}
	}

	totalClaims := len(claimOutcomes)
	passRate := 0.0
	if totalClaims > 0 {
		passRate = float64(passed) / float64(totalClaims)
	}

	aggregateScore, minScore, maxScore, stdDev := computeDigestScoreStats(claimOutcomes)

	digest := models.OutcomeDigest{
		TotalClaims:    totalClaims,
		Supported:      supported,
		Refuted:        refuted,
		Uncertain:      uncertain,
		Errors:         errors,
		PassRate:       passRate,
		AggregateScore: aggregateScore,
		MinScore:       minScore,
		MaxScore:       maxScore,
		StdDev:         stdDev,
		EvidenceScore:  r.evidenceStrength,
		DurationMs:     time.Since(startTime).Milliseconds(),
	}

	// Digest-level bootstrap CI over per-claim average scores when multi-trial
	if spec.Config.TrialsPerClaim > 1 && len(claimOutcomes) > 0 {
		perClaimScores := make([]float64, 0, len(claimOutcomes))
		for _, co := range claimOutcomes {
			if co.Stats != nil {
				perClaimScores = append(perClaimScores, co.Stats.AvgScore)
			}
		}
		if len(perClaimScores) >= 2 {
			ci := statistics.BootstrapCI(perClaimScores, 0.95)
			digest.Statistics = &models.StatisticalSummary{
				BootstrapCI:   ci,
				IsSignificant: statistics.IsSignificant(ci),
			}
		}
	}

	providerNames := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		providerNames = append(providerNames, p.Name())
	}

	return &models.ValidationOutcome{
		RunID:     uuid.NewString(),
		SpecName:  spec.Name,
		Timestamp: startTime,
		Setup: models.OutcomeSetup{
			TrialsPerClaim:   spec.Config.TrialsPerClaim,
			Providers:        providerNames,
			ConsensusMethod:  spec.Consensus.Method,
			Quorum:           spec.Consensus.Quorum,
			TimeoutSec:       spec.Config.TimeoutSec,
			SkippedProviders: r.skipped,
		},
		Digest:        digest,
		Evidence:      runEvidence,
		ClaimOutcomes: claimOutcomes,
		Metadata:      make(map[string]any),
	}
}

// computeDigestScoreStats returns mean, min, max, and stddev of per-claim average scores.
func computeDigestScoreStats(claimOutcomes []models.ClaimOutcome) (float64, float64, float64, float64) {
	if len(claimOutcomes) == 0 {
		return 0.0, 0.0, 0.0, 0.0
	}

	scores := make([]float64, 0, len(claimOutcomes))
	total := 0.0
	minScore := 1.0
	maxScore := 0.0

	for _, co := range claimOutcomes {
		s := 0.0
		if co.Stats != nil {
			s = co.Stats.AvgScore
		}
		scores = append(scores, s)
		total += s
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	return total / float64(len(scores)), minScore, maxScore, models.ComputeStdDev(scores)
}
