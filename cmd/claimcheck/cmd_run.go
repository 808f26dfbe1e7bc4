package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhelan/claimcheck/internal/config"
	"github.com/mwhelan/claimcheck/internal/credentials"
	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/mwhelan/claimcheck/internal/orchestration"
	"github.com/mwhelan/claimcheck/internal/reporting"
	"github.com/mwhelan/claimcheck/internal/store"
)

var (
	claimsDir         string
	outputPath        string
	verbose           bool
	claimFilters      []string
	tagFilters        []string
	parallel          bool
	workers           int
	interpret         bool
	format            string
	junitPath         string
	disableCache      bool
	runCacheDir       string
	envFile           string
	providerOverrides []string
)

// providerResult pairs a provider name with its solo validation outcome.
type providerResult struct {
	provider string
	outcome  *models.ValidationOutcome
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <spec.yaml>",
		Short: "Run a claim validation spec",
		Long: `Run a claim validation spec.

The spec file defines the providers to consult, the consensus rules, and
the claims to validate. Claim files are resolved relative to the spec file
unless --claims-dir is given.

Provider API keys are read from the environment, optionally seeded from a
.env file (see --env-file). The mock provider needs no key.

With --provider repeated, the run executes once per named provider and
prints a comparison table, useful for judging providers against each other.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&claimsDir, "claims-dir", "", "Directory claim globs resolve against (default: spec directory)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for results")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().StringArrayVar(&claimFilters, "claim", nil, "Filter claims by name/ID glob pattern (can be repeated)")
	cmd.Flags().StringArrayVar(&tagFilters, "tag", nil, "Filter claims by tag glob pattern (can be repeated)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Validate claims concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (default: 4, requires --parallel)")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, github-comment")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable verdict caching")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", ".claimcheck", "Directory for the run database and verdict cache")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file with provider API keys (default: .env)")
	cmd.Flags().StringArrayVar(&providerOverrides, "provider", nil, "Run with a single named provider from the spec (can be repeated for comparison)")

	return cmd
}

func runCommandE(_ *cobra.Command, args []string) error {
	specPath := args[0]

	// Seed provider keys before the spec is loaded so setup failures are
	// about the spec, not the environment.
	if err := credentials.Load(envFile); err != nil {
		return err
	}

	// Load spec
	spec, err := models.LoadValidationSpec(specPath)
	if err != nil {
		return fmt.Errorf("failed to load spec: %w", err)
	}

	// CLI flags override spec config
	if parallel {
		spec.Config.Concurrent = true
	}
	if workers > 0 {
		spec.Config.Workers = workers
	}

	// The run database holds persisted outcomes and the verdict cache.
	// --no-cache only disables the cache; outcomes are always persisted.
	absCacheDir, err := filepath.Abs(runCacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}
	db, err := store.Open(store.Config{Path: absCacheDir})
	if err != nil {
		return fmt.Errorf("opening run database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	// No overrides: the spec's full provider set in one run.
	if len(providerOverrides) == 0 {
		_, err := runSingleValidation(spec, specPath, db)
		return err
	}

	// Run the validation once per named provider, collecting results
	var allResults []providerResult
	var lastErr error

	for _, name := range providerOverrides {
		soloSpec, err := soloProviderSpec(spec, name)
		if err != nil {
			return err
		}

		outcome, err := runSingleValidation(soloSpec, specPath, db)
		if err != nil {
			var failureErr *ValidationFailureError
			if errors.As(err, &failureErr) {
				// Claim failures are recorded but don't stop a comparison run
				allResults = append(allResults, providerResult{provider: name, outcome: outcome})
				lastErr = err
				continue
			}
			return err
		}
		allResults = append(allResults, providerResult{provider: name, outcome: outcome})
	}

	// Print comparison table when multiple providers were evaluated
	if len(providerOverrides) > 1 && len(allResults) > 0 {
		printProviderComparison(allResults)
	}

	return lastErr
}

// soloProviderSpec returns a copy of the spec restricted to one named
// provider, with the quorum clamped accordingly.
func soloProviderSpec(spec *models.ValidationSpec, name string) (*models.ValidationSpec, error) {
	for i := range spec.Providers {
		if spec.Providers[i].Name() != name {
			continue
		}
		solo := *spec
		solo.Providers = []models.ProviderConfig{spec.Providers[i]}
		if solo.Consensus.Quorum > 1 {
			solo.Consensus.Quorum = 1
		}
		return &solo, nil
	}
	return nil, fmt.Errorf("provider %q is not declared in the spec (have: %s)",
		name, strings.Join(providerNames(spec), ", "))
}

// runSingleValidation executes one validation run and returns the outcome.
// It prints the summary and saves output when --output is set.
func runSingleValidation(spec *models.ValidationSpec, specPath string, db *store.Store) (*models.ValidationOutcome, error) {
	// Get spec directory for resolving relative paths
	specDir := filepath.Dir(specPath)
	if !filepath.IsAbs(specDir) {
		absSpecDir, err := filepath.Abs(specDir)
		if err == nil {
			specDir = absSpecDir
		}
	}

	cfgOpts := []config.Option{
		config.WithSpecDir(specDir),
		config.WithVerbose(verbose),
		config.WithOutputPath(outputPath),
		config.WithNoCache(disableCache),
	}
	if claimsDir != "" {
		absClaimsDir, err := filepath.Abs(claimsDir)
		if err != nil {
			return nil, fmt.Errorf("resolving claims directory: %w", err)
		}
		cfgOpts = append(cfgOpts, config.WithClaimsDir(absClaimsDir))
	}
	cfg := config.NewValidationConfig(spec, cfgOpts...)

	runner := orchestration.NewRunner(cfg,
		orchestration.WithClaimFilters(claimFilters...),
		orchestration.WithTagFilters(tagFilters...),
		orchestration.WithStore(db),
	)

	// Add progress listener
	if verbose {
		runner.OnProgress(verboseProgressListener)
	} else {
		runner.OnProgress(simpleProgressListener)
	}

	ctx := context.Background()

	fmt.Printf("Running validation: %s\n", spec.Name)
	fmt.Printf("Providers: %s\n", strings.Join(providerNames(spec), ", "))
	fmt.Printf("Consensus: %s (quorum %d)\n", spec.Consensus.Method, spec.Consensus.Quorum)
	if spec.Config.TrialsPerClaim > 1 {
		fmt.Printf("Trials: %d per claim\n", spec.Config.TrialsPerClaim)
	}
	if spec.Config.Concurrent {
		w := spec.Config.Workers
		if w <= 0 {
			w = 4
		}
		fmt.Printf("Parallel: %d workers\n", w)
	}
	fmt.Println()

	outcome, err := runner.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Print results based on format
	switch format {
	case "github-comment":
		fmt.Print(FormatGitHubComment(outcome))
	case "default":
		printSummary(outcome)

		if interpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummaryReport(outcome))
		}
	default:
		return nil, fmt.Errorf("unknown output format: %s (supported: default, github-comment)", format)
	}

	if junitPath != "" {
		if err := reporting.WriteJUnitXML(outcome, junitPath); err != nil {
			return nil, fmt.Errorf("failed to write JUnit report: %w", err)
		}
		fmt.Printf("JUnit report saved to: %s\n", junitPath)
	}

	// Save output for single-provider runs; comparison runs get per-provider files
	if outputPath != "" {
		savePath := outputPath
		if len(providerOverrides) > 1 {
			ext := filepath.Ext(outputPath)
			base := strings.TrimSuffix(outputPath, ext)
			savePath = fmt.Sprintf("%s_%s%s", base, sanitizeProviderName(spec.Providers[0].Name()), ext)
		}
		if err := saveOutcome(outcome, savePath); err != nil {
			return nil, fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", savePath)
	}

	// Return claim failures as an error so main can map them to exit code 1
	failed := countFailed(outcome)
	if failed > 0 || outcome.Digest.Errors > 0 {
		return outcome, &ValidationFailureError{
			Message: fmt.Sprintf("validation completed with %d failed claim(s) and %d error(s)", failed, outcome.Digest.Errors),
		}
	}

	return outcome, nil
}

func providerNames(spec *models.ValidationSpec) []string {
	names := make([]string, 0, len(spec.Providers))
	for i := range spec.Providers {
		names = append(names, spec.Providers[i].Name())
	}
	return names
}

// countFailed returns the number of claims whose consensus did not match
// the expected verdict. Errored claims are counted separately in the digest.
func countFailed(outcome *models.ValidationOutcome) int {
	failed := 0
	for _, co := range outcome.ClaimOutcomes {
		if co.Status == models.StatusFailed {
			failed++
		}
	}
	return failed
}

// printProviderComparison renders a comparison table for multi-provider runs.
func printProviderComparison(results []providerResult) {
	fmt.Println()
	fmt.Println("═" + strings.Repeat("═", 54))
	fmt.Println(" PROVIDER COMPARISON")
	fmt.Println("═" + strings.Repeat("═", 54))
	fmt.Println()
	fmt.Printf("%-20s %-8s %-10s %s\n", "Provider", "Score", "Pass Rate", "Duration")
	fmt.Println("─" + strings.Repeat("─", 54))

	for _, pr := range results {
		score := 0.0
		passRate := 0.0
		durationMs := int64(0)
		if pr.outcome != nil {
			score = pr.outcome.Digest.AggregateScore
			passRate = pr.outcome.Digest.PassRate * 100
			durationMs = pr.outcome.Digest.DurationMs
		}
		duration := time.Duration(durationMs) * time.Millisecond
		passStr := fmt.Sprintf("%.1f%%", passRate)
		fmt.Printf("%-20s %-8.2f %-10s %v\n", pr.provider, score, passStr, duration)
	}
	fmt.Println()
}

// sanitizeProviderName replaces characters that are invalid in filenames.
func sanitizeProviderName(name string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	return r.Replace(name)
}

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventRunStart:
		fmt.Printf("Starting validation with %d claim(s)...\n\n", event.TotalClaims)
	case orchestration.EventEvidenceComplete:
		probes, _ := event.Details["probes"].(int)
		if probes > 0 {
			ok, _ := event.Details["ok"].(int)
			strength, _ := event.Details["strength"].(float64)
			duration := time.Duration(event.DurationMs) * time.Millisecond
			fmt.Printf("Evidence: %d/%d probe(s) ok, strength=%.2f (%v)\n\n", ok, probes, strength, duration)
		}
	case orchestration.EventClaimStart:
		fmt.Printf("[%d/%d] Validating claim: %s\n", event.ClaimNum, event.TotalClaims, event.ClaimName)
	case orchestration.EventClaimCached:
		fmt.Printf("[%d/%d] Claim: %s [cached]\n\n", event.ClaimNum, event.TotalClaims, event.ClaimName)
	case orchestration.EventTrialStart:
		fmt.Printf("  Trial %d/%d...\n", event.TrialNum, event.TotalTrials)
	case orchestration.EventTrialComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  Trial %d/%d: %s (%v)\n", event.TrialNum, event.TotalTrials, event.Status, duration)
	case orchestration.EventProviderVerdict:
		provider := fmt.Sprintf("%v", event.Details["provider"])
		if failed, ok := event.Details["failed"].(bool); ok && failed {
			fmt.Printf("    [ERROR] %s: %v\n", provider, event.Details["error"])
			return
		}
		verdict := fmt.Sprintf("%v", event.Details["verdict"])
		confidence, _ := event.Details["confidence"].(float64)
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("    [%s] %s confidence=%.2f (%v)\n", strings.ToUpper(verdict), provider, confidence, duration)
	case orchestration.EventClaimComplete:
		fmt.Printf("  Claim %s: %s\n\n", event.ClaimName, event.Status)
	case orchestration.EventRunStopped:
		fmt.Printf("Run stopped: %v\n", event.Details["reason"])
	case orchestration.EventRunComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Validation completed in %v\n\n", duration)
	}
}

func simpleProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventClaimCached:
		fmt.Printf("✓ [%d/%d] %s [cached]\n", event.ClaimNum, event.TotalClaims, event.ClaimName)
	case orchestration.EventClaimComplete:
		status := "✓"
		if event.Status != models.StatusPassed {
			status = "✗"
		}
		fmt.Printf("%s [%d/%d] %s\n", status, event.ClaimNum, event.TotalClaims, event.ClaimName)
	}
}

func printSummary(outcome *models.ValidationOutcome) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" VALIDATION RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	digest := outcome.Digest

	fmt.Printf("Total Claims:    %d\n", digest.TotalClaims)
	fmt.Printf("Supported:       %d\n", digest.Supported)
	fmt.Printf("Refuted:         %d\n", digest.Refuted)
	fmt.Printf("Uncertain:       %d\n", digest.Uncertain)
	fmt.Printf("Errors:          %d\n", digest.Errors)
	fmt.Printf("Pass Rate:       %.1f%%\n", digest.PassRate*100)
	fmt.Printf("Aggregate Score: %.2f\n", digest.AggregateScore)
	fmt.Printf("Min Score:       %.2f\n", digest.MinScore)
	fmt.Printf("Max Score:       %.2f\n", digest.MaxScore)
	fmt.Printf("Std Dev:         %.4f\n", digest.StdDev)
	if len(outcome.Evidence) > 0 {
		fmt.Printf("Evidence Score:  %.2f\n", digest.EvidenceScore)
	}

	duration := time.Duration(digest.DurationMs) * time.Millisecond
	fmt.Printf("Duration:        %v\n", duration)
	fmt.Println()

	// Per-claim breakdown
	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Println(" PER-CLAIM BREAKDOWN")
	fmt.Println("-" + strings.Repeat("-", 50))
	for _, co := range outcome.ClaimOutcomes {
		icon := "✓"
		if co.Status != models.StatusPassed {
			icon = "✗"
		}
		fmt.Printf("  %s %s [%s → %s]\n", icon, co.DisplayName, co.Verdict, co.Status)
		if co.Stats != nil {
			fmt.Printf("      pass_rate=%.1f%%  avg=%.2f  min=%.2f  max=%.2f  stddev=%.4f  avg_dur=%dms\n",
				co.Stats.PassRate*100, co.Stats.AvgScore,
				co.Stats.MinScore, co.Stats.MaxScore,
				co.Stats.StdDevScore, co.Stats.AvgDurationMs)
		}
	}
	fmt.Println()

	// Show failed claims with the provider verdicts behind the consensus
	failed := countFailed(outcome)
	if failed > 0 || digest.Errors > 0 {
		fmt.Println("Failed Claims:")
		for _, co := range outcome.ClaimOutcomes {
			if co.Status == models.StatusPassed {
				continue
			}
			fmt.Printf("  - %s (expected %s, consensus %s)\n", co.DisplayName, co.Expected, co.Verdict)

			if len(co.Trials) > 0 {
				last := co.Trials[len(co.Trials)-1]
				if last.ErrorMsg != "" {
					fmt.Printf("    • %s\n", last.ErrorMsg)
				}
				for _, v := range sortedVerdicts(last.Verdicts) {
					if v.Failed() {
						fmt.Printf("    • %s: error: %s\n", v.Provider, v.ErrorMsg)
						continue
					}
					fmt.Printf("    • %s: %s (%.2f) %s\n", v.Provider, v.Verdict, v.Confidence, v.Rationale)
				}
			}
		}
		fmt.Println()
	}

	// Show flaky claims
	var flakyClaims []models.ClaimOutcome
	for _, co := range outcome.ClaimOutcomes {
		if co.Stats != nil && co.Stats.Flaky {
			flakyClaims = append(flakyClaims, co)
		}
	}
	if len(flakyClaims) > 0 {
		fmt.Println("⚠ Flaky Claims (inconsistent verdicts across trials):")
		for _, co := range flakyClaims {
			fmt.Printf("  - %s  pass_rate=%.0f%%  score=%.2f±%.2f  CI95=[%.2f, %.2f]\n",
				co.DisplayName,
				co.Stats.PassRate*100,
				co.Stats.AvgScore,
				co.Stats.StdDevScore,
				co.Stats.CI95Lo,
				co.Stats.CI95Hi,
			)
		}
		fmt.Println()
	}
}

func saveOutcome(outcome *models.ValidationOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
