package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhelan/claimcheck/internal/models"
)

const runSpecYAML = `name: cli-claims
config:
  trials_per_claim: 1
  timeout_seconds: 30
providers:
  - type: mock
    name: judge-a
    config:
      verdict: supported
      confidence: 0.9
  - type: mock
    name: judge-b
    config:
      verdict: supported
      confidence: 0.8
consensus:
  method: weighted_mean
  quorum: 2
claims:
  - "claims/*.yaml"
`

func writeRunSuite(t *testing.T, claimYAML string) (specPath, cacheDir string) {
	t.Helper()
	dir := t.TempDir()
	specPath = filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(runSpecYAML), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "claims"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claims", "claim.yaml"), []byte(claimYAML), 0o600))
	return specPath, filepath.Join(dir, ".claimcheck")
}

func TestRunCommand_WritesOutput(t *testing.T) {
	specPath, cacheDir := writeRunSuite(t, `
id: uptime-sla
name: uptime SLA
statement: uptime exceeds 99.9%
`)
	outputFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--output", outputFile, "--cache-dir", cacheDir})
	require.NoError(t, cmd.Execute())

	outcome, err := loadOutcome(outputFile)
	require.NoError(t, err)

	assert.Equal(t, "cli-claims", outcome.SpecName)
	assert.Equal(t, 1, outcome.Digest.TotalClaims)
	assert.Equal(t, 1, outcome.Digest.Supported)
	assert.Equal(t, 1.0, outcome.Digest.PassRate)

	require.Len(t, outcome.ClaimOutcomes, 1)
	assert.Equal(t, models.StatusPassed, outcome.ClaimOutcomes[0].Status)
	assert.Equal(t, models.VerdictSupported, outcome.ClaimOutcomes[0].Verdict)
}

func TestRunCommand_FailedClaimReturnsFailureError(t *testing.T) {
	// The mocks support the claim, so a refuted expectation must fail.
	specPath, cacheDir := writeRunSuite(t, `
id: uptime-sla
name: uptime SLA
statement: uptime exceeds 99.9%
expected: refuted
`)

	cmd := newRunCommand()
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{specPath, "--cache-dir", cacheDir})

	err := cmd.Execute()
	require.Error(t, err)

	var failureErr *ValidationFailureError
	require.ErrorAs(t, err, &failureErr)
	assert.Contains(t, failureErr.Message, "1 failed claim(s)")
}

func TestRunCommand_ClaimFilterSelectsSubset(t *testing.T) {
	specPath, cacheDir := writeRunSuite(t, `
id: uptime-sla
name: uptime SLA
statement: uptime exceeds 99.9%
`)
	claimsDir := filepath.Dir(specPath)
	require.NoError(t, os.WriteFile(filepath.Join(claimsDir, "claims", "latency.yaml"), []byte(`
id: latency-p99
name: p99 latency
statement: p99 latency is under 100ms
`), 0o600))

	outputFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--claim", "latency-*", "--output", outputFile, "--cache-dir", cacheDir})
	require.NoError(t, cmd.Execute())

	outcome, err := loadOutcome(outputFile)
	require.NoError(t, err)
	require.Len(t, outcome.ClaimOutcomes, 1)
	assert.Equal(t, "latency-p99", outcome.ClaimOutcomes[0].ClaimID)
}

func TestRunCommand_MissingSpecIsAnError(t *testing.T) {
	cmd := newRunCommand()
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.yaml"), "--cache-dir", filepath.Join(t.TempDir(), "cache")})

	err := cmd.Execute()
	require.Error(t, err)

	var failureErr *ValidationFailureError
	assert.False(t, errors.As(err, &failureErr), "a missing spec is a config error, not a validation failure")
}

func TestRunCommand_JUnitReport(t *testing.T) {
	specPath, cacheDir := writeRunSuite(t, `
id: uptime-sla
name: uptime SLA
statement: uptime exceeds 99.9%
`)
	junitFile := filepath.Join(t.TempDir(), "junit.xml")

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--junit", junitFile, "--cache-dir", cacheDir})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(junitFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuites")
	assert.Contains(t, string(data), "uptime SLA")
}

func TestSoloProviderSpec(t *testing.T) {
	spec, err := models.LoadValidationSpec(writeSoloSpec(t))
	require.NoError(t, err)

	solo, err := soloProviderSpec(spec, "judge-b")
	require.NoError(t, err)
	require.Len(t, solo.Providers, 1)
	assert.Equal(t, "judge-b", solo.Providers[0].Name())
	assert.Equal(t, 1, solo.Consensus.Quorum)

	// The original spec is untouched.
	assert.Len(t, spec.Providers, 2)
	assert.Equal(t, 2, spec.Consensus.Quorum)

	_, err = soloProviderSpec(spec, "judge-z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "judge-z" is not declared`)
}

func writeSoloSpec(t *testing.T) string {
	t.Helper()
	specPath, _ := writeRunSuite(t, `
id: uptime-sla
name: uptime SLA
statement: uptime exceeds 99.9%
`)
	return specPath
}

func TestRunCommand_ProviderComparison(t *testing.T) {
	specPath, cacheDir := writeRunSuite(t, `
id: uptime-sla
name: uptime SLA
statement: uptime exceeds 99.9%
`)
	outputFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath,
		"--provider", "judge-a",
		"--provider", "judge-b",
		"--output", outputFile,
		"--cache-dir", cacheDir,
	})
	require.NoError(t, cmd.Execute())

	// Each provider run writes its own results file.
	for _, name := range []string{"judge-a", "judge-b"} {
		outcome, err := loadOutcome(filepath.Join(filepath.Dir(outputFile), "results_"+name+".json"))
		require.NoError(t, err)
		require.Equal(t, []string{name}, outcome.Setup.Providers)
		assert.Equal(t, 1, outcome.Digest.TotalClaims)
	}
}

func TestRunCommand_UnknownProviderOverride(t *testing.T) {
	specPath, cacheDir := writeRunSuite(t, `
id: uptime-sla
name: uptime SLA
statement: uptime exceeds 99.9%
`)

	cmd := newRunCommand()
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{specPath, "--provider", "judge-z", "--cache-dir", cacheDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not declared in the spec")
}
