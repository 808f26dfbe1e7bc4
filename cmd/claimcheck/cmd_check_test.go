package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkSpecYAML = `name: release-claims
providers:
  - type: mock
    name: judge-a
  - type: mock
    name: judge-b
consensus:
  method: weighted_mean
  quorum: 2
claims:
  - "claims/*.yaml"
`

func writeCheckSuite(t *testing.T, claimYAML string) string {
	t.Helper()
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(checkSpecYAML), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "claims"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claims", "claim.yaml"), []byte(claimYAML), 0o600))
	return specPath
}

func TestCheckCommand_ValidSuite(t *testing.T) {
	specPath := writeCheckSuite(t, "statement: uptime exceeds 99.9%\n")

	var buf bytes.Buffer
	cmd := newCheckCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{specPath})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "spec schema valid")
	assert.Contains(t, buf.String(), "claim files valid")
}

func TestCheckCommand_InvalidClaim(t *testing.T) {
	specPath := writeCheckSuite(t, "statement: uptime exceeds 99.9%\nexpected: maybe\n")

	var buf bytes.Buffer
	cmd := newCheckCommand()
	cmd.SetOut(&buf)
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{specPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec validation failed")
	assert.Contains(t, buf.String(), "claim.yaml")
}

func TestCheckCommand_InvalidSpec(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte("name: broken\nproviders:\n  - type: not-a-provider\n"), 0o600))

	var buf bytes.Buffer
	cmd := newCheckCommand()
	cmd.SetOut(&buf)
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{specPath})

	require.Error(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✗ spec")
}

func TestCheckCommand_JSONOutput(t *testing.T) {
	specPath := writeCheckSuite(t, "statement: uptime exceeds 99.9%\n")

	var buf bytes.Buffer
	cmd := newCheckCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{specPath, "--format", "json"})
	require.NoError(t, cmd.Execute())

	var report checkJSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, specPath, report.Spec)
}

func TestCheckCommand_BadFormat(t *testing.T) {
	cmd := newCheckCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"spec.yaml", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
