package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mwhelan/claimcheck/internal/models"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new validation suite",
		Long: `Initialize a new validation suite with a compliant directory structure.

Creates a spec.yaml file, a claims/ directory with an example claim,
and a .env.example listing the provider API key variables.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: initCommandE,
	}

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	// Create the root directory if it doesn't exist
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	claimsDir := filepath.Join(dir, "claims")
	if err := os.MkdirAll(claimsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create claims directory: %w", err)
	}

	// Generate spec.yaml from ValidationSpec
	spec := models.ValidationSpec{
		SpecIdentity: models.SpecIdentity{
			Name:        "my-claims",
			Description: "Validation suite for my claims.",
		},
		Version: "1.0",
		Config: models.Config{
			TrialsPerClaim: 1,
			TimeoutSec:     60,
		},
		Providers: []models.ProviderConfig{
			{Kind: "mock", Identifier: "judge-a", Weight: 1.0},
			{Kind: "mock", Identifier: "judge-b", Weight: 1.0},
		},
		Consensus: models.ConsensusConfig{
			Method:        "weighted_mean",
			Quorum:        2,
			PassThreshold: 0.7,
			FailThreshold: 0.4,
		},
		Claims: []string{"claims/*.yaml"},
	}

	specData, err := yaml.Marshal(&spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	specPath := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(specPath, specData, 0o644); err != nil {
		return fmt.Errorf("failed to write spec.yaml: %w", err)
	}

	// Generate example claim
	claimContent := `id: example-claim-001
name: Example Claim
statement: |
  The service responds to health checks within 500ms.
  Replace this with your own claim.

category: performance
tags:
  - example

context: |
  Measured from the load balancer over the last 30 days.

expected: supported
`
	claimPath := filepath.Join(claimsDir, "example-claim.yaml")
	if err := os.WriteFile(claimPath, []byte(claimContent), 0o644); err != nil {
		return fmt.Errorf("failed to write example claim: %w", err)
	}

	// Generate .env.example so keys stay out of the spec
	envContent := `# Provider API keys. Copy to .env and fill in the ones you use.
# The mock provider needs no key.
OPENAI_API_KEY=
ANTHROPIC_API_KEY=
DEEPSEEK_API_KEY=
GLM_API_KEY=
GEMINI_API_KEY=
`
	envPath := filepath.Join(dir, ".env.example")
	if err := os.WriteFile(envPath, []byte(envContent), 0o644); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	// Print summary
	fmt.Fprintln(cmd.OutOrStdout(), "Initialized validation suite:") //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", specPath)               //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", claimPath)              //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", envPath)                //nolint:errcheck

	return nil
}
