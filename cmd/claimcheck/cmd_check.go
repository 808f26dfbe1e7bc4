package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/mwhelan/claimcheck/internal/validation"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <spec.yaml>",
		Short: "Check a spec and its claim files before running",
		Long: `Check a spec and its claim files before running.

Validates the spec YAML against the spec schema, resolves its claim
globs, and validates each YAML claim file against the claim schema.
Markdown claims are validated when loaded by 'claimcheck run'.

Schema validation catches misspelled fields and out-of-range values
with field paths, before any provider is contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: runCheckE,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

type checkJSONReport struct {
	Spec        string              `json:"spec"`
	Valid       bool                `json:"valid"`
	SpecErrors  []string            `json:"specErrors,omitempty"`
	ClaimErrors map[string][]string `json:"claimErrors,omitempty"`
}

func runCheckE(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", format)
	}

	specPath := args[0]

	specErrs, claimErrs, err := validation.ValidateSpecFile(specPath)
	if err != nil {
		return err
	}
	valid := len(specErrs) == 0 && len(claimErrs) == 0

	// Schema-valid specs can still carry semantic mistakes (quorum above
	// provider count, inverted thresholds). LoadValidationSpec catches those.
	if valid {
		if _, err := models.LoadValidationSpec(specPath); err != nil {
			specErrs = append(specErrs, err.Error())
			valid = false
		}
	}

	if format == "json" {
		report := checkJSONReport{
			Spec:        specPath,
			Valid:       valid,
			SpecErrors:  specErrs,
			ClaimErrors: claimErrs,
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), buf.String()) //nolint:errcheck
	} else {
		printCheckReport(cmd, specPath, specErrs, claimErrs)
	}

	if !valid {
		return fmt.Errorf("spec validation failed for %s", specPath)
	}
	return nil
}

//nolint:errcheck
func printCheckReport(cmd *cobra.Command, specPath string, specErrs []string, claimErrs map[string][]string) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Checking %s\n\n", specPath)

	if len(specErrs) == 0 {
		fmt.Fprintln(w, "✓ spec schema valid")
	} else {
		fmt.Fprintf(w, "✗ spec: %d error(s)\n", len(specErrs))
		for _, e := range specErrs {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}

	if len(claimErrs) == 0 {
		fmt.Fprintln(w, "✓ claim files valid")
		return
	}

	files := make([]string, 0, len(claimErrs))
	for file := range claimErrs {
		files = append(files, file)
	}
	sort.Strings(files)

	fmt.Fprintf(w, "✗ claims: %d file(s) with errors\n", len(files))
	for _, file := range files {
		fmt.Fprintf(w, "  %s:\n", file)
		for _, e := range claimErrs[file] {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
}
