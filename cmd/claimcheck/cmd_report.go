package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/mwhelan/claimcheck/internal/reporting"
)

func newReportCommand() *cobra.Command {
	var (
		reportFormat string
		reportJUnit  string
	)

	cmd := &cobra.Command{
		Use:   "report <results.json>",
		Short: "Render a report from a saved run outcome",
		Long: `Render a report from a run outcome saved with 'claimcheck run --output'.

Formats:
  default          the same summary 'claimcheck run' prints
  interpret        a plain-language interpretation of the results
  github-comment   markdown suitable for a GitHub PR comment

Use --junit to additionally write a JUnit XML report for CI systems.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := loadOutcome(args[0])
			if err != nil {
				return err
			}

			switch reportFormat {
			case "default":
				printSummary(outcome)
			case "interpret":
				fmt.Print(reporting.FormatSummaryReport(outcome))
			case "github-comment":
				fmt.Print(FormatGitHubComment(outcome))
			default:
				return fmt.Errorf("unknown report format: %s (supported: default, interpret, github-comment)", reportFormat)
			}

			if reportJUnit != "" {
				if err := reporting.WriteJUnitXML(outcome, reportJUnit); err != nil {
					return fmt.Errorf("failed to write JUnit report: %w", err)
				}
				fmt.Printf("JUnit report saved to: %s\n", reportJUnit)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportFormat, "format", "default", "Report format: default, interpret, github-comment")
	cmd.Flags().StringVar(&reportJUnit, "junit", "", "Write a JUnit XML report to this path")

	return cmd
}

func loadOutcome(path string) (*models.ValidationOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}

	var outcome models.ValidationOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("parsing results file %s: %w", path, err)
	}
	return &outcome, nil
}
