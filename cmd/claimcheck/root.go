package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claimcheck",
		Short: "Claimcheck - multi-provider validation of factual claims",
		Long: `Claimcheck validates factual claims against multiple AI providers.

Each claim is scored independently by every configured provider, the
verdicts are aggregated into a weighted consensus, and the run fails
when a claim's consensus does not match its expected verdict.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newProvidersCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
