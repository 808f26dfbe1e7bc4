package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwhelan/claimcheck/internal/credentials"
)

func newProvidersCommand() *cobra.Command {
	var providersEnvFile string

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show which provider API keys are configured",
		Long: `Show which provider API keys are configured.

Each provider kind reads its key from an environment variable, optionally
seeded from a .env file. Key values are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.Load(providersEnvFile); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %-20s %s\n", "Provider", "Environment", "Status") //nolint:errcheck

			for _, st := range credentials.Status() {
				status := "✗ missing"
				if st.Configured {
					status = "✓ configured"
				}
				fmt.Fprintf(w, "%-12s %-20s %s\n", st.Kind, st.EnvVar, status) //nolint:errcheck
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nmock        (no key needed)") //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&providersEnvFile, "env-file", "", "Path to a .env file with provider API keys (default: .env)")

	return cmd
}
