package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwhelan/claimcheck/internal/store"
	"github.com/mwhelan/claimcheck/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var (
		port       int
		resultsDir string
		dbPath     string
		noBrowser  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation run dashboard",
		Long: `Serve a local web dashboard over completed validation runs.

By default runs are read from the run database that 'claimcheck run'
maintains (see --db). With --results-dir, outcome JSON files written via
'claimcheck run --output' are served instead.

The dashboard opens in your browser automatically unless --no-browser
is given. Stop the server with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := webserver.Config{
				Port:      port,
				NoBrowser: noBrowser,
			}

			if resultsDir != "" {
				cfg.ResultsDir = resultsDir
			} else {
				absDBPath, err := filepath.Abs(dbPath)
				if err != nil {
					return fmt.Errorf("resolving database path: %w", err)
				}
				db, err := store.Open(store.Config{Path: absDBPath})
				if err != nil {
					return fmt.Errorf("opening run database: %w", err)
				}
				defer db.Close() //nolint:errcheck
				cfg.DB = db
			}

			srv, err := webserver.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3000, "Port to listen on")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Serve outcome JSON files from this directory instead of the run database")
	cmd.Flags().StringVar(&dbPath, "db", ".claimcheck", "Run database directory")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the dashboard in a browser")

	return cmd
}
