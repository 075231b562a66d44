// Package cmd defines the CLI commands for the catalog-ingest executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-ingest",
		Short: "Ingests the game catalog into Postgres.",
		Long: `catalog-ingest pulls the paginated game catalog and its reference data
(publishers, developers, genres, tags, features, languages) from the upstream
source and reconciles them into Postgres with normalized many-to-many
relationships. Every mutation is idempotent, so interrupted runs can be
resumed safely.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")

	cmd.AddCommand(newPopulateCmd())
	cmd.AddCommand(newEnrichCmd())

	return cmd
}

// Execute runs the root command with signal-aware cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
