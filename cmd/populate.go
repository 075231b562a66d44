package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gamepulse/catalog-ingest/internal/fetch"
	"github.com/gamepulse/catalog-ingest/internal/ingest"
	"github.com/gamepulse/catalog-ingest/internal/progress"
)

func newPopulateCmd() *cobra.Command {
	var startPage int

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Ingests the primary game records from the list endpoint",
		Long: `Walks every page of the upstream list endpoint, inserts games that are
not yet stored, and reconciles their publisher and developer links. Already
present games are skipped, so interrupted runs can resume with --start-page
without duplicating rows.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPopulate(cmd, startPage)
		},
	}

	cmd.Flags().IntVar(&startPage, "start-page", 0, "list page to resume from")
	return cmd
}

func runPopulate(cmd *cobra.Command, startPage int) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tracker := progress.NewTracker("populate")
	a.startOpsServer(ctx, tracker)

	client, err := fetch.NewAPIClient(fetch.APIConfig{
		BaseURL:   a.cfg.API.BaseURL,
		PageSize:  a.cfg.API.PageSize,
		UserAgent: a.cfg.API.UserAgent,
		Timeout:   a.cfg.API.Timeout,
	}, a.policy, a.pause, a.logger)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	reader := fetch.NewPageReader(client, a.cfg.API.PageDelay, a.pause, a.logger)
	reconciler := ingest.NewReconciler(a.store, a.logger)
	populator := ingest.NewPopulator(
		reader,
		a.store,
		reconciler,
		a.publisher,
		a.topic(),
		tracker,
		a.logger,
	)

	if err := populator.Run(ctx, startPage); err != nil {
		return fmt.Errorf("populate catalog: %w", err)
	}
	return nil
}
