package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/fetch"
	"github.com/gamepulse/catalog-ingest/internal/ingest"
	"github.com/gamepulse/catalog-ingest/internal/progress"
)

func newEnrichCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fetches genre/tag/feature/language links for stored games",
		Long: `Enriches every stored game with its genre, tag, feature and language
links. With --mode api the detail endpoint is queried directly; with
--mode browser a pool of headless browser workers renders the game pages
through the proxy UI instead, for when direct access is unavailable. Games
that already have tag links are skipped, so re-runs only fill the gaps.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrich(cmd, mode)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "api", "detail retrieval mode: api or browser")
	return cmd
}

func runEnrich(cmd *cobra.Command, mode string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tracker := progress.NewTracker("enrich")
	a.startOpsServer(ctx, tracker)

	reconciler := ingest.NewReconciler(a.store, a.logger)
	enricher := ingest.NewEnricher(
		a.store,
		reconciler,
		a.publisher,
		a.topic(),
		tracker,
		a.logger,
	)

	switch mode {
	case "api":
		return runEnrichAPI(cmd, a, enricher)
	case "browser":
		return runEnrichBrowser(cmd, a, enricher)
	default:
		return fmt.Errorf("unknown mode %q: want api or browser", mode)
	}
}

func runEnrichAPI(cmd *cobra.Command, a *app, enricher *ingest.Enricher) error {
	client, err := fetch.NewAPIClient(fetch.APIConfig{
		BaseURL:   a.cfg.API.BaseURL,
		PageSize:  a.cfg.API.PageSize,
		UserAgent: a.cfg.API.UserAgent,
		Timeout:   a.cfg.API.Timeout,
	}, a.policy, a.pause, a.logger)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	if err := enricher.Run(cmd.Context(), client, a.cfg.API.DetailDelay, a.pause); err != nil {
		return fmt.Errorf("enrich catalog: %w", err)
	}
	return nil
}

func runEnrichBrowser(cmd *cobra.Command, a *app, enricher *ingest.Enricher) error {
	factory, err := fetch.NewBrowserFactory(fetch.BrowserConfig{
		ProxyURL:      a.cfg.Browser.ProxyURL,
		GameURLBase:   a.cfg.Browser.GameURLBase,
		UserAgent:     a.cfg.API.UserAgent,
		Headless:      a.cfg.Browser.Headless,
		NavTimeout:    a.cfg.Browser.NavTimeout,
		MarkerTimeout: a.cfg.Browser.MarkerTimeout,
	}, a.policy, a.pause, a.arch, a.logger)
	if err != nil {
		return fmt.Errorf("init browser factory: %w", err)
	}
	defer factory.Close()

	orchestrator, err := ingest.NewOrchestrator(ingest.OrchestratorConfig{
		Workers:         a.cfg.Browser.Workers,
		GamesPerSession: a.cfg.Browser.GamesPerSession,
		RecordDelay:     a.cfg.Browser.RecordDelay,
	}, a.store, factory, enricher, a.pause, a.logger)
	if err != nil {
		return err
	}

	results, err := orchestrator.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("enrich catalog: %w", err)
	}
	for _, res := range results {
		if res.Err != nil {
			a.logger.Warn("worker ended with session failures",
				zap.Int("worker", res.Worker),
				zap.Error(res.Err),
			)
		}
	}
	return nil
}
