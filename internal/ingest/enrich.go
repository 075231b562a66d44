package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
	"github.com/gamepulse/catalog-ingest/internal/fetch"
	"github.com/gamepulse/catalog-ingest/internal/metrics"
	"github.com/gamepulse/catalog-ingest/internal/progress"
	"github.com/gamepulse/catalog-ingest/internal/publish"
)

// Outcome classifies one record's enrichment.
type Outcome string

// Enrichment outcomes.
const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Enricher applies detail enrichment to one record at a time. The detail
// fetcher is passed per call so the browser orchestrator's workers can use
// their own sessions while the API path uses a single shared client.
type Enricher struct {
	store     Store
	rec       *Reconciler
	publisher publish.Publisher
	topic     string
	tracker   *progress.Tracker
	logger    *zap.Logger
}

// NewEnricher builds an Enricher. publisher may be nil to disable events.
func NewEnricher(
	store Store,
	rec *Reconciler,
	publisher publish.Publisher,
	topic string,
	tracker *progress.Tracker,
	logger *zap.Logger,
) *Enricher {
	return &Enricher{
		store:     store,
		rec:       rec,
		publisher: publisher,
		topic:     topic,
		tracker:   tracker,
		logger:    logger,
	}
}

// Run enriches every stored game sequentially through the given fetcher,
// pausing between records. Per-record failures are contained; only a store
// enumeration failure aborts the run.
func (e *Enricher) Run(ctx context.Context, fetcher fetch.DetailFetcher, recordDelay time.Duration, pause fetch.Pauser) error {
	games, err := e.store.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("enumerate games: %w", err)
	}
	e.logger.Info("found games to enrich", zap.Int("count", len(games)))

	for _, ref := range games {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.EnrichOne(ctx, fetcher, ref)
		pause.Pause(ctx, recordDelay)
	}

	snap := e.tracker.Snapshot()
	e.logger.Info("enrichment finished",
		zap.Int64("processed", snap.Processed),
		zap.Int64("skipped", snap.Skipped),
		zap.Int64("failed", snap.Failed),
	)
	return nil
}

// EnrichOne applies the guard, detail fetch, and reconciliation for one
// record. Failures are logged and reflected in the outcome, never
// propagated: a bad record must not halt a batch.
func (e *Enricher) EnrichOne(ctx context.Context, fetcher fetch.DetailFetcher, ref catalog.GameRef) Outcome {
	e.tracker.MarkProcessed()

	done, err := e.store.HasDetails(ctx, ref.ID)
	if err != nil {
		return e.fail(ref, "detail guard check failed", err)
	}
	if done {
		e.logger.Info("game already enriched",
			zap.Int64("game_id", ref.ID),
			zap.String("name", ref.Name),
		)
		e.tracker.MarkSkipped()
		metrics.ObserveEnrichment(string(OutcomeSkipped))
		return OutcomeSkipped
	}

	details, err := fetcher.Details(ctx, ref.ID)
	if err != nil {
		return e.fail(ref, "detail fetch failed", err)
	}

	outcome := OutcomeUpdated
	if err := e.rec.ReconcileDetails(ctx, ref.ID, details); err != nil {
		// Individual categories already logged; the record stays
		// incomplete and a re-run will pick it up again.
		outcome = OutcomePartial
		e.tracker.MarkFailed()
	} else {
		e.logger.Info("enriched game",
			zap.Int64("game_id", ref.ID),
			zap.String("name", ref.Name),
		)
	}
	metrics.ObserveEnrichment(string(outcome))
	e.publishEvent(ctx, ref, outcome)
	return outcome
}

func (e *Enricher) fail(ref catalog.GameRef, msg string, err error) Outcome {
	e.logger.Error(msg,
		zap.Int64("game_id", ref.ID),
		zap.String("name", ref.Name),
		zap.Error(err),
	)
	e.tracker.MarkFailed()
	metrics.ObserveEnrichment(string(OutcomeFailed))
	return OutcomeFailed
}

func (e *Enricher) publishEvent(ctx context.Context, ref catalog.GameRef, outcome Outcome) {
	if e.publisher == nil || e.topic == "" {
		return
	}
	event := publish.NewEvent(publish.KindEnriched, ref.ID, ref.Name, string(outcome))
	if _, err := e.publisher.Publish(ctx, e.topic, event); err != nil {
		e.logger.Warn("publish enrich event failed",
			zap.Int64("game_id", ref.ID),
			zap.Error(err),
		)
	}
}
