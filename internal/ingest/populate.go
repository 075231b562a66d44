package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
	"github.com/gamepulse/catalog-ingest/internal/fetch"
	"github.com/gamepulse/catalog-ingest/internal/metrics"
	"github.com/gamepulse/catalog-ingest/internal/progress"
	"github.com/gamepulse/catalog-ingest/internal/publish"
)

// Populator runs the primary ingestion path: walk every list page, insert
// unseen games, and reconcile their publisher/developer links.
type Populator struct {
	reader    *fetch.PageReader
	store     Store
	rec       *Reconciler
	publisher publish.Publisher
	topic     string
	tracker   *progress.Tracker
	logger    *zap.Logger
}

// NewPopulator builds a Populator. publisher may be nil to disable events.
func NewPopulator(
	reader *fetch.PageReader,
	store Store,
	rec *Reconciler,
	publisher publish.Publisher,
	topic string,
	tracker *progress.Tracker,
	logger *zap.Logger,
) *Populator {
	return &Populator{
		reader:    reader,
		store:     store,
		rec:       rec,
		publisher: publisher,
		topic:     topic,
		tracker:   tracker,
		logger:    logger,
	}
}

// Run ingests every page from startPage onward. A page-fetch exhaustion is
// fatal (page order matters for resuming); per-record store failures are
// logged and the run continues.
func (p *Populator) Run(ctx context.Context, startPage int) error {
	err := p.reader.Read(ctx, startPage, p.handleBatch)
	if err != nil {
		return err
	}
	snap := p.tracker.Snapshot()
	p.logger.Info("catalog population finished",
		zap.Int64("processed", snap.Processed),
		zap.Int64("created", snap.Created),
		zap.Int64("skipped", snap.Skipped),
		zap.Int64("failed", snap.Failed),
	)
	return nil
}

func (p *Populator) handleBatch(ctx context.Context, games []catalog.Game) error {
	for _, game := range games {
		p.ingestOne(ctx, game)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Populator) ingestOne(ctx context.Context, game catalog.Game) {
	p.tracker.MarkProcessed()

	exists, err := p.store.GameExists(ctx, game.ID)
	if err != nil {
		p.fail(game, "game existence check failed", err)
		return
	}

	outcome := "skipped"
	if exists {
		p.logger.Info("game already exists",
			zap.Int64("game_id", game.ID),
			zap.String("name", game.Name),
		)
		p.tracker.MarkSkipped()
	} else {
		created, err := p.store.InsertGame(ctx, game)
		if err != nil {
			p.fail(game, "game insert failed", err)
			return
		}
		if created {
			outcome = "created"
			p.tracker.MarkCreated()
			p.logger.Info("added game",
				zap.Int64("game_id", game.ID),
				zap.String("name", game.Name),
			)
		} else {
			// Lost a race against another run; the row is there either way.
			p.tracker.MarkSkipped()
		}
	}
	metrics.ObserveGame(outcome)

	// Publisher/developer links are reconciled even for pre-existing games
	// so a partially ingested run repairs itself on re-run.
	partial := false
	for _, category := range catalog.ListCategories() {
		names := game.Publishers
		if category == catalog.CategoryDeveloper {
			names = game.Developers
		}
		if err := p.rec.Reconcile(ctx, game.ID, category, names); err != nil {
			p.logger.Error("category reconciliation failed",
				zap.Int64("game_id", game.ID),
				zap.Stringer("category", category),
				zap.Error(err),
			)
			partial = true
		}
	}
	if partial {
		p.tracker.MarkFailed()
	}

	p.publishEvent(ctx, game, outcome)
}

func (p *Populator) fail(game catalog.Game, msg string, err error) {
	p.logger.Error(msg,
		zap.Int64("game_id", game.ID),
		zap.String("name", game.Name),
		zap.Error(err),
	)
	p.tracker.MarkFailed()
}

func (p *Populator) publishEvent(ctx context.Context, game catalog.Game, outcome string) {
	if p.publisher == nil || p.topic == "" {
		return
	}
	event := publish.NewEvent(publish.KindIngested, game.ID, game.Name, outcome)
	if _, err := p.publisher.Publish(ctx, p.topic, event); err != nil {
		p.logger.Warn("publish ingest event failed",
			zap.Int64("game_id", game.ID),
			zap.Error(err),
		)
	}
}
