package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
	"github.com/gamepulse/catalog-ingest/internal/fetch"
	"github.com/gamepulse/catalog-ingest/internal/metrics"
)

// OrchestratorConfig controls the multi-worker browser enrichment mode.
type OrchestratorConfig struct {
	// Workers is the number of concurrent browser workers (and chunks).
	Workers int
	// GamesPerSession caps records processed before a session is recycled.
	GamesPerSession int
	// RecordDelay is the pacing pause between records within a worker.
	RecordDelay time.Duration
}

// Result summarizes one worker's chunk after it runs to completion.
type Result struct {
	Worker    int
	Processed int
	Skipped   int
	Failed    int
	// Err records the last session-acquisition failure, if any. Record
	// failures never appear here; they are contained per record.
	Err error
}

// Orchestrator partitions the stored games into disjoint contiguous chunks
// and runs one worker per chunk. Workers share nothing but the store, whose
// mutations are all idempotent, so no cross-worker coordination is needed.
type Orchestrator struct {
	cfg      OrchestratorConfig
	store    Store
	sessions fetch.SessionFactory
	enricher *Enricher
	pause    fetch.Pauser
	logger   *zap.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(
	cfg OrchestratorConfig,
	store Store,
	sessions fetch.SessionFactory,
	enricher *Enricher,
	pause fetch.Pauser,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0")
	}
	if cfg.GamesPerSession <= 0 {
		return nil, fmt.Errorf("games per session must be > 0")
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		enricher: enricher,
		pause:    pause,
		logger:   logger,
	}, nil
}

// Run enriches every stored game and blocks until all workers finish.
// There is no work stealing: a worker that finishes early stays idle.
func (o *Orchestrator) Run(ctx context.Context) ([]Result, error) {
	games, err := o.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate games: %w", err)
	}
	o.logger.Info("found games to enrich",
		zap.Int("count", len(games)),
		zap.Int("workers", o.cfg.Workers),
	)

	chunks := partition(games, o.cfg.Workers)
	results := make([]Result, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(worker int, chunk []catalog.GameRef) {
			defer wg.Done()
			results[worker] = o.runWorker(ctx, worker+1, chunk)
		}(i, chunk)
	}
	wg.Wait()

	var processed, skipped, failed int
	for _, res := range results {
		processed += res.Processed
		skipped += res.Skipped
		failed += res.Failed
	}
	o.logger.Info("browser enrichment finished",
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return results, nil
}

func (o *Orchestrator) runWorker(ctx context.Context, worker int, chunk []catalog.GameRef) Result {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	res := Result{Worker: worker}
	for start := 0; start < len(chunk); start += o.cfg.GamesPerSession {
		end := min(start+o.cfg.GamesPerSession, len(chunk))
		batch := chunk[start:end]

		o.logger.Info("worker starting session",
			zap.Int("worker", worker),
			zap.Int("batch_size", len(batch)),
		)
		handled, err := o.runSubBatch(ctx, batch, &res)
		if err != nil {
			// A dead session abandons this sub-batch; the next one gets
			// a fresh session, and a re-run repairs the gap. Records the
			// batch already handled keep their tally; only the remainder
			// is failed.
			o.logger.Error("worker session failed",
				zap.Int("worker", worker),
				zap.Error(err),
			)
			res.Err = err
			res.Failed += len(batch) - handled
		}
		if ctx.Err() != nil {
			break
		}
	}
	o.logger.Info("worker finished chunk",
		zap.Int("worker", worker),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res
}

// runSubBatch owns exactly one session; it is released even when record
// processing fails partway through. It returns how many records it handled
// so an aborted batch fails only the remainder.
func (o *Orchestrator) runSubBatch(ctx context.Context, batch []catalog.GameRef, res *Result) (int, error) {
	session, err := o.sessions.NewSession(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire session: %w", err)
	}
	defer session.Close()

	for i, ref := range batch {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		switch o.enricher.EnrichOne(ctx, session, ref) {
		case OutcomeSkipped:
			res.Skipped++
		case OutcomeFailed, OutcomePartial:
			res.Failed++
			res.Processed++
		default:
			res.Processed++
		}
		o.pause.Pause(ctx, o.cfg.RecordDelay)
	}
	return len(batch), nil
}

// partition splits refs into at most workers contiguous chunks of equal
// ceiling size. Chunks are disjoint and cover the whole input.
func partition(refs []catalog.GameRef, workers int) [][]catalog.GameRef {
	if len(refs) == 0 || workers <= 0 {
		return nil
	}
	size := (len(refs) + workers - 1) / workers
	chunks := make([][]catalog.GameRef, 0, workers)
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		chunks = append(chunks, refs[start:end])
	}
	return chunks
}
