package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/api"
	"github.com/gamepulse/catalog-ingest/internal/archive"
	"github.com/gamepulse/catalog-ingest/internal/config"
	"github.com/gamepulse/catalog-ingest/internal/fetch"
	"github.com/gamepulse/catalog-ingest/internal/logging"
	"github.com/gamepulse/catalog-ingest/internal/progress"
	"github.com/gamepulse/catalog-ingest/internal/publish"
	"github.com/gamepulse/catalog-ingest/internal/store"
)

// app holds the services shared by the subcommands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *store.CatalogStore
	publisher publish.Publisher
	arch      archive.Store
	pause     fetch.Pauser
	policy    fetch.Policy

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		pause:  fetch.TimerPauser{},
		policy: fetch.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Multiplier:  cfg.Retry.Multiplier,
		},
	}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	catalogStore, err := store.New(ctx, store.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = catalogStore
	a.closers = append(a.closers, catalogStore.Close)

	if err := a.initPublisher(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.initArchive(ctx); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

func (a *app) initPublisher(ctx context.Context) error {
	if !a.cfg.Publish.Enabled {
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.Publish.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	publisher, err := publish.NewPubSub(client)
	if err != nil {
		return err
	}
	a.publisher = publisher
	a.closers = append(a.closers, func() {
		if cerr := publisher.Close(); cerr != nil {
			a.logger.Warn("close publisher", zap.Error(cerr))
		}
	})
	return nil
}

func (a *app) initArchive(ctx context.Context) error {
	switch a.cfg.Archive.Backend {
	case "", "none":
		return nil
	case "memory":
		a.arch = archive.NewMemoryStore()
		return nil
	case "local":
		local, err := archive.NewLocalStore(a.cfg.Archive.Dir)
		if err != nil {
			return err
		}
		a.arch = local
		return nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init storage client: %w", err)
		}
		gcs, err := archive.NewGCSStore(client, a.cfg.Archive.Bucket)
		if err != nil {
			return err
		}
		a.arch = gcs
		a.closers = append(a.closers, func() {
			if cerr := client.Close(); cerr != nil {
				a.logger.Warn("close storage client", zap.Error(cerr))
			}
		})
		return nil
	default:
		return fmt.Errorf("unknown archive.backend %q", a.cfg.Archive.Backend)
	}
}

// startOpsServer serves health/metrics/progress until ctx finishes.
func (a *app) startOpsServer(ctx context.Context, tracker *progress.Tracker) {
	if !a.cfg.Server.Enabled {
		return
	}
	server := api.NewServer(tracker, a.logger)
	go func() {
		if err := server.Run(ctx, a.cfg.Server.Port); err != nil {
			a.logger.Error("ops server stopped", zap.Error(err))
		}
	}()
}

func (a *app) topic() string {
	if a.publisher == nil {
		return ""
	}
	return a.cfg.Publish.Topic
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
