// Package ingest implements the catalog ingestion and reconciliation
// pipelines: primary population, sequential detail enrichment, and the
// multi-worker browser orchestration.
package ingest

import (
	"context"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
)

// Store is the persistence surface the pipelines depend on.
type Store interface {
	// GameExists is the primary-path idempotency guard.
	GameExists(ctx context.Context, id int64) (bool, error)
	// InsertGame creates the primary record; re-inserts are no-ops.
	InsertGame(ctx context.Context, game catalog.Game) (bool, error)
	// ResolveEntity returns the identity for a reference name, creating
	// the row if absent; never errors on a concurrent create.
	ResolveEntity(ctx context.Context, category catalog.Category, name string) (int64, error)
	// LinkGame ensures the junction row exists; duplicates are no-ops.
	LinkGame(ctx context.Context, category catalog.Category, gameID, entityID int64) error
	// HasDetails is the detail-path idempotency guard.
	HasDetails(ctx context.Context, gameID int64) (bool, error)
	// ListGames enumerates stored games for the detail paths.
	ListGames(ctx context.Context) ([]catalog.GameRef, error)
}
