package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
)

// Reconciler ensures a game's relationship rows exist for each reference
// category, resolving names to identities on the way.
type Reconciler struct {
	store  Store
	logger *zap.Logger
}

// NewReconciler builds a Reconciler.
func NewReconciler(store Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Reconcile resolves every name in the category and ensures the junction
// row exists. An empty name list is a no-op. The first resolution or link
// failure aborts the category; remaining categories are the caller's
// concern.
func (r *Reconciler) Reconcile(ctx context.Context, gameID int64, category catalog.Category, names []string) error {
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		entityID, err := r.store.ResolveEntity(ctx, category, name)
		if err != nil {
			return fmt.Errorf("resolve %s %q for game %d: %w", category, name, gameID, err)
		}
		if err := r.store.LinkGame(ctx, category, gameID, entityID); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileDetails applies all four detail categories independently: a
// failure in one category is logged and joined into the returned error,
// but the remaining categories are still processed.
func (r *Reconciler) ReconcileDetails(ctx context.Context, gameID int64, details catalog.Details) error {
	var errs []error
	for _, category := range catalog.DetailCategories() {
		if err := r.Reconcile(ctx, gameID, category, details.Names(category)); err != nil {
			r.logger.Error("category reconciliation failed",
				zap.Int64("game_id", gameID),
				zap.Stringer("category", category),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
