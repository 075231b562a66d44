// Package store provides Postgres-backed persistence for the catalog.
//
// Every mutation is individually idempotent: game inserts and junction
// upserts tolerate existing rows, and entity resolution resolves uniqueness
// conflicts by re-reading the winner. Correctness under concurrent workers
// rests on the store's constraints, not on cross-worker locking.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
	"github.com/gamepulse/catalog-ingest/internal/metrics"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// CatalogStore reads and writes the games schema through a pgx pool.
type CatalogStore struct {
	pool   querier
	logger *zap.Logger
}

// New connects a CatalogStore and verifies the connection with a ping.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*CatalogStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &CatalogStore{pool: pool, logger: logger}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing against pgxmock).
func NewWithPool(pool querier, logger *zap.Logger) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogStore{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *CatalogStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GameExists reports whether the primary record is already present.
func (s *CatalogStore) GameExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM games WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check game %d: %w", id, err)
	}
	return true, nil
}

// InsertGame creates the primary record. Re-inserting an existing id is a
// no-op; the returned bool reports whether a row was actually created.
func (s *CatalogStore) InsertGame(ctx context.Context, game catalog.Game) (bool, error) {
	query := `
INSERT INTO games (
	id, name, first_release_date, early_access_exit_date, early_access,
	copies_sold, price, revenue, avg_playtime, review_score, publisher_class
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		game.ID,
		game.Name,
		game.FirstReleaseDate,
		game.EarlyAccessExitDate,
		game.EarlyAccess,
		game.CopiesSold,
		game.Price,
		game.Revenue,
		game.AvgPlaytime,
		game.ReviewScore,
		game.PublisherClass,
	)
	if err != nil {
		return false, fmt.Errorf("insert game %d: %w", game.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResolveEntity returns the identity for the reference name, creating the
// row if absent. Matching is exact and case-sensitive. A uniqueness conflict
// means a concurrent resolver won the insert; the winner's id is re-read
// rather than surfaced as an error.
func (s *CatalogStore) ResolveEntity(ctx context.Context, category catalog.Category, name string) (int64, error) {
	selectQuery := fmt.Sprintf(`SELECT id FROM %s WHERE name = $1`, category.Table())

	var id int64
	err := s.pool.QueryRow(ctx, selectQuery, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("look up %s %q: %w", category, name, err)
	}

	insertQuery := fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) RETURNING id`, category.Table())
	err = s.pool.QueryRow(ctx, insertQuery, name).Scan(&id)
	if err == nil {
		metrics.ObserveEntityCreated(category.String())
		s.logger.Info("created reference entity",
			zap.Stringer("category", category),
			zap.String("name", name),
			zap.Int64("id", id),
		)
		return id, nil
	}
	if !isUniqueViolation(err) {
		return 0, fmt.Errorf("insert %s %q: %w", category, name, err)
	}

	if rereadErr := s.pool.QueryRow(ctx, selectQuery, name).Scan(&id); rereadErr != nil {
		return 0, fmt.Errorf("re-read %s %q after conflict: %w", category, name, rereadErr)
	}
	return id, nil
}

// LinkGame ensures the junction row (gameID, entityID) exists for the
// category. An already-present pair is a silent no-op.
func (s *CatalogStore) LinkGame(ctx context.Context, category catalog.Category, gameID, entityID int64) error {
	if category.PairIsPrimaryKey() {
		query := fmt.Sprintf(
			`INSERT INTO %s (game_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			category.Junction(), category.FKColumn(),
		)
		if _, err := s.pool.Exec(ctx, query, gameID, entityID); err != nil {
			return fmt.Errorf("link game %d to %s %d: %w", gameID, category, entityID, err)
		}
		return nil
	}

	// The publisher/developer junctions carry no uniqueness constraint, so
	// ON CONFLICT cannot dedupe them; probe before inserting instead.
	probe := fmt.Sprintf(
		`SELECT 1 FROM %s WHERE game_id = $1 AND %s = $2`,
		category.Junction(), category.FKColumn(),
	)
	var one int
	err := s.pool.QueryRow(ctx, probe, gameID, entityID).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("probe %s link for game %d: %w", category, gameID, err)
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s (game_id, %s) VALUES ($1, $2)`,
		category.Junction(), category.FKColumn(),
	)
	if _, err := s.pool.Exec(ctx, insert, gameID, entityID); err != nil {
		return fmt.Errorf("link game %d to %s %d: %w", gameID, category, entityID, err)
	}
	return nil
}

// HasDetails reports whether the game already has any tag junction row,
// the marker for a completed detail enrichment.
func (s *CatalogStore) HasDetails(ctx context.Context, gameID int64) (bool, error) {
	var found int64
	err := s.pool.QueryRow(ctx, `SELECT game_id FROM games_tags WHERE game_id = $1 LIMIT 1`, gameID).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check details for game %d: %w", gameID, err)
	}
	return true, nil
}

// ListGames returns every stored game, in id order, for the detail paths.
func (s *CatalogStore) ListGames(ctx context.Context) ([]catalog.GameRef, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var refs []catalog.GameRef
	for rows.Next() {
		var ref catalog.GameRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return refs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
