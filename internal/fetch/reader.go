package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
)

// ListSource produces one page of primary records.
type ListSource interface {
	ListPage(ctx context.Context, page int) (Page, error)
	PageSize() int
}

// PageReader drives sequential retrieval of every list page. Page order is
// significant for resumability, so a page failure aborts the read.
type PageReader struct {
	src       ListSource
	pageDelay time.Duration
	pause     Pauser
	logger    *zap.Logger
}

// NewPageReader builds a reader with the given inter-page pacing delay.
func NewPageReader(src ListSource, pageDelay time.Duration, pause Pauser, logger *zap.Logger) *PageReader {
	return &PageReader{
		src:       src,
		pageDelay: pageDelay,
		pause:     pause,
		logger:    logger,
	}
}

// Read fetches page zero to learn the total, then walks pages ascending
// from startPage through the last page, invoking handle for each batch.
// A handle error or a page-fetch exhaustion stops the walk immediately.
func (r *PageReader) Read(
	ctx context.Context,
	startPage int,
	handle func(ctx context.Context, games []catalog.Game) error,
) error {
	if startPage < 0 {
		startPage = 0
	}

	first, err := r.src.ListPage(ctx, 0)
	if err != nil {
		return fmt.Errorf("discover page count: %w", err)
	}
	pages := totalPages(first.Total, r.src.PageSize())
	r.logger.Info("discovered catalog size",
		zap.Int("total_records", first.Total),
		zap.Int("pages", pages),
		zap.Int("start_page", startPage),
	)

	for page := startPage; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("page read canceled: %w", err)
		}
		r.logger.Info("fetching page", zap.Int("page", page))

		batch, err := r.src.ListPage(ctx, page)
		if err != nil {
			return err
		}
		if err := handle(ctx, batch.Games); err != nil {
			return fmt.Errorf("handle page %d: %w", page, err)
		}

		r.pause.Pause(ctx, r.pageDelay)
	}
	return nil
}

func totalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
