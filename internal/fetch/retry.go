// Package fetch retrieves catalog data from the upstream source, with
// bounded retries and pacing between requests.
package fetch

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/metrics"
)

// Units of work the transport retries. They appear in errors, logs and
// metrics so failed fetches can be re-targeted manually.
const (
	UnitPage = "page"
	UnitGame = "game"
)

// Policy is the retry budget for one logical fetch. Delay computation is a
// pure function of the policy so backoff timing is testable without waiting.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the upstream's tolerance: three attempts with a
// sixty-second doubling backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   60 * time.Second,
		Multiplier:  2,
	}
}

// Delay returns the wait after the nth consecutive failure (1-based):
// base, base*m, base*m^2, ...
func (p Policy) Delay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(failures-1)))
}

// ExhaustedError is the terminal failure after the retry ceiling. It carries
// the unit identifier so callers can decide between aborting the run (list
// pages) and skipping the record (detail fetches).
type ExhaustedError struct {
	Unit     string
	ID       int64
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s %d failed after %d attempts: %v", e.Unit, e.ID, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Pauser abstracts the sleeps between attempts and between requests.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps on a timer but returns early on context cancellation.
type TimerPauser struct{}

// Pause blocks for delay or until ctx finishes.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Retry runs fn up to the policy's attempt ceiling, pausing with the
// policy's backoff between failures. Every failed attempt is logged with the
// unit identifier and attempt number.
func Retry(
	ctx context.Context,
	p Policy,
	pause Pauser,
	logger *zap.Logger,
	unit string,
	id int64,
	fn func(ctx context.Context) error,
) error {
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fetch %s %d canceled: %w", unit, id, err)
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		logger.Error("fetch attempt failed",
			zap.String("unit", unit),
			zap.Int64("id", id),
			zap.Int("attempt", attempt),
			zap.Error(last),
		)
		if attempt == p.MaxAttempts {
			break
		}
		delay := p.Delay(attempt)
		metrics.ObserveRetry(unit, delay)
		pause.Pause(ctx, delay)
	}
	metrics.ObserveFetchExhausted(unit)
	return &ExhaustedError{Unit: unit, ID: id, Attempts: p.MaxAttempts, Last: last}
}
