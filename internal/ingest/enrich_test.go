package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
	"github.com/gamepulse/catalog-ingest/internal/progress"
	"github.com/gamepulse/catalog-ingest/internal/publish"
)

func newTestEnricher(store *fakeStore, pub publish.Publisher, topic string) (*Enricher, *progress.Tracker) {
	logger := zap.NewNop()
	tracker := progress.NewTracker("enrich")
	enricher := NewEnricher(store, NewReconciler(store, logger), pub, topic, tracker, logger)
	return enricher, tracker
}

func detailsFixture() catalog.Details {
	return catalog.Details{
		Genres:    []string{"Puzzle"},
		Tags:      []string{"Co-op", "Funny"},
		Features:  []string{"Single-player"},
		Languages: []string{"English"},
	}
}

func TestEnricher_EnrichOneUpdates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.games[620] = catalog.Game{ID: 620, Name: "Portal 2"}
	pub := publish.NewMemoryPublisher()
	enricher, tracker := newTestEnricher(store, pub, "catalog-events")
	fetcher := &fakeFetcher{details: detailsFixture()}

	outcome := enricher.EnrichOne(context.Background(), fetcher, catalog.GameRef{ID: 620, Name: "Portal 2"})
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, 1, fetcher.callCount())

	assert.True(t, store.hasLink(catalog.CategoryGenre, 620, "Puzzle"))
	assert.True(t, store.hasLink(catalog.CategoryTag, 620, "Co-op"))
	assert.True(t, store.hasLink(catalog.CategoryLanguage, 620, "English"))

	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.Processed)
	assert.Zero(t, snap.Failed)

	messages := pub.Messages()
	require.Len(t, messages, 1)
	event, ok := messages[0].Payload.(publish.Event)
	require.True(t, ok)
	assert.Equal(t, publish.KindEnriched, event.Kind)
	assert.Equal(t, string(OutcomeUpdated), event.Outcome)
}

func TestEnricher_GuardSkipsEnrichedGame(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	enricher, tracker := newTestEnricher(store, nil, "")
	fetcher := &fakeFetcher{details: detailsFixture()}
	ref := catalog.GameRef{ID: 620, Name: "Portal 2"}

	// First pass establishes the tag links that arm the guard.
	require.Equal(t, OutcomeUpdated, enricher.EnrichOne(context.Background(), fetcher, ref))
	assert.Equal(t, OutcomeSkipped, enricher.EnrichOne(context.Background(), fetcher, ref))
	assert.Equal(t, 1, fetcher.callCount(), "the guard must prevent the second fetch")

	snap := tracker.Snapshot()
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, int64(1), snap.Skipped)
}

func TestEnricher_FetchFailureIsContained(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	enricher, tracker := newTestEnricher(store, nil, "")
	fetcher := &fakeFetcher{err: errors.New("render timed out")}

	outcome := enricher.EnrichOne(context.Background(), fetcher, catalog.GameRef{ID: 620, Name: "Portal 2"})
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Zero(t, store.linkCalls)
	assert.Equal(t, int64(1), tracker.Snapshot().Failed)
}

func TestEnricher_PartialReconciliation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.resolveErr = map[catalog.Category]error{
		catalog.CategoryGenre: errors.New("genre table locked"),
	}
	enricher, _ := newTestEnricher(store, nil, "")
	fetcher := &fakeFetcher{details: detailsFixture()}

	outcome := enricher.EnrichOne(context.Background(), fetcher, catalog.GameRef{ID: 620, Name: "Portal 2"})
	assert.Equal(t, OutcomePartial, outcome)
	assert.True(t, store.hasLink(catalog.CategoryTag, 620, "Co-op"), "other categories still reconciled")
}

func TestEnricher_RunWalksAllGames(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.games[620] = catalog.Game{ID: 620, Name: "Portal 2"}
	store.games[892970] = catalog.Game{ID: 892970, Name: "Valheim"}
	enricher, tracker := newTestEnricher(store, nil, "")
	fetcher := &fakeFetcher{details: detailsFixture()}

	require.NoError(t, enricher.Run(context.Background(), fetcher, 0, noopPauser{}))
	assert.Equal(t, 2, fetcher.callCount())
	assert.Equal(t, int64(2), tracker.Snapshot().Processed)
}

func TestEnricher_RunFailsOnEnumeration(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	enricher, _ := newTestEnricher(store, nil, "")

	err := enricher.Run(context.Background(), &fakeFetcher{}, 0, noopPauser{})
	require.Error(t, err)
}
