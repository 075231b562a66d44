package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
	"github.com/gamepulse/catalog-ingest/internal/fetch"
)

// fakeSessionFactory mints sessions that serve canned details and counts
// session churn.
type fakeSessionFactory struct {
	mu      sync.Mutex
	details catalog.Details
	err     error
	opened  int
	closed  int

	detailCalls int
	onDetails   func(call int)
}

func (f *fakeSessionFactory) NewSession(context.Context) (fetch.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.opened++
	return &fakeSession{factory: f}, nil
}

func (f *fakeSessionFactory) counts() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.closed
}

type fakeSession struct {
	factory *fakeSessionFactory
}

func (s *fakeSession) Details(context.Context, int64) (catalog.Details, error) {
	s.factory.mu.Lock()
	s.factory.detailCalls++
	call := s.factory.detailCalls
	hook := s.factory.onDetails
	details := s.factory.details
	s.factory.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return details, nil
}

func (s *fakeSession) Close() {
	s.factory.mu.Lock()
	s.factory.closed++
	s.factory.mu.Unlock()
}

func storeWithGames(n int) *fakeStore {
	store := newFakeStore()
	for i := 0; i < n; i++ {
		id := int64(1000 + i)
		store.games[id] = catalog.Game{ID: id, Name: fmt.Sprintf("Game %d", i)}
	}
	return store
}

func newTestOrchestrator(t *testing.T, cfg OrchestratorConfig, store *fakeStore, factory *fakeSessionFactory) *Orchestrator {
	t.Helper()
	enricher, _ := newTestEnricher(store, nil, "")
	orch, err := NewOrchestrator(cfg, store, factory, enricher, noopPauser{}, zap.NewNop())
	require.NoError(t, err)
	return orch
}

func TestNewOrchestrator_ValidatesConfig(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	enricher, _ := newTestEnricher(store, nil, "")

	_, err := NewOrchestrator(OrchestratorConfig{Workers: 0, GamesPerSession: 1}, store, &fakeSessionFactory{}, enricher, noopPauser{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewOrchestrator(OrchestratorConfig{Workers: 1, GamesPerSession: 0}, store, &fakeSessionFactory{}, enricher, noopPauser{}, zap.NewNop())
	require.Error(t, err)
}

func TestOrchestrator_ProcessesEveryGame(t *testing.T) {
	t.Parallel()

	store := storeWithGames(10)
	factory := &fakeSessionFactory{details: detailsFixture()}
	cfg := OrchestratorConfig{Workers: 3, GamesPerSession: 500}
	orch := newTestOrchestrator(t, cfg, store, factory)

	results, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	var processed int
	for _, res := range results {
		assert.NoError(t, res.Err)
		processed += res.Processed
	}
	assert.Equal(t, 10, processed)

	// Every game must carry the links the fixture supplies.
	for id := range store.games {
		assert.True(t, store.hasLink(catalog.CategoryTag, id, "Co-op"), "game %d missing tag link", id)
	}

	opened, closed := factory.counts()
	assert.Equal(t, 3, opened, "one session per worker chunk")
	assert.Equal(t, opened, closed, "every session must be released")
}

func TestOrchestrator_RecyclesSessionsPerSubBatch(t *testing.T) {
	t.Parallel()

	store := storeWithGames(5)
	factory := &fakeSessionFactory{details: detailsFixture()}
	cfg := OrchestratorConfig{Workers: 1, GamesPerSession: 2}
	orch := newTestOrchestrator(t, cfg, store, factory)

	results, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].Processed)

	opened, closed := factory.counts()
	assert.Equal(t, 3, opened, "five games at two per session is three sessions")
	assert.Equal(t, opened, closed)
}

func TestOrchestrator_SessionFailureIsIsolated(t *testing.T) {
	t.Parallel()

	store := storeWithGames(4)
	factory := &fakeSessionFactory{err: errors.New("browser launch failed")}
	cfg := OrchestratorConfig{Workers: 2, GamesPerSession: 500}
	orch := newTestOrchestrator(t, cfg, store, factory)

	results, err := orch.Run(context.Background())
	require.NoError(t, err, "session failures must not fail the run")
	require.Len(t, results, 2)

	var failed int
	for _, res := range results {
		assert.Error(t, res.Err)
		failed += res.Failed
	}
	assert.Equal(t, 4, failed, "every game in a dead chunk counts as failed")
}

func TestOrchestrator_CancellationFailsOnlyRemainder(t *testing.T) {
	t.Parallel()

	store := storeWithGames(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while the second record is in flight; two records complete,
	// two are left behind.
	factory := &fakeSessionFactory{details: detailsFixture()}
	factory.onDetails = func(call int) {
		if call == 2 {
			cancel()
		}
	}
	cfg := OrchestratorConfig{Workers: 1, GamesPerSession: 500}
	orch := newTestOrchestrator(t, cfg, store, factory)

	results, err := orch.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	require.Error(t, res.Err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Failed, "completed records must not be recounted as failed")
	assert.Zero(t, res.Skipped)
}

func TestOrchestrator_EmptyCatalog(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	factory := &fakeSessionFactory{}
	cfg := OrchestratorConfig{Workers: 4, GamesPerSession: 10}
	orch := newTestOrchestrator(t, cfg, store, factory)

	results, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	opened, _ := factory.counts()
	assert.Zero(t, opened)
}

func TestPartition(t *testing.T) {
	t.Parallel()

	refs := func(n int) []catalog.GameRef {
		out := make([]catalog.GameRef, n)
		for i := range out {
			out[i] = catalog.GameRef{ID: int64(i + 1)}
		}
		return out
	}

	tests := []struct {
		name      string
		n         int
		workers   int
		wantSizes []int
	}{
		{"even split", 10, 2, []int{5, 5}},
		{"uneven split", 10, 3, []int{4, 4, 2}},
		{"fewer games than workers", 2, 5, []int{1, 1}},
		{"single worker", 7, 1, []int{7}},
		{"empty input", 0, 3, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			chunks := partition(refs(tc.n), tc.workers)
			require.Len(t, chunks, len(tc.wantSizes))

			// Chunks must be contiguous, disjoint and cover the input.
			var next int64 = 1
			for i, chunk := range chunks {
				assert.Len(t, chunk, tc.wantSizes[i])
				for _, ref := range chunk {
					assert.Equal(t, next, ref.ID)
					next++
				}
			}
			assert.Equal(t, int64(tc.n+1), next)
		})
	}
}
