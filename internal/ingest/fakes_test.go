package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
)

// fakeStore is an in-memory Store with the same idempotency behavior as the
// Postgres implementation, plus per-path error injection.
type fakeStore struct {
	mu sync.Mutex

	games    map[int64]catalog.Game
	entities map[string]int64
	links    map[string]bool
	nextID   int64

	existsErr     error
	insertErr     error
	resolveErr    map[catalog.Category]error
	linkErr       map[catalog.Category]error
	hasDetailsErr error
	listErr       error

	resolveCalls int
	linkCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:    make(map[int64]catalog.Game),
		entities: make(map[string]int64),
		links:    make(map[string]bool),
	}
}

func entityKey(category catalog.Category, name string) string {
	return fmt.Sprintf("%s/%s", category.Table(), name)
}

func linkKey(category catalog.Category, gameID, entityID int64) string {
	return fmt.Sprintf("%s/%d/%d", category.Junction(), gameID, entityID)
}

func (s *fakeStore) GameExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.games[id]
	return ok, nil
}

func (s *fakeStore) InsertGame(_ context.Context, game catalog.Game) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if _, ok := s.games[game.ID]; ok {
		return false, nil
	}
	s.games[game.ID] = game
	return true, nil
}

func (s *fakeStore) ResolveEntity(_ context.Context, category catalog.Category, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls++
	if err := s.resolveErr[category]; err != nil {
		return 0, err
	}
	key := entityKey(category, name)
	if id, ok := s.entities[key]; ok {
		return id, nil
	}
	s.nextID++
	s.entities[key] = s.nextID
	return s.nextID, nil
}

func (s *fakeStore) LinkGame(_ context.Context, category catalog.Category, gameID, entityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkCalls++
	if err := s.linkErr[category]; err != nil {
		return err
	}
	s.links[linkKey(category, gameID, entityID)] = true
	return nil
}

func (s *fakeStore) HasDetails(_ context.Context, gameID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasDetailsErr != nil {
		return false, s.hasDetailsErr
	}
	prefix := fmt.Sprintf("%s/%d/", catalog.CategoryTag.Junction(), gameID)
	for key := range s.links {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ListGames(_ context.Context) ([]catalog.GameRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	refs := make([]catalog.GameRef, 0, len(s.games))
	for _, game := range s.games {
		refs = append(refs, catalog.GameRef{ID: game.ID, Name: game.Name})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// hasLink reports whether the named entity is linked to the game.
func (s *fakeStore) hasLink(category catalog.Category, gameID int64, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entityID, ok := s.entities[entityKey(category, name)]
	if !ok {
		return false
	}
	return s.links[linkKey(category, gameID, entityID)]
}

func (s *fakeStore) gameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// fakeFetcher returns canned details and counts invocations.
type fakeFetcher struct {
	mu      sync.Mutex
	details catalog.Details
	err     error
	calls   int
}

func (f *fakeFetcher) Details(context.Context, int64) (catalog.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return catalog.Details{}, f.err
	}
	return f.details, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// noopPauser skips pacing so tests run instantly.
type noopPauser struct{}

func (noopPauser) Pause(context.Context, time.Duration) {}
