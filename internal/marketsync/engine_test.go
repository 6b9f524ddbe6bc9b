package marketsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/owlcraft/storefront/internal/catalog"
)

type memoryStore struct {
	mu       sync.Mutex
	products map[string]*catalog.Product
	failIDs  map[string]bool
	nextID   int64
	upserts  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products: make(map[string]*catalog.Product),
		failIDs:  make(map[string]bool),
	}
}

func storeKey(source, externalID string) string {
	return source + "|" + externalID
}

func (s *memoryStore) UpsertByExternalID(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.failIDs[p.ExternalID] {
		return catalog.Product{}, errors.New("constraint violation")
	}
	key := storeKey(p.Source, p.ExternalID)
	existing, ok := s.products[key]
	if !ok {
		s.nextID++
		p.ID = s.nextID
		p.CreatedAt = time.Now()
	} else {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	p.IsActive = true
	p.LastSyncedAt = time.Now()
	p.UpdatedAt = time.Now()
	s.products[key] = &p
	return p, nil
}

func (s *memoryStore) ListActiveExternalIDs(ctx context.Context, source string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, p := range s.products {
		if p.Source == source && p.IsActive {
			out[p.ExternalID] = struct{}{}
		}
	}
	return out, nil
}

func (s *memoryStore) DeactivateByExternalIDs(ctx context.Context, source string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, id := range ids {
		if p, ok := s.products[storeKey(source, id)]; ok && p.IsActive {
			p.IsActive = false
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) get(source, externalID string) *catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[storeKey(source, externalID)]
}

type fakeAcquirer struct {
	bySource map[string][]catalog.Product
}

func (a *fakeAcquirer) Acquire(ctx context.Context, src Source) []catalog.Product {
	return a.bySource[src.Name]
}

func pinkoiProduct(id, name string, price float64) catalog.Product {
	return catalog.Product{
		Source:     catalog.SourcePinkoi,
		ExternalID: id,
		Name:       name,
		Price:      price,
		IsActive:   true,
	}
}

func newTestEngine(store Store, acquirer Acquirer) *Engine {
	return NewEngine(store, acquirer, nil, nil, testLogger())
}

func TestSyncSourceUpsertsAcquiredProducts(t *testing.T) {
	store := newMemoryStore()
	chain := &fakeAcquirer{bySource: map[string][]catalog.Product{
		catalog.SourcePinkoi: {
			pinkoiProduct("p1", "貓頭鷹後背包", 1200),
			pinkoiProduct("p2", "手織圍巾", 1860),
		},
	}}

	run := newTestEngine(store, chain).SyncSource(context.Background(), PinkoiSource("owlcraft"))
	require.Equal(t, 2, run.ItemsAcquired)
	require.Equal(t, 2, run.Succeeded)
	require.Zero(t, run.Failed)
	require.Zero(t, run.Deactivated)
	require.NotEmpty(t, run.RunID)
	require.NotEmpty(t, run.Log)

	p := store.get(catalog.SourcePinkoi, "p1")
	require.NotNil(t, p)
	require.Equal(t, "貓頭鷹後背包", p.Name)
	require.True(t, p.IsActive)
}

func TestSyncSourceIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	chain := &fakeAcquirer{bySource: map[string][]catalog.Product{
		catalog.SourcePinkoi: {pinkoiProduct("p1", "bag", 1200)},
	}}
	engine := newTestEngine(store, chain)
	src := PinkoiSource("owlcraft")

	first := engine.SyncSource(context.Background(), src)
	second := engine.SyncSource(context.Background(), src)
	require.Equal(t, 1, first.Succeeded)
	require.Equal(t, 1, second.Succeeded)
	require.Zero(t, second.Deactivated)
	require.Len(t, store.products, 1, "re-syncing an unchanged catalog must not duplicate rows")
	require.Equal(t, int64(1), store.get(catalog.SourcePinkoi, "p1").ID)
}

func TestSyncSourceDeactivatesDelistedProducts(t *testing.T) {
	store := newMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.UpsertByExternalID(context.Background(), pinkoiProduct(id, "item "+id, 100))
		require.NoError(t, err)
	}

	chain := &fakeAcquirer{bySource: map[string][]catalog.Product{
		catalog.SourcePinkoi: {
			pinkoiProduct("a", "item a", 100),
			pinkoiProduct("b", "item b", 150),
		},
	}}

	run := newTestEngine(store, chain).SyncSource(context.Background(), PinkoiSource("owlcraft"))
	require.Equal(t, 2, run.Succeeded)
	require.Equal(t, 1, run.Deactivated)

	require.True(t, store.get(catalog.SourcePinkoi, "a").IsActive)
	require.True(t, store.get(catalog.SourcePinkoi, "b").IsActive)

	c := store.get(catalog.SourcePinkoi, "c")
	require.False(t, c.IsActive, "delisted product becomes inactive")
	require.Equal(t, "item c", c.Name, "soft delete keeps the record intact")
	require.InDelta(t, 100, c.Price, 0.0001)
}

func TestSyncSourceZeroAcquisitionSkipsDeactivation(t *testing.T) {
	store := newMemoryStore()
	for _, id := range []string{"a", "b"} {
		_, err := store.UpsertByExternalID(context.Background(), pinkoiProduct(id, "item "+id, 100))
		require.NoError(t, err)
	}

	chain := &fakeAcquirer{bySource: map[string][]catalog.Product{}}
	run := newTestEngine(store, chain).SyncSource(context.Background(), PinkoiSource("owlcraft"))

	require.Zero(t, run.ItemsAcquired)
	require.Zero(t, run.Deactivated)
	require.NotEmpty(t, run.Note, "a zero-acquisition run must explain itself")

	// A failed scrape must never wipe a healthy catalog.
	require.True(t, store.get(catalog.SourcePinkoi, "a").IsActive)
	require.True(t, store.get(catalog.SourcePinkoi, "b").IsActive)
}

func TestSyncSourceLogCarriesStrategyDiagnostics(t *testing.T) {
	store := newMemoryStore()
	chain := NewChainWith(testLogger(), nil,
		&fakeStrategy{name: "api", err: errors.New("blocked by anti-bot wall")},
		&fakeStrategy{name: "browser"},
	)

	run := NewEngine(store, chain, nil, nil, testLogger()).
		SyncSource(context.Background(), PinkoiSource("owlcraft"))
	require.Zero(t, run.ItemsAcquired)

	// An operator reading the returned log must be able to tell which
	// strategy broke, not just that the run came back empty.
	joined := strings.Join(run.Log, "\n")
	require.Contains(t, joined, "strategy failed")
	require.Contains(t, joined, "blocked by anti-bot wall")
	require.Contains(t, joined, "strategy yielded nothing")
	require.Contains(t, joined, "all acquisition strategies exhausted")
}

func TestSyncSourceCountsPartialFailures(t *testing.T) {
	store := newMemoryStore()
	store.failIDs["p2"] = true

	chain := &fakeAcquirer{bySource: map[string][]catalog.Product{
		catalog.SourcePinkoi: {
			pinkoiProduct("p1", "ok", 100),
			pinkoiProduct("p2", "broken", 200),
			pinkoiProduct("p3", "ok too", 300),
		},
	}}

	run := newTestEngine(store, chain).SyncSource(context.Background(), PinkoiSource("owlcraft"))
	require.Equal(t, 3, run.ItemsAcquired)
	require.Equal(t, 2, run.Succeeded)
	require.Equal(t, 1, run.Failed)
	require.Len(t, run.Errors, 1)
	require.Contains(t, run.Errors[0], "p2")
}

func TestSyncAllRunsEverySource(t *testing.T) {
	store := newMemoryStore()
	chain := &fakeAcquirer{bySource: map[string][]catalog.Product{
		catalog.SourcePinkoi: {pinkoiProduct("p1", "bag", 1200)},
		catalog.SourceShopee: {{
			Source:     catalog.SourceShopee,
			ExternalID: "123",
			Name:       "wallet",
			Price:      186,
			IsActive:   true,
		}},
	}}

	runs := newTestEngine(store, chain).SyncAll(context.Background(),
		[]Source{PinkoiSource("owlcraft"), ShopeeSource(777, "owlshop")})

	require.Len(t, runs, 2)
	for _, run := range runs {
		require.Equal(t, 1, run.Succeeded, "source %s", run.Source)
	}
	require.NotNil(t, store.get(catalog.SourcePinkoi, "p1"))
	require.NotNil(t, store.get(catalog.SourceShopee, "123"))
}
