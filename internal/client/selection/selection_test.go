package selection

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/kolekt/internal/client/api"
	"github.com/patric-chuzhbe/kolekt/internal/models"
)

type stubFetcher struct {
	mu          sync.Mutex
	collections []models.Collection
	items       map[int64][]models.Item

	// when set, Collection blocks on the gate keyed by collection ID,
	// announcing itself on entered first
	gates   map[int64]chan struct{}
	entered chan struct{}
}

func newStubFetcher(titles ...string) *stubFetcher {
	fetcher := &stubFetcher{
		items: map[int64][]models.Item{},
		gates: map[int64]chan struct{}{},
	}
	for i, title := range titles {
		fetcher.collections = append(fetcher.collections, models.Collection{
			ID:    int64(i + 1),
			Title: title,
		})
	}

	return fetcher
}

func (s *stubFetcher) Collections(ctx context.Context) ([]models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Collection, len(s.collections))
	copy(result, s.collections)

	return result, nil
}

func (s *stubFetcher) Collection(ctx context.Context, collectionID int64) (*models.CollectionWithItems, error) {
	s.mu.Lock()
	gate := s.gates[collectionID]
	entered := s.entered
	s.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, collection := range s.collections {
		if collection.ID == collectionID {
			return &models.CollectionWithItems{
				Collection: collection,
				Items:      s.items[collectionID],
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: no such collection", api.ErrNotFound)
}

type stubPrefs struct {
	mu         sync.Mutex
	selectedID int64
}

func (s *stubPrefs) SelectedCollectionID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectedID, s.selectedID != 0
}

func (s *stubPrefs) SetSelectedCollectionID(collectionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectedID = collectionID

	return nil
}

func TestResolveFallsBackToFirstCollection(t *testing.T) {
	fetcher := newStubFetcher("Stamps", "Coins")
	cache := New(fetcher, &stubPrefs{})

	assert.Equal(t, StateUninitialized, cache.State())

	selected, err := cache.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), selected.ID)
	assert.Equal(t, "Stamps", selected.Title)
	assert.Equal(t, StateReady, cache.State())
}

func TestResolveHonorsPersistedHint(t *testing.T) {
	fetcher := newStubFetcher("Stamps", "Coins")
	prefs := &stubPrefs{selectedID: 2}
	cache := New(fetcher, prefs)

	selected, err := cache.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), selected.ID)
	assert.Equal(t, "Coins", selected.Title)
}

func TestResolveIgnoresDanglingHint(t *testing.T) {
	fetcher := newStubFetcher("Stamps", "Coins")
	prefs := &stubPrefs{selectedID: 99}
	cache := New(fetcher, prefs)

	selected, err := cache.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), selected.ID)
	assert.Equal(t, int64(1), prefs.selectedID, "the hint must be rewritten to the real choice")
}

func TestResolveWithoutCollections(t *testing.T) {
	fetcher := newStubFetcher()
	cache := New(fetcher, &stubPrefs{})

	_, err := cache.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNoCollections)
	assert.Equal(t, StateUninitialized, cache.State())
}

func TestSelectPersistsChoice(t *testing.T) {
	fetcher := newStubFetcher("Stamps", "Coins")
	prefs := &stubPrefs{}
	cache := New(fetcher, prefs)

	selected, err := cache.Select(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), selected.ID)
	assert.Equal(t, int64(2), prefs.selectedID)

	current, ok := cache.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(2), current.ID)
}

func TestSelectUnknownCollectionFallsBack(t *testing.T) {
	fetcher := newStubFetcher("Stamps", "Coins")
	prefs := &stubPrefs{}
	cache := New(fetcher, prefs)

	selected, err := cache.Select(context.Background(), 99)
	require.NoError(t, err)

	assert.Equal(t, int64(1), selected.ID, "a dangling choice falls back to the first collection")
	assert.Equal(t, int64(1), prefs.selectedID)
}

func TestSubscribersSeeEveryPublication(t *testing.T) {
	fetcher := newStubFetcher("Stamps", "Coins")
	cache := New(fetcher, &stubPrefs{})

	var seen []int64
	cache.Subscribe(func(selected *models.CollectionWithItems) {
		seen = append(seen, selected.ID)
	})

	_, err := cache.Resolve(context.Background())
	require.NoError(t, err)
	_, err = cache.Select(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, seen)

	// a late subscriber immediately receives the current value
	var late []int64
	cache.Subscribe(func(selected *models.CollectionWithItems) {
		late = append(late, selected.ID)
	})
	assert.Equal(t, []int64{2}, late)
}

func TestRefreshRepublishesCurrentSelection(t *testing.T) {
	fetcher := newStubFetcher("Stamps")
	cache := New(fetcher, &stubPrefs{})

	_, err := cache.Select(context.Background(), 1)
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.items[1] = []models.Item{{ID: 10, CollectionID: 1, Name: "Penny Black"}}
	fetcher.mu.Unlock()

	refreshed, err := cache.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, refreshed.Items, 1)
	assert.Equal(t, "Penny Black", refreshed.Items[0].Name)
}

func TestLastRequestedSelectionWins(t *testing.T) {
	fetcher := newStubFetcher("Stamps", "Coins")
	slowGate := make(chan struct{})
	fetcher.gates[1] = slowGate
	fetcher.entered = make(chan struct{}, 1)

	cache := New(fetcher, &stubPrefs{})

	slowResult := make(chan error)
	go func() {
		_, err := cache.Select(context.Background(), 1)
		slowResult <- err
	}()

	// wait until the older request is provably in flight
	<-fetcher.entered

	// the newer request completes while the older one is still in flight
	selected, err := cache.Select(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), selected.ID)

	close(slowGate)

	assert.ErrorIs(t, <-slowResult, ErrSuperseded)

	current, ok := cache.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(2), current.ID, "the stale response must not overwrite the newer choice")
	assert.Equal(t, StateReady, cache.State())
}
