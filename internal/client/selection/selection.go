// Package selection maintains the client's notion of the currently open
// collection. It is a small observable cache: resolving a selection goes
// through the API, the outcome is published to subscribers, and the
// chosen collection ID is persisted so the next start can reopen it.
//
// Concurrent resolutions follow a last-requested-wins rule. Every
// request takes a generation number; a response may only be applied
// while its generation is still the newest, so a slow earlier response
// can never overwrite a later choice.
package selection

import (
	"context"
	"errors"
	"sync"

	"github.com/patric-chuzhbe/kolekt/internal/client/api"
	"github.com/patric-chuzhbe/kolekt/internal/models"
)

// State describes the lifecycle of the cache.
type State int

// Cache states. The cache starts Uninitialized, moves to Resolving while
// a fetch is in flight and reaches Ready once a collection is published.
const (
	StateUninitialized State = iota
	StateResolving
	StateReady
)

// ErrSuperseded is returned to a resolver whose response arrived after a
// newer selection had already been requested. The stale result is
// discarded, nothing is published.
var ErrSuperseded = errors.New("superseded by a newer selection")

// ErrNoCollections is returned when the user owns no collections at all.
var ErrNoCollections = errors.New("no collections available")

type collectionsFetcher interface {
	Collections(ctx context.Context) ([]models.Collection, error)
	Collection(ctx context.Context, collectionID int64) (*models.CollectionWithItems, error)
}

type selectionKeeper interface {
	SelectedCollectionID() (int64, bool)
	SetSelectedCollectionID(collectionID int64) error
}

// Subscriber receives the collection published by the cache.
type Subscriber func(selected *models.CollectionWithItems)

// Cache is the observable selected-collection store.
type Cache struct {
	api   collectionsFetcher
	prefs selectionKeeper

	mu          sync.Mutex
	state       State
	generation  uint64
	selected    *models.CollectionWithItems
	subscribers []Subscriber
}

// New creates an empty cache in the Uninitialized state.
func New(api collectionsFetcher, prefs selectionKeeper) *Cache {
	return &Cache{
		api:   api,
		prefs: prefs,
	}
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Selected returns the currently published collection, if any.
func (c *Cache) Selected() (*models.CollectionWithItems, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == nil {
		return nil, false
	}

	return c.selected, true
}

// Subscribe registers a callback invoked on every publication. When a
// collection is already published the callback fires immediately with
// the current value.
func (c *Cache) Subscribe(subscriber Subscriber) {
	c.mu.Lock()
	c.subscribers = append(c.subscribers, subscriber)
	current := c.selected
	c.mu.Unlock()

	if current != nil {
		subscriber(current)
	}
}

// Resolve picks a collection without an explicit choice: the persisted
// one when it still exists, otherwise the user's first collection.
func (c *Cache) Resolve(ctx context.Context) (*models.CollectionWithItems, error) {
	generation := c.beginResolution()

	collections, err := c.api.Collections(ctx)
	if err != nil {
		c.failResolution(generation)

		return nil, err
	}
	if len(collections) == 0 {
		c.failResolution(generation)

		return nil, ErrNoCollections
	}

	collectionID := collections[0].ID
	if hinted, ok := c.prefs.SelectedCollectionID(); ok {
		for _, collection := range collections {
			if collection.ID == hinted {
				collectionID = hinted
				break
			}
		}
	}

	return c.fetchAndPublish(ctx, generation, collectionID)
}

// Select switches to the requested collection. When the collection does
// not exist for this user the choice falls back to Resolve, so the cache
// never stays pointed at a dangling identifier.
func (c *Cache) Select(ctx context.Context, collectionID int64) (*models.CollectionWithItems, error) {
	generation := c.beginResolution()

	selected, err := c.fetchAndPublish(ctx, generation, collectionID)
	if errors.Is(err, api.ErrNotFound) {
		return c.resolveWithGeneration(ctx, generation)
	}

	return selected, err
}

// Refresh re-fetches the currently selected collection so subscribers
// see changes made through the items API. Without a selection it behaves
// like Resolve.
func (c *Cache) Refresh(ctx context.Context) (*models.CollectionWithItems, error) {
	c.mu.Lock()
	current := c.selected
	c.mu.Unlock()

	if current == nil {
		return c.Resolve(ctx)
	}

	return c.Select(ctx, current.ID)
}

// resolveWithGeneration is the fallback path of Select. It keeps the
// caller's generation so a concurrent newer request still wins.
func (c *Cache) resolveWithGeneration(ctx context.Context, generation uint64) (*models.CollectionWithItems, error) {
	collections, err := c.api.Collections(ctx)
	if err != nil {
		c.failResolution(generation)

		return nil, err
	}
	if len(collections) == 0 {
		c.failResolution(generation)

		return nil, ErrNoCollections
	}

	return c.fetchAndPublish(ctx, generation, collections[0].ID)
}

func (c *Cache) fetchAndPublish(ctx context.Context, generation uint64, collectionID int64) (*models.CollectionWithItems, error) {
	selected, err := c.api.Collection(ctx, collectionID)
	if err != nil {
		c.failResolution(generation)

		return nil, err
	}

	return c.publish(generation, selected)
}

// beginResolution stamps a new generation and moves the cache to
// Resolving. The previous publication stays visible until replaced.
func (c *Cache) beginResolution() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.state = StateResolving

	return c.generation
}

// publish installs the fetched collection if the request is still the
// newest one and notifies subscribers outside the lock.
func (c *Cache) publish(generation uint64, selected *models.CollectionWithItems) (*models.CollectionWithItems, error) {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()

		return nil, ErrSuperseded
	}

	c.selected = selected
	c.state = StateReady
	subscribers := make([]Subscriber, len(c.subscribers))
	copy(subscribers, c.subscribers)
	c.mu.Unlock()

	if err := c.prefs.SetSelectedCollectionID(selected.ID); err != nil {
		return nil, err
	}

	for _, subscriber := range subscribers {
		subscriber(selected)
	}

	return selected, nil
}

// failResolution settles the state after a failed fetch. A superseded
// failure changes nothing; the newest request owns the state.
func (c *Cache) failResolution(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	if c.selected != nil {
		c.state = StateReady
	} else {
		c.state = StateUninitialized
	}
}
