// Package service implements the ownership-scoped operations over
// collections and items. Every operation takes the caller's user ID as
// resolved from the session token and passes it down into the storage
// predicates; the service itself never trusts identifiers from request
// bodies.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/kolekt/internal/models"
)

type collectionsKeeper interface {
	ListCollections(ctx context.Context, userID int64) ([]models.Collection, error)
	GetCollection(ctx context.Context, userID, collectionID int64) (*models.CollectionWithItems, bool, error)
	CreateCollection(ctx context.Context, userID int64, title string, transaction *sql.Tx) (int64, error)
	UpdateCollection(ctx context.Context, userID, collectionID int64, patch models.CollectionPatch) (bool, error)
	DeleteCollection(ctx context.Context, userID, collectionID int64) (bool, error)
	CollectionExists(ctx context.Context, userID, collectionID int64) (bool, error)
}

type itemsKeeper interface {
	ListItems(ctx context.Context, collectionID int64) ([]models.Item, error)
	GetItem(ctx context.Context, userID, itemID int64) (*models.Item, bool, error)
	CreateItem(ctx context.Context, userID int64, item *models.Item) (int64, bool, error)
	ReplaceItem(ctx context.Context, userID, itemID int64, item models.Item) (bool, error)
	PatchItem(ctx context.Context, userID, itemID int64, patch models.ItemPatch) (bool, error)
	DeleteItem(ctx context.Context, userID, itemID int64) (bool, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	collectionsKeeper
	itemsKeeper
	pinger
}

var validRarities = []string{
	string(models.RarityCommon),
	string(models.RarityUncommon),
	string(models.RarityRare),
	string(models.RarityLegendary),
}

// Service exposes the resource store operations to the transport layers.
type Service struct {
	db storage
}

func New(db storage) *Service {
	return &Service{db: db}
}

// ListCollections returns the caller's collections with item counts.
func (s *Service) ListCollections(ctx context.Context, userID int64) ([]models.Collection, error) {
	return s.db.ListCollections(ctx, userID)
}

// GetCollection returns the owned collection with its items, or
// models.ErrNotFound when it is absent or owned by someone else.
func (s *Service) GetCollection(ctx context.Context, userID, collectionID int64) (*models.CollectionWithItems, error) {
	collection, found, err := s.db.GetCollection(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}

	return collection, nil
}

// CreateCollection creates a collection owned by the caller and returns
// the created record with an empty item list.
func (s *Service) CreateCollection(ctx context.Context, userID int64, title string) (*models.CollectionWithItems, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidRequest)
	}

	collectionID, err := s.db.CreateCollection(ctx, userID, title, nil)
	if err != nil {
		return nil, err
	}

	result := &models.CollectionWithItems{
		Collection: models.Collection{
			ID:     collectionID,
			Title:  title,
			UserID: userID,
		},
		Items: []models.Item{},
	}

	return result, nil
}

// UpdateCollection applies the patch to the owned collection. An empty
// patch succeeds without touching anything.
func (s *Service) UpdateCollection(ctx context.Context, userID, collectionID int64, patch models.CollectionPatch) error {
	if patch.Empty() {
		return nil
	}

	found, err := s.db.UpdateCollection(ctx, userID, collectionID, patch)
	if err != nil {
		return err
	}
	if !found {
		return models.ErrNotFound
	}

	return nil
}

// DeleteCollection removes the owned collection and cascades to all of its
// items atomically.
func (s *Service) DeleteCollection(ctx context.Context, userID, collectionID int64) error {
	found, err := s.db.DeleteCollection(ctx, userID, collectionID)
	if err != nil {
		return err
	}
	if !found {
		return models.ErrNotFound
	}

	return nil
}

// ListItems returns the items of a collection owned by the caller.
func (s *Service) ListItems(ctx context.Context, userID, collectionID int64) ([]models.Item, error) {
	if collectionID == 0 {
		return nil, fmt.Errorf("%w: collectionId is required", models.ErrInvalidRequest)
	}

	owned, err := s.db.CollectionExists(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, models.ErrNotFound
	}

	return s.db.ListItems(ctx, collectionID)
}

// GetItem returns a single owned item.
func (s *Service) GetItem(ctx context.Context, userID, itemID int64) (*models.Item, error) {
	item, found, err := s.db.GetItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}

	return item, nil
}

// CreateItem creates an item under a collection owned by the caller.
func (s *Service) CreateItem(ctx context.Context, userID int64, request models.ItemCreateRequest) (int64, error) {
	if request.CollectionID == 0 || request.Name == "" {
		return 0, fmt.Errorf("%w: collectionId and name are required", models.ErrInvalidRequest)
	}
	if err := validateItemFields(request.Rarity, request.Price); err != nil {
		return 0, err
	}

	item := &models.Item{
		CollectionID: request.CollectionID,
		Name:         request.Name,
		Description:  request.Description,
		Image:        request.Image,
		Rarity:       request.Rarity,
		Price:        request.Price,
	}

	itemID, owned, err := s.db.CreateItem(ctx, userID, item)
	if err != nil {
		return 0, err
	}
	if !owned {
		return 0, models.ErrNotFound
	}

	return itemID, nil
}

// ReplaceItem overwrites the owned item with the full field set. Fields
// absent from the request become zero values.
func (s *Service) ReplaceItem(ctx context.Context, userID, itemID int64, request models.ItemUpdateRequest) error {
	if request.Name == "" {
		return fmt.Errorf("%w: name is required", models.ErrInvalidRequest)
	}
	if err := validateItemFields(request.Rarity, request.Price); err != nil {
		return err
	}

	found, err := s.db.ReplaceItem(ctx, userID, itemID, models.Item{
		Name:        request.Name,
		Description: request.Description,
		Image:       request.Image,
		Rarity:      request.Rarity,
		Price:       request.Price,
	})
	if err != nil {
		return err
	}
	if !found {
		return models.ErrNotFound
	}

	return nil
}

// PatchItem applies the supplied subset of fields to the owned item. An
// empty patch succeeds without touching anything.
func (s *Service) PatchItem(ctx context.Context, userID, itemID int64, patch models.ItemPatch) error {
	if patch.Empty() {
		return nil
	}

	rarity := ""
	if patch.Rarity != nil {
		rarity = *patch.Rarity
	}
	price := 0.0
	if patch.Price != nil {
		price = *patch.Price
	}
	if err := validateItemFields(rarity, price); err != nil {
		return err
	}

	found, err := s.db.PatchItem(ctx, userID, itemID, patch)
	if err != nil {
		return err
	}
	if !found {
		return models.ErrNotFound
	}

	return nil
}

// DeleteItem removes the owned item.
func (s *Service) DeleteItem(ctx context.Context, userID, itemID int64) error {
	found, err := s.db.DeleteItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if !found {
		return models.ErrNotFound
	}

	return nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func validateItemFields(rarity string, price float64) error {
	if rarity != "" && !funk.ContainsString(validRarities, rarity) {
		return fmt.Errorf("%w: unknown rarity %q", models.ErrInvalidRequest, rarity)
	}
	if price < 0 {
		return fmt.Errorf("%w: price must not be negative", models.ErrInvalidRequest)
	}

	return nil
}
