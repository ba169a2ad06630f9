// Package jsondb implements the storage interface over an in-memory cache
// that is loaded from a JSON file on startup and flushed back on Close.
// It is the durable single-process backend used when no database DSN is
// configured.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

// CacheStruct is the serialized shape of the whole dataset.
type CacheStruct struct {
	Users       map[int64]*user.User
	Collections map[int64]*models.Collection
	Items       map[int64]*models.Item

	NextUserID       int64
	NextCollectionID int64
	NextItemID       int64
}

// JSONDB keeps the dataset in memory and persists it to fileName on Close.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// NewCache returns an initialized empty cache.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:            map[int64]*user.User{},
		Collections:      map[int64]*models.Collection{},
		Items:            map[int64]*models.Item{},
		NextUserID:       1,
		NextCollectionID: 1,
		NextItemID:       1,
	}
}

// New loads the dataset from fileName, creating an empty file when it does
// not exist yet.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
		if err := parseJSONFile(db.fileName, &db.Cache); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func initDBFile(fileName string) error {
	return writeToJSONFile(fileName, NewCache())
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return decoder.Decode(cacheMap)
}

// CreateUser stores a new user and returns the generated ID.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := *usr
	stored.ID = db.Cache.NextUserID
	db.Cache.NextUserID++
	db.Cache.Users[stored.ID] = &stored

	return stored.ID, nil
}

// GetUserByID fetches a user by ID.
func (db *JSONDB) GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}
	copied := *stored

	return &copied, true, nil
}

// GetUserByUsername fetches a user by the unique login handle.
func (db *JSONDB) GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, stored := range db.Cache.Users {
		if stored.Username == username {
			copied := *stored
			return &copied, true, nil
		}
	}

	return nil, false, nil
}

// GetNumberOfUsers returns the total amount of registered users.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// ListCollections returns the caller's collections ordered by ID, each
// with its computed item count.
func (db *JSONDB) ListCollections(ctx context.Context, userID int64) ([]models.Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []models.Collection{}
	for _, stored := range db.Cache.Collections {
		if stored.UserID != userID {
			continue
		}
		copied := *stored
		copied.ItemsCount = db.countItems(stored.ID)
		result = append(result, copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

// GetCollection returns the owned collection materialized with its items.
func (db *JSONDB) GetCollection(
	ctx context.Context,
	userID, collectionID int64,
) (*models.CollectionWithItems, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored, found := db.Cache.Collections[collectionID]
	if !found || stored.UserID != userID {
		return nil, false, nil
	}

	result := &models.CollectionWithItems{Collection: *stored}
	result.Items = db.listItems(collectionID)
	result.ItemsCount = len(result.Items)

	return result, true, nil
}

// CreateCollection stores a new collection owned by userID.
func (db *JSONDB) CreateCollection(
	ctx context.Context,
	userID int64,
	title string,
	transaction *sql.Tx,
) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := &models.Collection{
		ID:     db.Cache.NextCollectionID,
		Title:  title,
		UserID: userID,
	}
	db.Cache.NextCollectionID++
	db.Cache.Collections[stored.ID] = stored

	return stored.ID, nil
}

// UpdateCollection writes the non-nil fields of the patch into the owned
// collection.
func (db *JSONDB) UpdateCollection(
	ctx context.Context,
	userID, collectionID int64,
	patch models.CollectionPatch,
) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, found := db.Cache.Collections[collectionID]
	if !found || stored.UserID != userID {
		return false, nil
	}

	if patch.Title != nil {
		stored.Title = *patch.Title
	}

	return true, nil
}

// DeleteCollection removes the owned collection together with its items.
func (db *JSONDB) DeleteCollection(ctx context.Context, userID, collectionID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, found := db.Cache.Collections[collectionID]
	if !found || stored.UserID != userID {
		return false, nil
	}

	for itemID, item := range db.Cache.Items {
		if item.CollectionID == collectionID {
			delete(db.Cache.Items, itemID)
		}
	}
	delete(db.Cache.Collections, collectionID)

	return true, nil
}

// CollectionExists reports whether the collection exists and is owned by userID.
func (db *JSONDB) CollectionExists(ctx context.Context, userID, collectionID int64) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored, found := db.Cache.Collections[collectionID]

	return found && stored.UserID == userID, nil
}

// ListItems returns the items of a collection ordered by ID.
func (db *JSONDB) ListItems(ctx context.Context, collectionID int64) ([]models.Item, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.listItems(collectionID), nil
}

// GetItem fetches a single item; ownership is derived through the parent
// collection.
func (db *JSONDB) GetItem(ctx context.Context, userID, itemID int64) (*models.Item, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored, found := db.Cache.Items[itemID]
	if !found || !db.ownsCollection(userID, stored.CollectionID) {
		return nil, false, nil
	}
	copied := *stored

	return &copied, true, nil
}

// CreateItem stores the item when its parent collection is owned by userID.
func (db *JSONDB) CreateItem(ctx context.Context, userID int64, item *models.Item) (int64, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.ownsCollection(userID, item.CollectionID) {
		return 0, false, nil
	}

	stored := *item
	stored.ID = db.Cache.NextItemID
	db.Cache.NextItemID++
	db.Cache.Items[stored.ID] = &stored

	return stored.ID, true, nil
}

// ReplaceItem overwrites every mutable field of the owned item.
func (db *JSONDB) ReplaceItem(ctx context.Context, userID, itemID int64, item models.Item) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, found := db.Cache.Items[itemID]
	if !found || !db.ownsCollection(userID, stored.CollectionID) {
		return false, nil
	}

	stored.Name = item.Name
	stored.Description = item.Description
	stored.Image = item.Image
	stored.Rarity = item.Rarity
	stored.Price = item.Price

	return true, nil
}

// PatchItem writes only the non-nil fields of the patch into the owned item.
func (db *JSONDB) PatchItem(ctx context.Context, userID, itemID int64, patch models.ItemPatch) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, found := db.Cache.Items[itemID]
	if !found || !db.ownsCollection(userID, stored.CollectionID) {
		return false, nil
	}

	if patch.Name != nil {
		stored.Name = *patch.Name
	}
	if patch.Description != nil {
		stored.Description = *patch.Description
	}
	if patch.Image != nil {
		stored.Image = *patch.Image
	}
	if patch.Rarity != nil {
		stored.Rarity = *patch.Rarity
	}
	if patch.Price != nil {
		stored.Price = *patch.Price
	}

	return true, nil
}

// DeleteItem removes the owned item.
func (db *JSONDB) DeleteItem(ctx context.Context, userID, itemID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, found := db.Cache.Items[itemID]
	if !found || !db.ownsCollection(userID, stored.CollectionID) {
		return false, nil
	}

	delete(db.Cache.Items, itemID)

	return true, nil
}

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache back to the backing JSON file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

// listItems expects the caller to hold at least the read lock.
func (db *JSONDB) listItems(collectionID int64) []models.Item {
	result := []models.Item{}
	for _, stored := range db.Cache.Items {
		if stored.CollectionID == collectionID {
			result = append(result, *stored)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

// countItems expects the caller to hold at least the read lock.
func (db *JSONDB) countItems(collectionID int64) int {
	count := 0
	for _, stored := range db.Cache.Items {
		if stored.CollectionID == collectionID {
			count++
		}
	}

	return count
}

// ownsCollection expects the caller to hold at least the read lock.
func (db *JSONDB) ownsCollection(userID, collectionID int64) bool {
	stored, found := db.Cache.Collections[collectionID]

	return found && stored.UserID == userID
}
