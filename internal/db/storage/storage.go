// Package storage declares the contract implemented by every storage
// backend of the collections service. Every query that touches an owned
// resource embeds the caller's user ID in its predicate; "absent" and
// "not owned" are indistinguishable to callers.
package storage

import (
	"context"
	"database/sql"

	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

type Storage interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error)

	GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	ListCollections(ctx context.Context, userID int64) ([]models.Collection, error)

	// GetCollection returns the owned collection materialized with its
	// items, or false when no collection matches the (id, owner) pair.
	GetCollection(ctx context.Context, userID, collectionID int64) (*models.CollectionWithItems, bool, error)

	CreateCollection(
		ctx context.Context,
		userID int64,
		title string,
		transaction *sql.Tx,
	) (int64, error)

	UpdateCollection(
		ctx context.Context,
		userID, collectionID int64,
		patch models.CollectionPatch,
	) (bool, error)

	// DeleteCollection removes the owned collection and all of its items
	// atomically. Returns false when no owned row matched.
	DeleteCollection(ctx context.Context, userID, collectionID int64) (bool, error)

	CollectionExists(ctx context.Context, userID, collectionID int64) (bool, error)

	ListItems(ctx context.Context, collectionID int64) ([]models.Item, error)

	// GetItem resolves ownership by joining through the parent collection.
	GetItem(ctx context.Context, userID, itemID int64) (*models.Item, bool, error)

	// CreateItem inserts the item if its parent collection is owned by
	// userID, in a single statement. Returns false when it is not.
	CreateItem(ctx context.Context, userID int64, item *models.Item) (int64, bool, error)

	// ReplaceItem overwrites every mutable field of the owned item.
	ReplaceItem(ctx context.Context, userID, itemID int64, item models.Item) (bool, error)

	// PatchItem writes only the non-nil fields of the patch.
	PatchItem(ctx context.Context, userID, itemID int64, patch models.ItemPatch) (bool, error)

	DeleteItem(ctx context.Context, userID, itemID int64) (bool, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}
