// Package memorystorage provides a purely in-memory storage backend. It
// reuses the jsondb cache and operations but never touches the filesystem,
// which makes it the default backend for tests and flag-less runs.
package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/kolekt/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
