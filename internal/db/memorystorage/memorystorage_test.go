package memorystorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

func Test(t *testing.T) {
	t.Run("The base memorystorage package test", func(t *testing.T) {
		theStorage, err := New()
		require.NoError(t, err)
		require.NotNil(t, theStorage)

		ctx := context.Background()

		userID, err := theStorage.CreateUser(ctx, &user.User{Username: "admin"}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), userID)

		collectionID, err := theStorage.CreateCollection(ctx, userID, "Stamps", nil)
		require.NoError(t, err)

		itemID, owned, err := theStorage.CreateItem(ctx, userID, &models.Item{
			CollectionID: collectionID,
			Name:         "Penny Black",
		})
		require.NoError(t, err)
		require.True(t, owned)

		withItems, found, err := theStorage.GetCollection(ctx, userID, collectionID)
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, withItems.Items, 1)
		assert.Equal(t, itemID, withItems.Items[0].ID)

		err = theStorage.Ping(ctx)
		assert.NoError(t, err, "The memorystorage.Ping() should not return error")

		err = theStorage.Close()
		assert.NoError(t, err, "The memorystorage.Close() should not return error")

		// Close must not discard anything, there is no backing file
		_, found, err = theStorage.GetCollection(ctx, userID, collectionID)
		require.NoError(t, err)
		assert.True(t, found)
	})
}
