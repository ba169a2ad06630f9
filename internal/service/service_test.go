package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/kolekt/internal/db/memorystorage"
	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

func newTestService(t *testing.T) (*Service, int64) {
	t.Helper()

	db, err := memorystorage.New()
	require.NoError(t, err)

	userID, err := db.CreateUser(context.Background(), &user.User{Username: "owner"}, nil)
	require.NoError(t, err)

	return New(db), userID
}

func TestCreateCollectionRequiresTitle(t *testing.T) {
	svc, userID := newTestService(t)

	_, err := svc.CreateCollection(context.Background(), userID, "")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestGetCollectionNotFound(t *testing.T) {
	svc, userID := newTestService(t)

	_, err := svc.GetCollection(context.Background(), userID, 777)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateCollectionEmptyPatchIsNoOp(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCollection(ctx, userID, "Stamps")
	require.NoError(t, err)

	// the empty patch must succeed even though nothing is written
	err = svc.UpdateCollection(ctx, userID, created.ID, models.CollectionPatch{})
	assert.NoError(t, err)

	fetched, err := svc.GetCollection(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stamps", fetched.Title)

	// but a patch against a missing collection still reports not found
	title := "anything"
	err = svc.UpdateCollection(ctx, userID, 777, models.CollectionPatch{Title: &title})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListItemsValidation(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListItems(ctx, userID, 0)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = svc.ListItems(ctx, userID, 777)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateItemValidation(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCollection(ctx, userID, "Stamps")
	require.NoError(t, err)

	testCases := []struct {
		name        string
		request     models.ItemCreateRequest
		expectedErr error
	}{
		{
			name: "positive",
			request: models.ItemCreateRequest{
				CollectionID: created.ID,
				Name:         "Penny Black",
				Rarity:       string(models.RarityLegendary),
				Price:        3000,
			},
		},
		{
			name:        "missing_name",
			request:     models.ItemCreateRequest{CollectionID: created.ID},
			expectedErr: models.ErrInvalidRequest,
		},
		{
			name:        "missing_collection",
			request:     models.ItemCreateRequest{Name: "Penny Black"},
			expectedErr: models.ErrInvalidRequest,
		},
		{
			name: "unknown_rarity",
			request: models.ItemCreateRequest{
				CollectionID: created.ID,
				Name:         "Penny Black",
				Rarity:       "Mythic",
			},
			expectedErr: models.ErrInvalidRequest,
		},
		{
			name: "negative_price",
			request: models.ItemCreateRequest{
				CollectionID: created.ID,
				Name:         "Penny Black",
				Price:        -1,
			},
			expectedErr: models.ErrInvalidRequest,
		},
		{
			name: "foreign_or_missing_collection",
			request: models.ItemCreateRequest{
				CollectionID: 777,
				Name:         "Penny Black",
			},
			expectedErr: models.ErrNotFound,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			itemID, err := svc.CreateItem(ctx, userID, testCase.request)

			if testCase.expectedErr != nil {
				assert.ErrorIs(t, err, testCase.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.NotZero(t, itemID)
		})
	}
}

func TestPatchItemEmptyPatchIsNoOp(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCollection(ctx, userID, "Stamps")
	require.NoError(t, err)
	itemID, err := svc.CreateItem(ctx, userID, models.ItemCreateRequest{
		CollectionID: created.ID,
		Name:         "Penny Black",
	})
	require.NoError(t, err)

	err = svc.PatchItem(ctx, userID, itemID, models.ItemPatch{})
	assert.NoError(t, err)

	// an empty patch succeeds even for a nonexistent item, nothing is looked up
	err = svc.PatchItem(ctx, userID, 777, models.ItemPatch{})
	assert.NoError(t, err)

	badRarity := "Mythic"
	err = svc.PatchItem(ctx, userID, itemID, models.ItemPatch{Rarity: &badRarity})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestReplaceItemValidation(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCollection(ctx, userID, "Stamps")
	require.NoError(t, err)
	itemID, err := svc.CreateItem(ctx, userID, models.ItemCreateRequest{
		CollectionID: created.ID,
		Name:         "Penny Black",
		Description:  "original",
	})
	require.NoError(t, err)

	err = svc.ReplaceItem(ctx, userID, itemID, models.ItemUpdateRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	err = svc.ReplaceItem(ctx, userID, itemID, models.ItemUpdateRequest{Name: "Penny Red"})
	require.NoError(t, err)

	item, err := svc.GetItem(ctx, userID, itemID)
	require.NoError(t, err)
	assert.Equal(t, "Penny Red", item.Name)
	assert.Equal(t, "", item.Description)
}

func TestDeleteItemNotFound(t *testing.T) {
	svc, userID := newTestService(t)

	err := svc.DeleteItem(context.Background(), userID, 777)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
