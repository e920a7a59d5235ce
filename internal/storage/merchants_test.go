package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
)

func TestSQLiteStorage_InsertAndGetMerchant(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetMerchant(ctx, "SWIGGY")
	assert.ErrorIs(t, err, common.ErrNotFound)

	merchant := &model.Merchant{
		NormalizedName: "SWIGGY",
		CategoryID:     otherCategoryID(t, store),
	}
	require.NoError(t, store.InsertMerchant(ctx, merchant))
	assert.NotZero(t, merchant.ID)
	assert.Equal(t, "SWIGGY", merchant.DisplayName)

	got, err := store.GetMerchant(ctx, "SWIGGY")
	require.NoError(t, err)
	assert.Equal(t, merchant.ID, got.ID)
	assert.False(t, got.Excluded)

	err = store.InsertMerchant(ctx, &model.Merchant{NormalizedName: "SWIGGY", CategoryID: merchant.CategoryID})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	err = store.InsertMerchant(ctx, &model.Merchant{NormalizedName: "NOCAT"})
	assert.ErrorIs(t, err, ErrInvalidMerchant)
}

func TestSQLiteStorage_MerchantExclusion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	other := otherCategoryID(t, store)

	for _, name := range []string{"AMAZON", "RENT", "SWIGGY"} {
		require.NoError(t, store.InsertMerchant(ctx, &model.Merchant{NormalizedName: name, CategoryID: other}))
	}

	// Prime the cache so the update has something to invalidate.
	_, err := store.GetMerchant(ctx, "RENT")
	require.NoError(t, err)

	require.NoError(t, store.UpdateMerchantExclusion(ctx, "RENT", true))
	assert.ErrorIs(t, store.UpdateMerchantExclusion(ctx, "MISSING", true), common.ErrNotFound)

	excluded, err := store.ListExcludedMerchants(ctx)
	require.NoError(t, err)
	require.Len(t, excluded, 1)
	assert.Equal(t, "RENT", excluded[0].NormalizedName)

	rent, err := store.GetMerchant(ctx, "RENT")
	require.NoError(t, err)
	assert.True(t, rent.Excluded, "cached record must reflect the update")

	all, err := store.ListMerchants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStorage_UpdateMerchantCategory(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	food, err := store.GetCategoryByName(ctx, model.CategoryFood)
	require.NoError(t, err)
	require.NoError(t, store.InsertMerchant(ctx, &model.Merchant{NormalizedName: "CAFE", CategoryID: otherCategoryID(t, store)}))

	require.NoError(t, store.UpdateMerchantCategory(ctx, "CAFE", food.ID, true))

	got, err := store.GetMerchant(ctx, "CAFE")
	require.NoError(t, err)
	assert.Equal(t, food.ID, got.CategoryID)
	assert.True(t, got.UserDefined)
}

func TestSQLiteStorage_MerchantCacheConcurrency(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	other := otherCategoryID(t, store)

	require.NoError(t, store.InsertMerchant(ctx, &model.Merchant{NormalizedName: "UBER", CategoryID: other}))
	require.NoError(t, store.WarmMerchantCache(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.GetMerchant(ctx, "UBER")
			assert.NoError(t, err)
			if got != nil {
				assert.Equal(t, "UBER", got.NormalizedName)
			}
		}()
	}
	wg.Wait()
}
