package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sms/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func otherCategoryID(t *testing.T, store *SQLiteStorage) int64 {
	t.Helper()
	cat, err := store.GetCategoryByName(context.Background(), model.CategoryOther)
	require.NoError(t, err)
	return cat.ID
}

func makeTransaction(messageID, merchant string, amount string, date time.Time) model.Transaction {
	return model.Transaction{
		MessageID:          messageID,
		Amount:             decimal.RequireFromString(amount),
		MerchantRaw:        merchant,
		MerchantNormalized: merchant,
		BankName:           "HDFC Bank",
		TransactionDate:    date,
		RawBody:            "spent at " + merchant,
		Confidence:         0.7,
		IsDebit:            true,
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(" ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestSQLiteStorage_MigrateIsIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	cats, err := store.GetCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, len(DefaultCategories))
}

func TestSQLiteStorage_DefaultCategories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cats, err := store.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, len(DefaultCategories))

	for i, cat := range cats {
		assert.Equal(t, DefaultCategories[i].Name, cat.Name)
		assert.True(t, cat.IsSystem)
		assert.Equal(t, i, cat.DisplayOrder)
	}

	custom, err := store.CreateCategory(ctx, "Rent", "🏠", "#123456")
	require.NoError(t, err)
	assert.False(t, custom.IsSystem)
	assert.Equal(t, len(DefaultCategories), custom.DisplayOrder)

	byID, err := store.GetCategoryByID(ctx, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent", byID.Name)
}

func TestSQLiteStorage_SyncState(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	state, err := store.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusIdle, state.Status)
	assert.True(t, state.LastSyncAt.IsZero())

	now := time.UnixMilli(1735117200000)
	require.NoError(t, store.SaveSyncState(ctx, &model.SyncState{
		LastSyncAt:        now,
		LastFullSync:      now,
		LastMessageID:     "sms-9",
		TotalTransactions: 12,
		Status:            model.SyncStatusCompleted,
	}))

	state, err = store.GetSyncState(ctx)
	require.NoError(t, err)
	assert.True(t, now.Equal(state.LastSyncAt))
	assert.Equal(t, "sms-9", state.LastMessageID)
	assert.Equal(t, 12, state.TotalTransactions)
	assert.Equal(t, model.SyncStatusCompleted, state.Status)

	assert.ErrorIs(t, store.SaveSyncState(ctx, nil), ErrNilParameter)
}
