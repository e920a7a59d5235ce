// Package testutil provides shared fixtures for package tests: a migrated
// in-memory SQLite store and an in-memory message source.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/storage"
)

// TestDB wraps a migrated in-memory store.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions configures SetupTestDBWithOptions.
type TestDBOptions struct {
	Clock       func() time.Time
	Preferences map[string]string
	Merchants   []model.Merchant
}

// SetupTestDB creates a migrated in-memory database with the seeded system categories.
// It is closed automatically when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	otherID := db.MustCategoryID(model.CategoryOther)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database and applies the given seed data.
// Merchants with a zero CategoryID are assigned to Other.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if opts.Clock != nil {
		store.SetClock(opts.Clock)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}

	for key, value := range opts.Preferences {
		if err := store.SetPreference(ctx, key, value); err != nil {
			t.Fatalf("failed to seed preference %q: %v", key, err)
		}
	}

	for i := range opts.Merchants {
		m := opts.Merchants[i]
		if m.CategoryID == 0 {
			m.CategoryID = db.MustCategoryID(model.CategoryOther)
		}
		if err := store.InsertMerchant(ctx, &m); err != nil {
			t.Fatalf("failed to seed merchant %q: %v", m.NormalizedName, err)
		}
	}

	return db
}

// MustCategoryID returns the id of a seeded category or fails the test.
func (db *TestDB) MustCategoryID(name string) int64 {
	db.t.Helper()
	cat, err := db.Storage.GetCategoryByName(context.Background(), name)
	if err != nil {
		db.t.Fatalf("category %q not found: %v", name, err)
	}
	return cat.ID
}

// MustInsertTransaction stores txn or fails the test. A zero CategoryID is set to Other.
func (db *TestDB) MustInsertTransaction(txn model.Transaction) model.Transaction {
	db.t.Helper()
	if txn.CategoryID == 0 {
		txn.CategoryID = db.MustCategoryID(model.CategoryOther)
	}
	inserted, err := db.Storage.InsertTransaction(context.Background(), &txn)
	if err != nil {
		db.t.Fatalf("failed to insert transaction %q: %v", txn.MessageID, err)
	}
	if !inserted {
		db.t.Fatalf("transaction %q was already present", txn.MessageID)
	}
	return txn
}
