// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sms/internal/model"
)

// MessageSource yields raw notifications for a bounded historical window.
type MessageSource interface {
	// Messages returns at most limit messages received at or after since.
	// A zero limit means no cap.
	Messages(ctx context.Context, since time.Time, limit int) ([]model.RawMessage, error)
}

// SimilarQuery describes a tolerance-window lookup for insert-time deduplication.
type SimilarQuery struct {
	From      time.Time
	To        time.Time
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	Merchant  string
	Bank      string
}

// TransactionStore persists accepted transactions.
type TransactionStore interface {
	// InsertTransaction stores txn unless its message id already exists.
	// inserted is false when the message id was already present.
	InsertTransaction(ctx context.Context, txn *model.Transaction) (inserted bool, err error)
	HasMessage(ctx context.Context, messageID string) (bool, error)
	FindSimilarTransactions(ctx context.Context, q SimilarQuery) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	GetAllTransactions(ctx context.Context) ([]model.Transaction, error)
	GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
	UpdateTransactionCategoryForMerchant(ctx context.Context, merchant string, categoryID int64) (int64, error)
}

// MerchantStore persists merchant records keyed by normalized name.
type MerchantStore interface {
	// GetMerchant returns common.ErrNotFound when no record exists.
	GetMerchant(ctx context.Context, normalizedName string) (*model.Merchant, error)
	InsertMerchant(ctx context.Context, merchant *model.Merchant) error
	ListMerchants(ctx context.Context) ([]model.Merchant, error)
	ListExcludedMerchants(ctx context.Context) ([]model.Merchant, error)
	// UpdateMerchantExclusion returns common.ErrNotFound when no record matched.
	UpdateMerchantExclusion(ctx context.Context, normalizedName string, excluded bool) error
	UpdateMerchantCategory(ctx context.Context, normalizedName string, categoryID int64, userDefined bool) error
}

// CategoryStore provides read access to categories.
type CategoryStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	// GetCategoryByName returns common.ErrNotFound when no category has that name.
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
}

// PreferenceStore is the legacy key/value exclusion store. The core only reads it.
type PreferenceStore interface {
	GetPreferences(ctx context.Context) (map[string]string, error)
	// GetPreference returns common.ErrNotFound when key is absent.
	GetPreference(ctx context.Context, key string) (string, error)
}

// SyncStateStore tracks scan bookkeeping between runs.
type SyncStateStore interface {
	GetSyncState(ctx context.Context) (*model.SyncState, error)
	SaveSyncState(ctx context.Context, state *model.SyncState) error
}

// Storage is everything the SQLite backend provides.
type Storage interface {
	TransactionStore
	MerchantStore
	CategoryStore
	PreferenceStore
	SyncStateStore

	Migrate(ctx context.Context) error
	Close() error
}
