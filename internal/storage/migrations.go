package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-sms/internal/model"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

// defaultCategory is a category seeded by the initial migration.
type defaultCategory struct {
	Name  string
	Emoji string
	Color string
}

// DefaultCategories are the system categories, in display order.
var DefaultCategories = []defaultCategory{
	{Name: model.CategoryFood, Emoji: "🍽️", Color: "#FF6B6B"},
	{Name: model.CategoryTransport, Emoji: "🚗", Color: "#4ECDC4"},
	{Name: model.CategoryGroceries, Emoji: "🛒", Color: "#95E1D3"},
	{Name: model.CategoryHealthcare, Emoji: "🏥", Color: "#F38181"},
	{Name: model.CategoryEntertainment, Emoji: "🎬", Color: "#AA96DA"},
	{Name: model.CategoryShopping, Emoji: "🛍️", Color: "#FCBAD3"},
	{Name: model.CategoryUtilities, Emoji: "💡", Color: "#FFE66D"},
	{Name: model.CategoryOther, Emoji: "📦", Color: "#666666"},
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					emoji TEXT NOT NULL DEFAULT '',
					color TEXT NOT NULL DEFAULT '',
					is_system INTEGER NOT NULL DEFAULT 0,
					display_order INTEGER NOT NULL DEFAULT 0,
					created_at INTEGER NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS merchants (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					normalized_name TEXT NOT NULL,
					display_name TEXT NOT NULL,
					category_id INTEGER NOT NULL,
					is_user_defined INTEGER NOT NULL DEFAULT 0,
					is_excluded_from_expense_tracking INTEGER NOT NULL DEFAULT 0,
					created_at INTEGER NOT NULL,
					FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
				)`,
				`CREATE UNIQUE INDEX idx_merchants_normalized_name ON merchants(normalized_name)`,
				`CREATE INDEX idx_merchants_category_id ON merchants(category_id)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					sms_id TEXT NOT NULL,
					amount_minor INTEGER NOT NULL,
					raw_merchant TEXT NOT NULL,
					normalized_merchant TEXT NOT NULL,
					bank_name TEXT NOT NULL,
					transaction_date INTEGER NOT NULL,
					raw_sms_body TEXT NOT NULL,
					confidence_score REAL NOT NULL,
					is_debit INTEGER NOT NULL,
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
				`CREATE UNIQUE INDEX idx_transactions_sms_id ON transactions(sms_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(transaction_date)`,
				`CREATE INDEX idx_transactions_merchant ON transactions(normalized_merchant, bank_name)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}

			now := time.Now().UnixMilli()
			for i, cat := range DefaultCategories {
				if _, err := tx.Exec(`
					INSERT OR IGNORE INTO categories (name, emoji, color, is_system, display_order, created_at)
					VALUES (?, ?, ?, 1, ?, ?)
				`, cat.Name, cat.Emoji, cat.Color, i, now); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", cat.Name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add sync state tracking",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS sync_state (
					id INTEGER PRIMARY KEY,
					last_sms_sync_timestamp INTEGER NOT NULL DEFAULT 0,
					last_sms_id TEXT NOT NULL DEFAULT '',
					total_transactions INTEGER NOT NULL DEFAULT 0,
					last_full_sync INTEGER NOT NULL DEFAULT 0,
					sync_status TEXT NOT NULL DEFAULT 'IDLE'
				)
			`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Add legacy preference store",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS preferences (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at INTEGER NOT NULL DEFAULT 0
				)
			`)
			return err
		},
	},
	{
		Version:     4,
		Description: "Snapshot merchant category on transactions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE transactions ADD COLUMN category_id INTEGER NOT NULL DEFAULT 0`,
				// Backfill from the merchant mapping for rows written before the column existed.
				`UPDATE transactions SET category_id = COALESCE(
					(SELECT m.category_id FROM merchants m WHERE m.normalized_name = transactions.normalized_merchant),
					0)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
