package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
)

const categoryColumns = `id, name, emoji, color, is_system, display_order, created_at`

// GetCategories returns all categories in display order.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		ORDER BY display_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByName returns a category by its name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name)
	cat, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

// GetCategoryByID returns a category by its ID.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

// CreateCategory creates a user category appended after the existing ones.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name, emoji, color string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	createdAt := s.now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, emoji, color, is_system, display_order, created_at)
		VALUES (?, ?, ?, 0, (SELECT COALESCE(MAX(display_order), -1) + 1 FROM categories), ?)
	`, name, emoji, color, toMillis(createdAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, classifyError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	return s.GetCategoryByID(ctx, id)
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var (
		cat       model.Category
		createdAt int64
	)
	if err := row.Scan(&cat.ID, &cat.Name, &cat.Emoji, &cat.Color, &cat.IsSystem, &cat.DisplayOrder, &createdAt); err != nil {
		return nil, err
	}
	cat.CreatedAt = fromMillis(createdAt)
	return &cat, nil
}
