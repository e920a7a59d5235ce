package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
)

const merchantColumns = `id, normalized_name, display_name, category_id, is_user_defined,
	is_excluded_from_expense_tracking, created_at`

// GetMerchant retrieves a merchant by normalized name.
func (s *SQLiteStorage) GetMerchant(ctx context.Context, normalizedName string) (*model.Merchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}

	if merchant := s.getCachedMerchant(normalizedName); merchant != nil {
		copied := *merchant
		return &copied, nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE normalized_name = ?`, normalizedName)
	merchant, err := scanMerchant(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}

	s.cacheMerchant(merchant)
	return merchant, nil
}

// InsertMerchant creates a merchant record. An existing normalized name yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) InsertMerchant(ctx context.Context, merchant *model.Merchant) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMerchant(merchant); err != nil {
		return err
	}

	if merchant.DisplayName == "" {
		merchant.DisplayName = merchant.NormalizedName
	}
	if merchant.CreatedAt.IsZero() {
		merchant.CreatedAt = s.now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO merchants (
			normalized_name, display_name, category_id, is_user_defined,
			is_excluded_from_expense_tracking, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		merchant.NormalizedName,
		merchant.DisplayName,
		merchant.CategoryID,
		merchant.UserDefined,
		merchant.Excluded,
		toMillis(merchant.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert merchant %s: %w", merchant.NormalizedName, classifyError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("merchant %s: %w", merchant.NormalizedName, common.ErrDuplicateEntry)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted id: %w", err)
	}
	merchant.ID = id

	s.cacheMerchant(merchant)
	return nil
}

// ListMerchants returns all merchants ordered by display name.
func (s *SQLiteStorage) ListMerchants(ctx context.Context) ([]model.Merchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryMerchants(ctx, `SELECT `+merchantColumns+` FROM merchants ORDER BY display_name ASC`)
}

// ListExcludedMerchants returns merchants flagged as excluded from expense tracking.
func (s *SQLiteStorage) ListExcludedMerchants(ctx context.Context) ([]model.Merchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryMerchants(ctx, `
		SELECT `+merchantColumns+`
		FROM merchants
		WHERE is_excluded_from_expense_tracking = 1
		ORDER BY display_name ASC
	`)
}

// UpdateMerchantExclusion sets the exclusion flag for a merchant.
func (s *SQLiteStorage) UpdateMerchantExclusion(ctx context.Context, normalizedName string, excluded bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE merchants SET is_excluded_from_expense_tracking = ? WHERE normalized_name = ?
	`, excluded, normalizedName)
	if err != nil {
		return fmt.Errorf("failed to update merchant exclusion: %w", classifyError(err))
	}

	s.invalidateMerchant(normalizedName)
	return requireRowAffected(result)
}

// UpdateMerchantCategory changes the category mapping of a merchant.
func (s *SQLiteStorage) UpdateMerchantCategory(ctx context.Context, normalizedName string, categoryID int64, userDefined bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE merchants SET category_id = ?, is_user_defined = ? WHERE normalized_name = ?
	`, categoryID, userDefined, normalizedName)
	if err != nil {
		return fmt.Errorf("failed to update merchant category: %w", classifyError(err))
	}

	s.invalidateMerchant(normalizedName)
	return requireRowAffected(result)
}

func (s *SQLiteStorage) queryMerchants(ctx context.Context, query string, args ...any) ([]model.Merchant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var merchants []model.Merchant
	for rows.Next() {
		merchant, err := scanMerchant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}
		merchants = append(merchants, *merchant)
	}

	return merchants, rows.Err()
}

func scanMerchant(row rowScanner) (*model.Merchant, error) {
	var (
		merchant  model.Merchant
		createdAt int64
	)
	err := row.Scan(
		&merchant.ID,
		&merchant.NormalizedName,
		&merchant.DisplayName,
		&merchant.CategoryID,
		&merchant.UserDefined,
		&merchant.Excluded,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	merchant.CreatedAt = fromMillis(createdAt)
	return &merchant, nil
}

func requireRowAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// getCachedMerchant retrieves a merchant from the cache.
func (s *SQLiteStorage) getCachedMerchant(name string) *model.Merchant {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.merchantCache = make(map[string]*model.Merchant)
		}
		return nil
	}

	merchant := s.merchantCache[name]
	s.cacheMutex.RUnlock()
	return merchant
}

// cacheMerchant adds a copy of merchant to the cache.
func (s *SQLiteStorage) cacheMerchant(merchant *model.Merchant) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.merchantCache) == 0 {
		s.cacheExpiry = time.Now().Add(merchantCacheTTL)
	}
	copied := *merchant
	s.merchantCache[merchant.NormalizedName] = &copied
}

func (s *SQLiteStorage) invalidateMerchant(name string) {
	s.cacheMutex.Lock()
	delete(s.merchantCache, name)
	s.cacheMutex.Unlock()
}

// WarmMerchantCache loads all merchants into the cache.
func (s *SQLiteStorage) WarmMerchantCache(ctx context.Context) error {
	merchants, err := s.ListMerchants(ctx)
	if err != nil {
		return err
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.merchantCache = make(map[string]*model.Merchant, len(merchants))
	for i := range merchants {
		s.merchantCache[merchants[i].NormalizedName] = &merchants[i]
	}
	s.cacheExpiry = time.Now().Add(merchantCacheTTL)
	return nil
}
