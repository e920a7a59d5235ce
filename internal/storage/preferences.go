package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/spice-sms/internal/common"
)

// GetPreferences returns the whole legacy preference map.
func (s *SQLiteStorage) GetPreferences(ctx context.Context) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[key] = value
	}

	return prefs, rows.Err()
}

// GetPreference returns a single preference value.
func (s *SQLiteStorage) GetPreference(ctx context.Context, key string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(key, "key"); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference %q: %w", key, err)
	}
	return value, nil
}

// SetPreference writes a preference. Only the migration path and tests write here.
func (s *SQLiteStorage) SetPreference(ctx context.Context, key, value string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("failed to set preference %q: %w", key, classifyError(err))
	}
	return nil
}
