package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/spice-sms/internal/model"
)

// syncStateID is the single row that holds scan bookkeeping.
const syncStateID = 1

// GetSyncState returns the stored scan state, or an idle zero state when none was saved.
func (s *SQLiteStorage) GetSyncState(ctx context.Context) (*model.SyncState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		state                  model.SyncState
		lastSync, lastFullSync int64
		status                 string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sms_sync_timestamp, last_sms_id, total_transactions, last_full_sync, sync_status
		FROM sync_state WHERE id = ?
	`, syncStateID).Scan(&lastSync, &state.LastMessageID, &state.TotalTransactions, &lastFullSync, &status)
	if err == sql.ErrNoRows {
		return &model.SyncState{Status: model.SyncStatusIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	state.LastSyncAt = fromMillis(lastSync)
	state.LastFullSync = fromMillis(lastFullSync)
	state.Status = model.SyncStatus(status)
	return &state, nil
}

// SaveSyncState replaces the stored scan state.
func (s *SQLiteStorage) SaveSyncState(ctx context.Context, state *model.SyncState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("%w: sync state", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_state (
			id, last_sms_sync_timestamp, last_sms_id, total_transactions, last_full_sync, sync_status
		) VALUES (?, ?, ?, ?, ?, ?)
	`, syncStateID,
		toMillis(state.LastSyncAt),
		state.LastMessageID,
		state.TotalTransactions,
		toMillis(state.LastFullSync),
		string(state.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", classifyError(err))
	}
	return nil
}
