package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
)

// ReasonDuplicate is recorded when the insert-time check finds an equivalent transaction.
const ReasonDuplicate = "duplicate transaction"

// ScanResult summarizes one scan.
type ScanResult struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	Since           time.Time
	RunID           string
	Status          model.SyncStatus
	Accepted        []model.Transaction
	Rejected        []model.Rejection
	Total           int
	Processed       int
	AlreadyImported int
	StoreFailures   int
}

// Duplicates counts rejections produced by the insert-time duplicate check.
func (r *ScanResult) Duplicates() int {
	n := 0
	for _, rej := range r.Rejected {
		if rej.Reason == ReasonDuplicate {
			n++
		}
	}
	return n
}

// Scan reads the bounded message window, parses every message and persists the
// accepted ones. Only a message source failure aborts the scan; per-message
// failures are recorded and skipped. A concurrent call returns common.ErrScanInProgress.
func (e *Engine) Scan(ctx context.Context, progress ProgressFunc) (*ScanResult, error) {
	if !e.guard.TryLock() {
		return nil, common.ErrScanInProgress
	}
	defer e.guard.Unlock()

	if progress == nil {
		progress = func(int, int, string) {}
	}

	result := &ScanResult{
		RunID:     e.newRunID(),
		StartedAt: e.now(),
		Status:    model.SyncStatusRunning,
	}

	state := e.loadSyncState(ctx)
	result.Since = e.windowStart(result.StartedAt, state)

	slog.Info("Starting scan",
		"run_id", result.RunID,
		"since", result.Since,
		"max_messages", e.cfg.MaxMessages,
		"incremental", e.cfg.Incremental)

	e.saveSyncState(ctx, &model.SyncState{
		LastSyncAt:        state.LastSyncAt,
		LastFullSync:      state.LastFullSync,
		LastMessageID:     state.LastMessageID,
		TotalTransactions: state.TotalTransactions,
		Status:            model.SyncStatusRunning,
	})

	messages, err := e.source.Messages(ctx, result.Since, e.cfg.MaxMessages)
	if err != nil {
		result.Status = model.SyncStatusFailed
		result.FinishedAt = e.now()
		progress(0, 0, fmt.Sprintf("failed: %v", err))
		state.Status = model.SyncStatusFailed
		e.saveSyncState(ctx, state)
		return result, fmt.Errorf("%w: %w", common.ErrSourceUnavailable, err)
	}
	if len(messages) > e.cfg.MaxMessages {
		messages = messages[:e.cfg.MaxMessages]
	}

	result.Total = len(messages)
	progress(0, result.Total, "scanning messages")

	// Messages are processed to completion; cancellation is observed between batches.
	msgCtx := context.WithoutCancel(ctx)

	var newest model.RawMessage
	for i, msg := range messages {
		e.processMessage(msgCtx, msg, result)
		result.Processed = i + 1
		if msg.Timestamp.After(newest.Timestamp) {
			newest = msg
		}

		if result.Processed%e.cfg.YieldEvery != 0 && result.Processed != result.Total {
			continue
		}

		progress(result.Processed, result.Total, fmt.Sprintf("processed %d of %d", result.Processed, result.Total))
		runtime.Gosched()
		if err := ctx.Err(); err != nil {
			result.Status = model.SyncStatusCancelled
			result.FinishedAt = e.now()
			progress(result.Processed, result.Total, "cancelled")
			state.Status = model.SyncStatusCancelled
			state.TotalTransactions += len(result.Accepted)
			e.saveSyncState(ctx, state)
			slog.Info("Scan cancelled", "run_id", result.RunID, "processed", result.Processed)
			return result, err
		}
	}

	result.Status = model.SyncStatusCompleted
	result.FinishedAt = e.now()

	state.Status = model.SyncStatusCompleted
	state.LastSyncAt = result.StartedAt
	state.TotalTransactions += len(result.Accepted)
	if newest.ID != "" {
		state.LastMessageID = newest.ID
	}
	if !e.cfg.Incremental {
		state.LastFullSync = result.StartedAt
	}
	e.saveSyncState(ctx, state)

	progress(result.Processed, result.Total, fmt.Sprintf("completed: %d accepted, %d rejected", len(result.Accepted), len(result.Rejected)))
	slog.Info("Scan finished",
		"run_id", result.RunID,
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
		"already_imported", result.AlreadyImported,
		"store_failures", result.StoreFailures,
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

// windowStart is the lookback bound, moved forward to the last sync for incremental scans.
func (e *Engine) windowStart(now time.Time, state *model.SyncState) time.Time {
	since := now.Add(-e.cfg.Lookback)
	if e.cfg.Incremental && state.LastSyncAt.After(since) {
		since = state.LastSyncAt
	}
	return since
}

// processMessage runs one message through the pipeline. It never aborts the scan.
func (e *Engine) processMessage(ctx context.Context, msg model.RawMessage, result *ScanResult) {
	parsed := e.parser.Parse(msg)
	if !parsed.Accepted() {
		result.Rejected = append(result.Rejected, *parsed.Rejection)
		return
	}
	candidate := parsed.Candidate

	var (
		txn       model.Transaction
		duplicate bool
		inserted  bool
	)
	err := common.WithRetry(ctx, func() error {
		exists, err := e.store.HasMessage(ctx, candidate.MessageID)
		if err != nil {
			return err
		}
		if exists {
			inserted = false
			duplicate = false
			return nil
		}

		outcome, err := e.dedup.Check(ctx, candidate)
		if err != nil {
			return err
		}
		if outcome.Duplicate {
			duplicate = true
			return nil
		}

		record, err := e.merchants.Ensure(ctx, candidate.MerchantRaw)
		if err != nil {
			return err
		}

		txn = candidate.ToTransaction(record.CategoryID)
		txn.MerchantNormalized = record.NormalizedName
		inserted, err = e.store.InsertTransaction(ctx, &txn)
		return err
	}, e.cfg.StoreRetry)

	switch {
	case err != nil:
		result.StoreFailures++
		common.LogError(err, "failed to store transaction, skipping", common.Fields{
			"message_id": msg.ID,
			"merchant":   candidate.MerchantNormalized,
			"exhausted":  errors.Is(err, common.ErrMaxRetries),
		})
	case duplicate:
		rejection := model.NewRejection(msg, ReasonDuplicate)
		result.Rejected = append(result.Rejected, rejection)
		common.LogDebug("duplicate transaction discarded", common.Fields{
			"message_id": msg.ID,
			"merchant":   candidate.MerchantNormalized,
		})
	case !inserted:
		result.AlreadyImported++
	default:
		result.Accepted = append(result.Accepted, txn)
	}
}

func (e *Engine) loadSyncState(ctx context.Context) *model.SyncState {
	state, err := e.store.GetSyncState(ctx)
	if err != nil {
		common.LogWarn("failed to load sync state, starting fresh", common.Fields{"error": err.Error()})
		return &model.SyncState{Status: model.SyncStatusIdle}
	}
	return state
}

func (e *Engine) saveSyncState(ctx context.Context, state *model.SyncState) {
	// Cancellation must not stop the final state write.
	ctx = context.WithoutCancel(ctx)
	err := common.WithRetry(ctx, func() error {
		return e.store.SaveSyncState(ctx, state)
	}, e.cfg.StoreRetry)
	if err != nil {
		common.LogError(err, "failed to save sync state", common.Fields{"status": string(state.Status)})
	}
}
