package model

import "time"

// SyncStatus describes the outcome of the most recent scan.
type SyncStatus string

// Sync status values.
const (
	SyncStatusIdle      SyncStatus = "IDLE"
	SyncStatusRunning   SyncStatus = "RUNNING"
	SyncStatusCompleted SyncStatus = "COMPLETED"
	SyncStatusCancelled SyncStatus = "CANCELLED"
	SyncStatusFailed    SyncStatus = "FAILED"
)

// SyncState tracks scan progress across runs.
type SyncState struct {
	LastSyncAt        time.Time
	LastFullSync      time.Time
	LastMessageID     string
	Status            SyncStatus
	TotalTransactions int
}
