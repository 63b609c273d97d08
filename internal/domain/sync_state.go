package domain

import "time"

// Status is the manager-level sync status.
type Status string

const (
	StateIdle    Status = "idle"
	StateSyncing Status = "syncing"
	StateSuccess Status = "success"
	StateError   Status = "error"
	StateOffline Status = "offline"
)

// SyncState describes the synchronization manager's current condition.
type SyncState struct {
	IsSyncing     bool       `json:"isSyncing"`
	LastSyncAt    *time.Time `json:"lastSyncAt"`
	Status        Status     `json:"status"`
	PendingCount  int        `json:"pendingCount"`
	IsOnline      bool       `json:"isOnline"`
	FeedConnected bool       `json:"feedConnected"`
	LastError     string     `json:"lastError,omitempty"`
}
