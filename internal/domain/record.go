// Package domain holds the synchronized record model and the ports the
// sync core depends on.
package domain

import (
	"errors"
	"time"
)

// Kind names one of the synchronized record kinds.
type Kind string

const (
	KindBodyMetric  Kind = "body_metric"
	KindProfile     Kind = "profile"
	KindDailyMetric Kind = "daily_metric"
	KindWeightLog   Kind = "weight_log"
)

var kindTables = map[Kind]string{
	KindBodyMetric:  "body_metrics",
	KindProfile:     "user_profiles",
	KindDailyMetric: "daily_metrics",
	KindWeightLog:   "weight_logs",
}

// Kinds returns every record kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindBodyMetric, KindProfile, KindDailyMetric, KindWeightLog}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// Table returns the remote table backing the kind.
func (k Kind) Table() string {
	return kindTables[k]
}

// KindForTable maps a remote table name back to its kind.
func KindForTable(table string) (Kind, bool) {
	for k, t := range kindTables {
		if t == table {
			return k, true
		}
	}
	return "", false
}

// SyncStatus tracks whether a cached record matches the remote store.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
)

// Payload is the kind-specific body of a record. The set of implementations
// is closed: BodyMetric, Profile, DailyMetric and WeightLog.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Record is one unit of user data as held in the local cache.
type Record struct {
	ID         string     `json:"id"`
	Owner      string     `json:"ownerId"`
	Payload    Payload    `json:"payload"`
	SyncStatus SyncStatus `json:"syncStatus"`
	IsDeleted  bool       `json:"isDeleted"`
	Origin     string     `json:"origin,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Kind returns the kind of the record's payload, or "" when it has none.
func (r Record) Kind() Kind {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Kind()
}

// Key identifies the record across kinds.
func (r Record) Key() RecordKey {
	return RecordKey{Kind: r.Kind(), ID: r.ID}
}

// Pending reports whether the record carries a local change the remote store
// has not confirmed.
func (r Record) Pending() bool {
	return r.SyncStatus == StatusPending
}

// RecordKey identifies a record. IDs are only unique within a kind.
type RecordKey struct {
	Kind Kind
	ID   string
}

// Errors returned by RemoteStore implementations.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)
