package domain

import "time"

// Operation is the kind of mutation a queued change carries.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// QueuedChange is one local mutation waiting to be applied to the remote store.
type QueuedChange struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Op         Operation `json:"operation"`
	Record     Record    `json:"record"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	RetryCount int       `json:"retryCount"`
}
