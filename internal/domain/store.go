package domain

import "context"

// LocalCache is the port for the on-device record store. GetRecord returns
// nil, nil when the record is absent.
type LocalCache interface {
	SaveRecord(ctx context.Context, r Record) error
	GetRecord(ctx context.Context, kind Kind, id string) (*Record, error)
	DeleteRecord(ctx context.Context, kind Kind, id string) error
	ListRecords(ctx context.Context, kind Kind, owner string) ([]Record, error)
	UnsyncedRecords(ctx context.Context) ([]Record, error)
}

// QueueStore persists the change queue as a whole, in order.
type QueueStore interface {
	LoadQueue(ctx context.Context) ([]QueuedChange, error)
	SaveQueue(ctx context.Context, changes []QueuedChange) error
}

// RemoteStore is the port for the remote row store. Writes are keyed by record
// id and filtered by owner. Insert returns ErrConflict when the id exists;
// Update and Delete return ErrNotFound when it does not.
type RemoteStore interface {
	Select(ctx context.Context, kind Kind, owner string) ([]Record, error)
	Insert(ctx context.Context, r Record) error
	Update(ctx context.Context, r Record) error
	Delete(ctx context.Context, r Record) error
	Upsert(ctx context.Context, r Record) error
}
