package storage

import (
	"context"
	"errors"

	"github.com/dimitrije/appsync-api/internal/models"
)

var (
	// ErrCollectionDeleted reports a tombstoned collection: deleted and not
	// yet recreated by a subsequent write.
	ErrCollectionDeleted = errors.New("collection deleted")

	// ErrPreconditionFailed reports a stale write: the collection was
	// modified after the client's lastget timestamp. Nothing is written.
	ErrPreconditionFailed = errors.New("collection modified since last get")

	// ErrStorageUnavailable is the only failure kind a backend may surface
	// for connectivity or driver faults.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
)

// Storage is the contract every sync backend implements.
//
// Timestamps are int64 milliseconds since the Unix epoch. Within one
// collection they strictly increase across writes, so a ReadSince at the
// until value of a previous read returns an empty delta until the next write.
type Storage interface {
	// ReadSince returns every app record with last_modified > since,
	// ordered by last_modified, together with the collection uuid and the
	// server timestamp captured at read time. A tombstoned collection
	// yields ErrCollectionDeleted; a collection that never existed yields
	// an empty page with no uuid.
	ReadSince(ctx context.Context, user, collection string, since int64) (*models.CollectionPage, error)

	// Write upserts the given records keyed by origin in one atomic
	// transaction. When lastGet is non-nil and older than the collection's
	// current last_modified the write is rejected with
	// ErrPreconditionFailed and no state changes. Writing to a tombstoned
	// or absent collection recreates it with a fresh uuid.
	Write(ctx context.Context, user, collection string, apps []models.AppRecord, lastGet *int64) (*models.WriteResult, error)

	// Delete removes all records and tombstones the collection, recording
	// the audit payload verbatim. Idempotent.
	Delete(ctx context.Context, user, collection string, req models.DeleteRequest) error

	// HealthCheck verifies the backend can serve requests.
	HealthCheck(ctx context.Context) error
}
