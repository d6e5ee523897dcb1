package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/dimitrije/appsync-api/internal/cache"
	"github.com/dimitrije/appsync-api/internal/config"
	"github.com/dimitrije/appsync-api/internal/database"
	"github.com/dimitrije/appsync-api/internal/models"
)

func init() {
	Register("mirrored", openMirrored)
}

func openMirrored(ctx context.Context, cfg *config.Config, c cache.Cache) (Storage, error) {
	if len(cfg.ReplicaURLs) == 0 {
		return nil, fmt.Errorf("mirrored backend requires at least one replica URL")
	}

	readwrite, err := openSQL(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	replicas := make([]Storage, 0, len(cfg.ReplicaURLs))
	for _, url := range cfg.ReplicaURLs {
		db, err := database.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to replica: %w", err)
		}
		// replicas are read-only: no migrations, no metadata cache
		replicas = append(replicas, NewSQLBackend(db, nil))
	}

	return NewMirroredBackend(readwrite, replicas...), nil
}

// MirroredBackend composes a read-write backend with read-only replicas.
// Writes, deletes and health checks go to the read-write instance; reads
// rotate over the replicas and fall back to the read-write instance when a
// replica is unreachable. A read served by a lagging replica may be stale;
// the since/until delta protocol makes that safe for clients.
type MirroredBackend struct {
	readwrite Storage
	replicas  []Storage
	next      atomic.Uint64
}

func NewMirroredBackend(readwrite Storage, replicas ...Storage) *MirroredBackend {
	return &MirroredBackend{readwrite: readwrite, replicas: replicas}
}

func (m *MirroredBackend) ReadSince(ctx context.Context, user, collection string, since int64) (*models.CollectionPage, error) {
	if len(m.replicas) > 0 {
		replica := m.replicas[m.next.Add(1)%uint64(len(m.replicas))]
		page, err := replica.ReadSince(ctx, user, collection, since)
		if err == nil || !errors.Is(err, ErrStorageUnavailable) {
			return page, err
		}
		log.Printf("replica read failed, falling back to read-write instance: %v", err)
	}
	return m.readwrite.ReadSince(ctx, user, collection, since)
}

func (m *MirroredBackend) Write(ctx context.Context, user, collection string, apps []models.AppRecord, lastGet *int64) (*models.WriteResult, error) {
	return m.readwrite.Write(ctx, user, collection, apps, lastGet)
}

func (m *MirroredBackend) Delete(ctx context.Context, user, collection string, req models.DeleteRequest) error {
	return m.readwrite.Delete(ctx, user, collection, req)
}

func (m *MirroredBackend) HealthCheck(ctx context.Context) error {
	return m.readwrite.HealthCheck(ctx)
}
