package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dimitrije/appsync-api/internal/cache"
	"github.com/dimitrije/appsync-api/internal/config"
	"github.com/dimitrije/appsync-api/internal/database"
	"github.com/dimitrije/appsync-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const metaTTL = 5 * time.Minute

func init() {
	Register("sql", openSQL)
}

func openSQL(ctx context.Context, cfg *config.Config, c cache.Cache) (Storage, error) {
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLBackend(db, c), nil
}

// SQLBackend implements Storage on Postgres. The cache, when present, only
// short-circuits collection metadata reads; the precondition check always
// re-reads the authoritative row under the transaction lock.
type SQLBackend struct {
	db    *database.DB
	cache cache.Cache
}

func NewSQLBackend(db *database.DB, c cache.Cache) *SQLBackend {
	return &SQLBackend{db: db, cache: c}
}

type collMeta struct {
	ID           uuid.UUID `json:"id"`
	UUID         uuid.UUID `json:"uuid"`
	LastModified int64     `json:"last_modified"`
	Deleted      bool      `json:"deleted"`
}

func (s *SQLBackend) ReadSince(ctx context.Context, user, collection string, since int64) (*models.CollectionPage, error) {
	meta, err := s.collectionMeta(ctx, user, collection)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		// never created: freshly empty
		return &models.CollectionPage{Since: since, Until: nowMillis(), Apps: []models.AppRecord{}}, nil
	}
	if meta.Deleted {
		return nil, ErrCollectionDeleted
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT data, last_modified FROM applications
		WHERE collection_id = $1 AND last_modified > $2
		ORDER BY last_modified
	`, meta.ID, since)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	apps := []models.AppRecord{}
	for rows.Next() {
		var (
			data         []byte
			lastModified int64
		)
		if err := rows.Scan(&data, &lastModified); err != nil {
			return nil, storageErr(err)
		}
		var app models.AppRecord
		if err := json.Unmarshal(data, &app); err != nil {
			return nil, storageErr(err)
		}
		app.LastModified = lastModified
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	// until must cover every returned timestamp even when the wall clock
	// lags the collection high-water mark
	until := nowMillis()
	if meta.LastModified > until {
		until = meta.LastModified
	}

	return &models.CollectionPage{
		UUID:  meta.UUID,
		Since: since,
		Until: until,
		Apps:  apps,
	}, nil
}

func (s *SQLBackend) Write(ctx context.Context, user, collection string, apps []models.AppRecord, lastGet *int64) (*models.WriteResult, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		collID   uuid.UUID
		collUUID uuid.UUID
		last     int64
		deleted  bool
	)
	err = tx.QueryRow(ctx, `
		SELECT id, uuid, last_modified, deleted FROM collections
		WHERE user_email = $1 AND name = $2
		FOR UPDATE
	`, user, collection).Scan(&collID, &collUUID, &last, &deleted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO collections (user_email, name)
			VALUES ($1, $2)
			RETURNING id, uuid, last_modified
		`, user, collection).Scan(&collID, &collUUID, &last)
		if err != nil {
			return nil, storageErr(err)
		}
	case err != nil:
		return nil, storageErr(err)
	case deleted:
		// recreation after a tombstone rotates the uuid
		err = tx.QueryRow(ctx, `
			UPDATE collections
			SET uuid = uuid_generate_v4(), deleted = FALSE,
			    delete_client_id = NULL, delete_reason = NULL, updated_at = NOW()
			WHERE id = $1
			RETURNING uuid
		`, collID).Scan(&collUUID)
		if err != nil {
			return nil, storageErr(err)
		}
	default:
		if lastGet != nil && *lastGet < last {
			return nil, ErrPreconditionFailed
		}
	}

	until := nowMillis()
	if until <= last {
		until = last + 1
	}

	for _, app := range apps {
		app.LastModified = until
		data, err := json.Marshal(app)
		if err != nil {
			return nil, storageErr(err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO applications (collection_id, origin, last_modified, data)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection_id, origin)
			DO UPDATE SET last_modified = EXCLUDED.last_modified, data = EXCLUDED.data, updated_at = NOW()
		`, collID, app.Origin, until, data); err != nil {
			return nil, storageErr(err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE collections SET last_modified = $1, updated_at = NOW() WHERE id = $2
	`, until, collID); err != nil {
		return nil, storageErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr(err)
	}

	s.invalidateMeta(user, collection)

	return &models.WriteResult{UUID: collUUID, Until: until}, nil
}

func (s *SQLBackend) Delete(ctx context.Context, user, collection string, req models.DeleteRequest) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return storageErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var collID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO collections (user_email, name, deleted, delete_client_id, delete_reason)
		VALUES ($1, $2, TRUE, $3, $4)
		ON CONFLICT (user_email, name)
		DO UPDATE SET deleted = TRUE, delete_client_id = EXCLUDED.delete_client_id,
		              delete_reason = EXCLUDED.delete_reason, updated_at = NOW()
		RETURNING id
	`, user, collection, req.ClientID, req.Reason).Scan(&collID)
	if err != nil {
		return storageErr(err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM applications WHERE collection_id = $1`, collID); err != nil {
		return storageErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr(err)
	}

	s.invalidateMeta(user, collection)

	return nil
}

func (s *SQLBackend) HealthCheck(ctx context.Context) error {
	if err := s.db.Pool.Ping(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

// collectionMeta resolves collection metadata, consulting the cache first.
// Only existing collections are cached; misses always hit the database.
func (s *SQLBackend) collectionMeta(ctx context.Context, user, collection string) (*collMeta, error) {
	key := metaKey(user, collection)

	if s.cache != nil {
		raw, err := s.cache.Get(key)
		if err == nil {
			var meta collMeta
			if json.Unmarshal(raw, &meta) == nil {
				return &meta, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Printf("collection metadata cache read failed: %v", err)
		}
	}

	var meta collMeta
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, uuid, last_modified, deleted FROM collections
		WHERE user_email = $1 AND name = $2
	`, user, collection).Scan(&meta.ID, &meta.UUID, &meta.LastModified, &meta.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(meta); err == nil {
			if err := s.cache.Set(key, raw, metaTTL); err != nil {
				log.Printf("collection metadata cache write failed: %v", err)
			}
		}
	}

	return &meta, nil
}

func (s *SQLBackend) invalidateMeta(user, collection string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(metaKey(user, collection)); err != nil {
		log.Printf("collection metadata cache invalidation failed: %v", err)
	}
}

func metaKey(user, collection string) string {
	return "appsync:meta:" + user + ":" + collection
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
