package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS collections (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		uuid UUID NOT NULL DEFAULT uuid_generate_v4(),
		last_modified BIGINT NOT NULL DEFAULT 0,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		delete_client_id VARCHAR(255),
		delete_reason TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(user_email, name)
	)`,

	`CREATE TABLE IF NOT EXISTS applications (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		origin VARCHAR(500) NOT NULL,
		last_modified BIGINT NOT NULL,
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(collection_id, origin)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_collections_user_email_name ON collections(user_email, name)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_collection_id ON applications(collection_id)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_collection_id_last_modified ON applications(collection_id, last_modified)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
