package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Schema statements, applied in order on every startup. Columns added after
// rows already existed get the historical defaults: door pickup delivery, no
// groups, boost off.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		descriptions JSONB NOT NULL DEFAULT '[]',
		price DOUBLE PRECISION NOT NULL,
		category TEXT NOT NULL,
		condition TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS queue (
		id BIGSERIAL PRIMARY KEY,
		workflow_id BIGINT NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL,
		category TEXT NOT NULL,
		condition TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		images JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		posted_at TIMESTAMPTZ,
		error_message TEXT
	)`,

	// Additive evolution: these columns arrived after deployments already
	// had rows.
	`ALTER TABLE workflows ADD COLUMN IF NOT EXISTS delivery_method TEXT NOT NULL DEFAULT 'DoorPickup'`,
	`ALTER TABLE workflows ADD COLUMN IF NOT EXISTS groups JSONB`,
	`ALTER TABLE workflows ADD COLUMN IF NOT EXISTS boost_listing BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE queue ADD COLUMN IF NOT EXISTS delivery_method TEXT NOT NULL DEFAULT 'DoorPickup'`,
	`ALTER TABLE queue ADD COLUMN IF NOT EXISTS groups JSONB`,
	`ALTER TABLE queue ADD COLUMN IF NOT EXISTS boost_listing BOOLEAN NOT NULL DEFAULT FALSE`,

	// Heal rows written before status had a NOT NULL default.
	`UPDATE queue SET status = 'pending' WHERE status IS NULL OR status = ''`,
}

// Migrate brings the schema up to date. Safe to run on every startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	log.Info("database schema up to date")
	return nil
}
