package persistence

import (
	"database/sql"
	"fmt"
)

// EnsurePublishSchema creates the publish tables for PostgreSQL if missing.
func EnsurePublishSchema(db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS publish_jobs (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			content_id TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			hashtags TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			external_url TEXT NOT NULL DEFAULT '',
			scheduled_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publish_jobs_request ON publish_jobs(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_publish_jobs_due ON publish_jobs(state, scheduled_at)`,
	}
	for _, q := range ddl {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create publish_jobs: %w", err)
		}
	}
	return nil
}

// EnsureCredentialSchema creates the social_credentials table for PostgreSQL
// if missing.
func EnsureCredentialSchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS social_credentials (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		account_id TEXT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NULL,
		scopes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, platform)
	)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create social_credentials: %w", err)
	}
	return nil
}
