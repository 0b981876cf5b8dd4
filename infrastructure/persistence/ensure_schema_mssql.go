package persistence

import (
	"database/sql"
	"fmt"
)

// EnsurePublishSchemaMSSQL creates the publish tables for SQL Server if they
// do not exist.
func EnsurePublishSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.publish_jobs') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[publish_jobs] (
        id NVARCHAR(64) PRIMARY KEY,
        request_id NVARCHAR(64) NOT NULL,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        content_id NVARCHAR(128) NOT NULL,
        caption NVARCHAR(MAX) NOT NULL DEFAULT '',
        hashtags NVARCHAR(MAX) NOT NULL DEFAULT '',
        state NVARCHAR(32) NOT NULL,
        attempts INT NOT NULL DEFAULT 0,
        last_error NVARCHAR(MAX) NULL,
        error_kind NVARCHAR(64) NOT NULL DEFAULT '',
        external_id NVARCHAR(255) NOT NULL DEFAULT '',
        external_url NVARCHAR(1024) NOT NULL DEFAULT '',
        scheduled_at DATETIME2 NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE INDEX IX_publish_jobs_request ON dbo.[publish_jobs](request_id);
    CREATE INDEX IX_publish_jobs_due ON dbo.[publish_jobs](state, scheduled_at);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create publish_jobs (mssql): %w", err)
	}
	return nil
}

// EnsureCredentialSchemaMSSQL creates the social_credentials table for SQL
// Server if it does not exist.
func EnsureCredentialSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.social_credentials') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[social_credentials] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        account_id NVARCHAR(128) NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL DEFAULT '',
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_social_credentials_user_platform ON dbo.[social_credentials](user_id, platform);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create social_credentials (mssql): %w", err)
	}
	return nil
}
