package persistence

import (
	"context"
	"database/sql"
	"time"

	"crosspost/domain/model"
)

// CredentialRepositoryMSSQL persists platform OAuth credentials for SQL
// Server/Azure SQL.
type CredentialRepositoryMSSQL struct{ db *sql.DB }

func NewCredentialRepositoryMSSQL(db *sql.DB) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db}
}

func (r *CredentialRepositoryMSSQL) Save(ctx context.Context, cred *model.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	var accountID sql.NullString
	if cred.AccountID != nil {
		accountID = sql.NullString{Valid: true, String: *cred.AccountID}
	}
	var exp sql.NullTime
	if cred.ExpiresAt != nil {
		exp = sql.NullTime{Valid: true, Time: *cred.ExpiresAt}
	}
	q := `MERGE dbo.[social_credentials] AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
  account_id = @p3, access_token = @p4, refresh_token = @p5, expires_at = @p6, scopes = @p7, updated_at = @p9
WHEN NOT MATCHED THEN
  INSERT (user_id, platform, account_id, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
  VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9);`
	_, err := r.db.ExecContext(ctx, q, cred.UserID, cred.Platform, accountID,
		cred.AccessToken, cred.RefreshToken, exp, cred.Scopes,
		cred.CreatedAt, cred.UpdatedAt)
	return err
}

func (r *CredentialRepositoryMSSQL) Load(ctx context.Context, userID, platform string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, platform, account_id, access_token, refresh_token, expires_at, scopes, created_at, updated_at FROM dbo.[social_credentials] WHERE user_id=@p1 AND platform=@p2`,
		userID, platform)
	cred := &model.Credential{}
	var accountID sql.NullString
	var exp sql.NullTime
	if err := row.Scan(&cred.ID, &cred.UserID, &cred.Platform, &accountID,
		&cred.AccessToken, &cred.RefreshToken, &exp, &cred.Scopes,
		&cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return nil, err
	}
	if accountID.Valid {
		v := accountID.String
		cred.AccountID = &v
	}
	if exp.Valid {
		t := exp.Time
		cred.ExpiresAt = &t
	}
	return cred, nil
}
