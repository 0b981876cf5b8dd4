package persistence

import (
	"context"
	"database/sql"
	"time"

	"crosspost/domain/model"
)

// CredentialRepository persists platform OAuth credentials in PostgreSQL.
type CredentialRepository struct{ db *sql.DB }

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Save(ctx context.Context, cred *model.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	q := `INSERT INTO social_credentials (user_id, platform, account_id, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			account_id=EXCLUDED.account_id,
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			scopes=EXCLUDED.scopes,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, cred.UserID, cred.Platform, cred.AccountID,
		cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, cred.Scopes,
		cred.CreatedAt, cred.UpdatedAt)
	return err
}

func (r *CredentialRepository) Load(ctx context.Context, userID, platform string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, platform, account_id, access_token, refresh_token, expires_at, scopes, created_at, updated_at FROM social_credentials WHERE user_id=$1 AND platform=$2`,
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
