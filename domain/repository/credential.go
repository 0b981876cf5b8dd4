package repository

import (
	"context"

	"crosspost/domain/model"
)

// ICredential is the persistence boundary for stored platform credentials.
// The credential resolver is the only core caller.
type ICredential interface {
	Load(ctx context.Context, userID, platform string) (*model.Credential, error)
	Save(ctx context.Context, cred *model.Credential) error
}
