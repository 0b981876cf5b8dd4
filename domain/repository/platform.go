package repository

import (
	"context"

	"crosspost/domain/model"
)

// IPlatform is the adapter contract every social platform implements. Publish
// drives the platform's full protocol (possibly multi-step, possibly polling)
// and returns either the created post or a *model.PlatformError whose kind is
// drawn from the shared taxonomy. Adapters are stateless aside from injected
// clients; per-call credentials arrive as arguments.
type IPlatform interface {
	Name() string
	Publish(ctx context.Context, cred *model.Credential, content *model.Content, caption string, hashtags []string) (*model.PlatformPost, error)
	FetchStats(ctx context.Context, cred *model.Credential, externalID string) (*model.PostStats, error)
}
