package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrAuthUnavailable is returned when no credential is on file for the
// (user, platform) pair.
var ErrAuthUnavailable = errors.New("no credential on file")

// ICredentialResolver supplies a valid access token per (user, platform),
// refreshing expired tokens on demand. Concurrent resolves for the same pair
// collapse into a single refresh.
type ICredentialResolver interface {
	Resolve(ctx context.Context, userID, platform string) (*model.Credential, error)
	// ForceRefresh exchanges the refresh token regardless of expiry. Used
	// after a platform signalled AuthExpired on a token we thought was fresh.
	ForceRefresh(ctx context.Context, userID, platform string) (*model.Credential, error)
}

// ITokenExchanger performs one platform's refresh-token exchange.
type ITokenExchanger interface {
	Refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error)
}

type credentialResolver struct {
	store      repository.ICredential
	exchangers map[string]ITokenExchanger
	margin     time.Duration
	sf         singleflight.Group
}

func NewCredentialResolver(store repository.ICredential, exchangers map[string]ITokenExchanger, margin time.Duration) ICredentialResolver {
	if margin == 0 {
		margin = 60 * time.Second
	}
	return &credentialResolver{store: store, exchangers: exchangers, margin: margin}
}

func (r *credentialResolver) Resolve(ctx context.Context, userID, platform string) (*model.Credential, error) {
	cred, err := r.load(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if !cred.ExpiresWithin(r.margin, time.Now()) {
		return cred, nil
	}
	return r.refresh(ctx, userID, platform, cred)
}

func (r *credentialResolver) ForceRefresh(ctx context.Context, userID, platform string) (*model.Credential, error) {
	cred, err := r.load(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	return r.refresh(ctx, userID, platform, cred)
}

func (r *credentialResolver) load(ctx context.Context, userID, platform string) (*model.Credential, error) {
	cred, err := r.store.Load(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuthUnavailable
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred == nil || cred.AccessToken == "" {
		return nil, ErrAuthUnavailable
	}
	return cred, nil
}

// refresh runs the exchange under single-flight so that a batch of jobs
// hitting the same stale credential triggers exactly one refresh call. Every
// caller receives the same resulting credential or the same failure.
func (r *credentialResolver) refresh(ctx context.Context, userID, platform string, cred *model.Credential) (*model.Credential, error) {
	key := userID + "|" + platform
	v, err, shared := r.sf.Do(key, func() (interface{}, error) {
		exchanger, ok := r.exchangers[platform]
		if !ok {
			return nil, fmt.Errorf("no token exchanger for platform %s", platform)
		}
		fresh, err := exchanger.Refresh(ctx, cred)
		if err != nil {
			return nil, fmt.Errorf("refresh %s token: %w", platform, err)
		}
		if err := r.store.Save(ctx, fresh); err != nil {
			logger.GetLogger().WithField("platform", platform).WithField("error", err).Warn("failed persisting refreshed credential")
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.GetLogger().WithField("platform", platform).Debug("credential refresh coalesced")
	}
	return v.(*model.Credential), nil
}

// OAuthExchanger refreshes tokens through a standard OAuth2 endpoint.
type OAuthExchanger struct {
	Config *oauth2.Config
}

func (e *OAuthExchanger) Refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, errors.New("credential has no refresh token")
	}
	stale := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Minute), // force the exchange
	}
	token, err := e.Config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, err
	}
	fresh := *cred
	fresh.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		fresh.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		fresh.ExpiresAt = &expiry
	}
	return &fresh, nil
}
