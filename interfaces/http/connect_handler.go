package http

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
)

type IConnectHandler interface {
	GetAuthURL(ctx *gin.Context)
	Callback(ctx *gin.Context)
	Status(ctx *gin.Context)
}

type connectHandler struct {
	credentialRepo repository.ICredential
	stateMu        sync.Mutex
	states         map[string]connectState // state -> owner + expiry
}

type connectState struct {
	userID   string
	platform string
	expires  time.Time
}

func NewConnectHandler(credentialRepo repository.ICredential) IConnectHandler {
	return &connectHandler{credentialRepo: credentialRepo, states: map[string]connectState{}}
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// OAuthConfig builds the oauth2 client config for a platform. Returns nil for
// unknown or unconfigured platforms.
func OAuthConfig(platform string) *oauth2.Config {
	var client configuration.OAuthClient
	var endpoint oauth2.Endpoint
	switch platform {
	case model.PlatformInstagram:
		client = configuration.C.OAuth.Instagram
		endpoint = oauth2.Endpoint{
			AuthURL:  "https://www.facebook.com/v18.0/dialog/oauth",
			TokenURL: "https://graph.facebook.com/v18.0/oauth/access_token",
		}
	case model.PlatformTikTok:
		client = configuration.C.OAuth.TikTok
		endpoint = oauth2.Endpoint{
			AuthURL:  "https://www.tiktok.com/v2/auth/authorize/",
			TokenURL: "https://open.tiktokapis.com/v2/oauth/token/",
		}
	case model.PlatformYouTube:
		client = configuration.C.OAuth.YouTube
		endpoint = google.Endpoint
	default:
		return nil
	}
	if client.ClientID == "" || client.RedirectURI == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  client.RedirectURI,
		Scopes:       client.Scopes,
		Endpoint:     endpoint,
	}
}

// GetAuthURL builds the platform consent URL (user must approve in browser)
func (h *connectHandler) GetAuthURL(c *gin.Context) {
	platform := strings.ToLower(c.Param("platform"))
	conf := OAuthConfig(platform)
	if conf == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": platform + " oauth not configured"})
		return
	}
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	state := randomState()
	// store state with 10 minute expiry
	h.stateMu.Lock()
	h.states[state] = connectState{userID: userID, platform: platform, expires: time.Now().Add(10 * time.Minute)}
	h.stateMu.Unlock()

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	c.JSON(http.StatusOK, gin.H{"auth_url": conf.AuthCodeURL(state, opts...), "state": state})
}

// Callback exchanges the authorization code and stores the credential.
func (h *connectHandler) Callback(c *gin.Context) {
	lg := logger.GetLogger()
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	h.stateMu.Lock()
	st, ok := h.states[state]
	if ok && time.Now().After(st.expires) { // expired
		ok = false
	}
	if ok {
		delete(h.states, state)
	}
	h.stateMu.Unlock()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		return
	}

	conf := OAuthConfig(st.platform)
	if conf == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": st.platform + " oauth not configured"})
		return
	}
	token, err := conf.Exchange(c.Request.Context(), code)
	if err != nil {
		lg.WithField("platform", st.platform).WithField("error", err).Error("oauth code exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "code exchange failed"})
		return
	}

	now := time.Now().UTC()
	cred := &model.Credential{
		UserID:       st.userID,
		Platform:     st.platform,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       strings.Join(conf.Scopes, " "),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		cred.ExpiresAt = &expiry
	}
	if accountID, ok := token.Extra("open_id").(string); ok && accountID != "" {
		cred.AccountID = &accountID
	}
	if err := h.credentialRepo.Save(c.Request.Context(), cred); err != nil {
		lg.WithField("platform", st.platform).WithField("error", err).Error("failed storing credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed storing credential"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "platform": st.platform})
}

// Status reports which platforms the user has connected.
func (h *connectHandler) Status(c *gin.Context) {
	userID := c.GetString("user_id")
	connected := make(map[string]bool, 3)
	for _, platform := range []string{model.PlatformInstagram, model.PlatformTikTok, model.PlatformYouTube} {
		cred, err := h.credentialRepo.Load(c.Request.Context(), userID, platform)
		connected[platform] = err == nil && cred != nil
	}
	c.JSON(http.StatusOK, gin.H{"connected": connected})
}
