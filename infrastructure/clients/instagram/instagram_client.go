package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const defaultBaseURL = "https://graph.facebook.com/v18.0"

// Config represents Instagram Graph API client configuration.
type Config struct {
	BaseURL         string
	HTTPClient      *http.Client
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Client publishes media through the Instagram Graph API. Images use the
// two-step container+publish flow; video (reels) adds a processing poll
// between the two steps.
type Client struct {
	baseURL         string
	http            *http.Client
	pollInterval    time.Duration
	pollMaxAttempts int
}

func NewClient(cfg *Config) repository.IPlatform {
	c := &Client{
		baseURL:         cfg.BaseURL,
		http:            cfg.HTTPClient,
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.pollInterval == 0 {
		c.pollInterval = 2 * time.Second
	}
	if c.pollMaxAttempts == 0 {
		c.pollMaxAttempts = 30
	}
	return c
}

func (c *Client) Name() string { return model.PlatformInstagram }

type containerParams struct {
	ImageURL    string `url:"image_url,omitempty"`
	MediaType   string `url:"media_type,omitempty"`
	VideoURL    string `url:"video_url,omitempty"`
	Caption     string `url:"caption"`
	ShareToFeed bool   `url:"share_to_feed,omitempty"`
	AccessToken string `url:"access_token"`
}

type publishParams struct {
	CreationID  string `url:"creation_id"`
	AccessToken string `url:"access_token"`
}

type graphIDResponse struct {
	ID    string      `json:"id"`
	Error *graphError `json:"error,omitempty"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, content *model.Content, caption string, hashtags []string) (*model.PlatformPost, error) {
	if cred.AccountID == nil || *cred.AccountID == "" {
		return nil, model.NewPlatformError(model.ErrKindAuthUnavailable, "no instagram business account linked")
	}
	accountID := *cred.AccountID
	fullCaption := caption
	if len(hashtags) > 0 {
		fullCaption = caption + "\n\n" + strings.Join(hashtags, " ")
	}

	params := containerParams{Caption: fullCaption, AccessToken: cred.AccessToken}
	isVideo := content.IsVideo()
	if isVideo {
		params.MediaType = "REELS"
		params.VideoURL = content.FileURL
		params.ShareToFeed = true
	} else {
		params.ImageURL = content.FileURL
	}

	container, err := c.postForm(ctx, fmt.Sprintf("%s/%s/media", c.baseURL, accountID), params)
	if err != nil {
		return nil, err
	}

	if isVideo {
		if err := c.waitForProcessing(ctx, container.ID, cred.AccessToken); err != nil {
			return nil, err
		}
	}

	published, err := c.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", c.baseURL, accountID),
		publishParams{CreationID: container.ID, AccessToken: cred.AccessToken})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://www.instagram.com/p/%s", published.ID)
	if isVideo {
		url = fmt.Sprintf("https://www.instagram.com/reel/%s", published.ID)
	}
	return &model.PlatformPost{ID: published.ID, URL: url}, nil
}

// waitForProcessing polls the container status until FINISHED, ERROR, or the
// attempt budget runs out. The wait between polls is cancellable.
func (c *Client) waitForProcessing(ctx context.Context, containerID, accessToken string) error {
	statusURL := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", c.baseURL, containerID, accessToken)
	for i := 0; i < c.pollMaxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return model.NewPlatformError(model.ErrKindUnknown, err.Error())
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return transportError(ctx, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return normalizeGraphError(resp.StatusCode, body)
		}
		var status struct {
			StatusCode string `json:"status_code"`
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return model.NewPlatformError(model.ErrKindUnknown, "unparseable status payload: "+string(body))
		}
		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			return model.NewPlatformError(model.ErrKindProcessingFailed, "media processing failed")
		}

		select {
		case <-ctx.Done():
			return model.NewPlatformError(model.ErrKindCancelled, ctx.Err().Error())
		case <-time.After(c.pollInterval):
		}
	}
	// Processing may simply be slow; the caller decides whether to retry.
	return model.NewPlatformError(model.ErrKindTimeout, "media processing did not finish in time")
}

func (c *Client) FetchStats(ctx context.Context, cred *model.Credential, externalID string) (*model.PostStats, error) {
	url := fmt.Sprintf("%s/%s/insights?metric=engagement,impressions,reach,saved&access_token=%s", c.baseURL, externalID, cred.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, normalizeGraphError(resp.StatusCode, body)
	}
	var payload struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value int64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}
	stats := &model.PostStats{}
	for _, item := range payload.Data {
		if len(item.Values) == 0 {
			continue
		}
		v := item.Values[0].Value
		switch item.Name {
		case "engagement":
			stats.Likes = v
		case "impressions":
			stats.Impressions = v
		case "reach":
			stats.Reach = v
		case "saved":
			stats.Saves = v
		}
	}
	return stats, nil
}

func (c *Client) postForm(ctx context.Context, url string, params interface{}) (*graphIDResponse, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, normalizeGraphError(resp.StatusCode, body)
	}
	var out graphIDResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, model.NewPlatformError(model.ErrKindUnknown, "unparseable graph payload: "+string(body))
	}
	if out.ID == "" {
		return nil, model.NewPlatformError(model.ErrKindUnknown, "graph response missing id: "+string(body))
	}
	return &out, nil
}

// normalizeGraphError maps a Graph API failure onto the shared taxonomy.
func normalizeGraphError(status int, body []byte) *model.PlatformError {
	var payload struct {
		Error *graphError `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	message := string(body)
	code := 0
	if payload.Error != nil {
		message = payload.Error.Message
		code = payload.Error.Code
	}

	switch {
	case status == http.StatusUnauthorized || code == 190:
		return model.NewPlatformError(model.ErrKindAuthExpired, message)
	case status == http.StatusTooManyRequests || status >= 500 || code == 4 || code == 17 || code == 32 || code == 613:
		return model.NewPlatformError(model.ErrKindRateLimited, message)
	case status >= 400 && status < 500:
		return model.NewPlatformError(model.ErrKindContentRejected, message)
	}
	logger.GetLogger().WithField("status", status).WithField("payload", string(body)).Warn("unmapped instagram error")
	return model.NewPlatformError(model.ErrKindUnknown, message)
}

func transportError(ctx context.Context, err error) *model.PlatformError {
	if ctx.Err() != nil {
		return model.NewPlatformError(model.ErrKindCancelled, ctx.Err().Error())
	}
	return model.NewPlatformError(model.ErrKindTimeout, err.Error())
}
