package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Config represents YouTube API client configuration. Endpoint and HTTPClient
// are only overridden in tests.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Client publishes video through the YouTube Data API. The token must be
// valid before the call; a 401 surfaces as AuthExpired so the credential
// resolver can refresh and the job retry once with the new token.
type Client struct {
	cfg *Config
}

func NewClient(cfg *Config) repository.IPlatform {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{cfg: cfg}
}

func (c *Client) Name() string { return model.PlatformYouTube }

// service builds a youtube.Service bound to the per-call credential. The
// adapter itself stays stateless across users.
func (c *Client) service(ctx context.Context, cred *model.Credential) (*youtube.Service, error) {
	opts := []option.ClientOption{}
	if c.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.cfg.HTTPClient))
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"})
		opts = append(opts, option.WithTokenSource(ts))
	}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return service, nil
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, content *model.Content, caption string, hashtags []string) (*model.PlatformPost, error) {
	service, err := c.service(ctx, cred)
	if err != nil {
		return nil, model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}

	media, err := c.openMedia(ctx, content.FileURL)
	if err != nil {
		return nil, err
	}
	defer media.Close()

	title := truncateTitle(caption, 100)
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tags = append(tags, strings.TrimPrefix(tag, "#"))
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: caption,
			Tags:        tags,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video).Media(media)
	response, err := call.Context(ctx).Do()
	if err != nil {
		return nil, normalizeAPIError(ctx, err)
	}
	return &model.PlatformPost{
		ID:  response.Id,
		URL: fmt.Sprintf("https://youtube.com/watch?v=%s", response.Id),
	}, nil
}

func (c *Client) FetchStats(ctx context.Context, cred *model.Credential, externalID string) (*model.PostStats, error) {
	service, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}
	response, err := service.Videos.List([]string{"statistics"}).Id(externalID).Context(ctx).Do()
	if err != nil {
		return nil, normalizeAPIError(ctx, err)
	}
	if len(response.Items) == 0 {
		return nil, fmt.Errorf("video %s not found", externalID)
	}
	stats := response.Items[0].Statistics
	if stats == nil {
		return &model.PostStats{}, nil
	}
	return &model.PostStats{
		Views:    int64(stats.ViewCount),
		Likes:    int64(stats.LikeCount),
		Comments: int64(stats.CommentCount),
	}, nil
}

func (c *Client) openMedia(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	httpClient := c.cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.NewPlatformError(model.ErrKindCancelled, ctx.Err().Error())
		}
		return nil, model.NewPlatformError(model.ErrKindTimeout, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, model.NewPlatformError(model.ErrKindContentRejected,
			fmt.Sprintf("media fetch returned %d", resp.StatusCode))
	}
	return resp.Body, nil
}

// normalizeAPIError maps a googleapi failure onto the shared taxonomy.
func normalizeAPIError(ctx context.Context, err error) *model.PlatformError {
	if ctx.Err() != nil {
		return model.NewPlatformError(model.ErrKindCancelled, ctx.Err().Error())
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return model.NewPlatformError(model.ErrKindTimeout, err.Error())
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized:
		return model.NewPlatformError(model.ErrKindAuthExpired, apiErr.Message)
	case apiErr.Code == http.StatusForbidden && hasReason(apiErr, "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded"):
		return model.NewPlatformError(model.ErrKindRateLimited, apiErr.Message)
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
		return model.NewPlatformError(model.ErrKindRateLimited, apiErr.Message)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return model.NewPlatformError(model.ErrKindContentRejected, apiErr.Message)
	}
	logger.GetLogger().WithField("code", apiErr.Code).WithField("body", apiErr.Body).Warn("unmapped youtube error")
	return model.NewPlatformError(model.ErrKindUnknown, apiErr.Message)
}

// truncateTitle cuts on rune boundaries so multi-byte captions are never
// split mid-sequence.
func truncateTitle(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func hasReason(err *googleapi.Error, reasons ...string) bool {
	for _, item := range err.Errors {
		for _, reason := range reasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	return false
}
