package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const defaultBaseURL = "https://open.tiktokapis.com"

// Config represents TikTok open API client configuration.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client publishes video through the TikTok content posting API. The flow is
// three physically separate calls: init returns a publish id and a single-use
// upload URL, the raw bytes are PUT to that URL, and a status fetch confirms
// acceptance. Upload URLs are never reused across attempts; every Publish
// call re-runs init.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg *Config) repository.IPlatform {
	c := &Client{baseURL: cfg.BaseURL, http: cfg.HTTPClient}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c
}

func (c *Client) Name() string { return model.PlatformTikTok }

type initRequest struct {
	PostInfo   postInfo   `json:"post_info"`
	SourceInfo sourceInfo `json:"source_info"`
}

type postInfo struct {
	Title                 string `json:"title"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMS int    `json:"video_cover_timestamp_ms"`
}

type sourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type initResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error apiError `json:"error"`
}

type statusResponse struct {
	Data struct {
		Status   string `json:"status"`
		ShareURL string `json:"share_url"`
	} `json:"data"`
	Error apiError `json:"error"`
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, content *model.Content, caption string, hashtags []string) (*model.PlatformPost, error) {
	video, err := c.download(ctx, content.FileURL)
	if err != nil {
		return nil, err
	}

	title := truncateTitle(caption, 150)
	init, err := c.initUpload(ctx, cred.AccessToken, title, int64(len(video)))
	if err != nil {
		return nil, err
	}

	if err := c.uploadBytes(ctx, init.Data.UploadURL, video, content.MimeType); err != nil {
		return nil, err
	}

	status, err := c.fetchStatus(ctx, cred.AccessToken, init.Data.PublishID)
	if err != nil {
		return nil, err
	}
	if status.Data.Status == "FAILED" {
		return nil, model.NewPlatformError(model.ErrKindProcessingFailed, "tiktok rejected the upload")
	}
	return &model.PlatformPost{ID: init.Data.PublishID, URL: status.Data.ShareURL}, nil
}

// download pulls the media bytes from the content store URL. The upload step
// needs the exact byte length up front.
func (c *Client) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewPlatformError(model.ErrKindContentRejected,
			fmt.Sprintf("media fetch returned %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	return data, nil
}

func (c *Client) initUpload(ctx context.Context, accessToken, title string, size int64) (*initResponse, error) {
	body := initRequest{
		PostInfo: postInfo{
			Title:                 title,
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			VideoCoverTimestampMS: 1000,
		},
		SourceInfo: sourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       size,
			ChunkSize:       size,
			TotalChunkCount: 1,
		},
	}
	var out initResponse
	if err := c.postJSON(ctx, accessToken, c.baseURL+"/v2/post/publish/video/init/", body, &out); err != nil {
		return nil, err
	}
	if out.Data.UploadURL == "" || out.Data.PublishID == "" {
		return nil, model.NewPlatformError(model.ErrKindUnknown, "init response missing upload_url or publish_id")
	}
	return &out, nil
}

func (c *Client) uploadBytes(ctx context.Context, uploadURL string, video []byte, mimeType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(video))
	if err != nil {
		return model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	req.Header.Set("Content-Type", mimeType)
	req.ContentLength = int64(len(video))
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return normalizeHTTPError(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) fetchStatus(ctx context.Context, accessToken, publishID string) (*statusResponse, error) {
	var out statusResponse
	body := map[string]string{"publish_id": publishID}
	if err := c.postJSON(ctx, accessToken, c.baseURL+"/v2/post/publish/status/fetch/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchStats queries video engagement numbers. Filter params are encoded via
// go-querystring for the videos the query addresses.
type videoQueryFields struct {
	Fields string `url:"fields"`
}

func (c *Client) FetchStats(ctx context.Context, cred *model.Credential, externalID string) (*model.PostStats, error) {
	values, err := query.Values(videoQueryFields{Fields: "view_count,like_count,comment_count,share_count"})
	if err != nil {
		return nil, err
	}
	var out struct {
		Data struct {
			Videos []struct {
				ViewCount    int64 `json:"view_count"`
				LikeCount    int64 `json:"like_count"`
				CommentCount int64 `json:"comment_count"`
				ShareCount   int64 `json:"share_count"`
			} `json:"videos"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	body := map[string]interface{}{"filters": map[string][]string{"video_ids": {externalID}}}
	url := c.baseURL + "/v2/video/query/?" + values.Encode()
	if err := c.postJSON(ctx, cred.AccessToken, url, body, &out); err != nil {
		return nil, err
	}
	if len(out.Data.Videos) == 0 {
		return nil, fmt.Errorf("video %s not found", externalID)
	}
	v := out.Data.Videos[0]
	return &model.PostStats{Views: v.ViewCount, Likes: v.LikeCount, Comments: v.CommentCount, Shares: v.ShareCount}, nil
}

func (c *Client) postJSON(ctx context.Context, accessToken, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return model.NewPlatformError(model.ErrKindUnknown, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return normalizeHTTPError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.NewPlatformError(model.ErrKindUnknown, "unparseable tiktok payload: "+string(raw))
	}
	return nil
}

// normalizeHTTPError maps a TikTok API failure onto the shared taxonomy.
func normalizeHTTPError(status int, body []byte) *model.PlatformError {
	var payload struct {
		Error apiError `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	message := payload.Error.Message
	if message == "" {
		message = string(body)
	}

	switch {
	case status == http.StatusUnauthorized:
		return model.NewPlatformError(model.ErrKindAuthExpired, message)
	case status == http.StatusTooManyRequests || status >= 500:
		return model.NewPlatformError(model.ErrKindRateLimited, message)
	case status >= 400 && status < 500:
		return model.NewPlatformError(model.ErrKindContentRejected, message)
	}
	logger.GetLogger().WithField("status", status).WithField("payload", string(body)).Warn("unmapped tiktok error")
	return model.NewPlatformError(model.ErrKindUnknown, message)
}

// truncateTitle cuts on rune boundaries so multi-byte captions are never
// split mid-sequence.
func truncateTitle(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func transportError(ctx context.Context, err error) *model.PlatformError {
	if ctx.Err() != nil {
		return model.NewPlatformError(model.ErrKindCancelled, ctx.Err().Error())
	}
	return model.NewPlatformError(model.ErrKindTimeout, err.Error())
}
