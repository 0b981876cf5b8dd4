package instagram_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/instagram"
)

func instagramCredential() *model.Credential {
	accountID := "17841400000000000"
	return &model.Credential{UserID: "user-1", Platform: "instagram", AccountID: &accountID, AccessToken: "ig-token"}
}

func imageContent() *model.Content {
	return &model.Content{ID: "content-1", FileURL: "https://cdn.example.com/photo.jpg", MimeType: "image/jpeg", Size: 2048}
}

func videoContent() *model.Content {
	return &model.Content{ID: "content-2", FileURL: "https://cdn.example.com/clip.mp4", MimeType: "video/mp4", Size: 1 << 20}
}

func newTestClient(server *httptest.Server, pollInterval time.Duration) *instagram.Client {
	return instagram.NewClient(&instagram.Config{
		BaseURL:         server.URL,
		HTTPClient:      server.Client(),
		PollInterval:    pollInterval,
		PollMaxAttempts: 8,
	}).(*instagram.Client)
}

func TestInstagramClient_PublishImage(t *testing.T) {
	var containerCalls, publishCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/17841400000000000/media":
			atomic.AddInt32(&containerCalls, 1)
			assert.Equal(t, "https://cdn.example.com/photo.jpg", r.Form.Get("image_url"))
			assert.Equal(t, "hello\n\n#go #social", r.Form.Get("caption"))
			assert.Equal(t, "ig-token", r.Form.Get("access_token"))
			assert.Empty(t, r.Form.Get("media_type"))
			fmt.Fprint(w, `{"id":"container-1"}`)
		case "/17841400000000000/media_publish":
			atomic.AddInt32(&publishCalls, 1)
			assert.Equal(t, "container-1", r.Form.Get("creation_id"))
			fmt.Fprint(w, `{"id":"media-1"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server, time.Millisecond)
	post, err := client.Publish(context.Background(), instagramCredential(), imageContent(), "hello", []string{"#go", "#social"})

	require.NoError(t, err)
	assert.Equal(t, "media-1", post.ID)
	assert.Equal(t, "https://www.instagram.com/p/media-1", post.URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(&containerCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&publishCalls))
}

func TestInstagramClient_PublishVideoPollsUntilFinished(t *testing.T) {
	var statusCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/17841400000000000/media":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "REELS", r.Form.Get("media_type"))
			assert.Equal(t, "https://cdn.example.com/clip.mp4", r.Form.Get("video_url"))
			assert.Equal(t, "true", r.Form.Get("share_to_feed"))
			fmt.Fprint(w, `{"id":"container-2"}`)
		case r.URL.Path == "/container-2":
			n := atomic.AddInt32(&statusCalls, 1)
			if n <= 5 {
				fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
			} else {
				fmt.Fprint(w, `{"status_code":"FINISHED"}`)
			}
		case r.URL.Path == "/17841400000000000/media_publish":
			fmt.Fprint(w, `{"id":"media-2"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server, time.Millisecond)
	post, err := client.Publish(context.Background(), instagramCredential(), videoContent(), "clip", nil)

	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/reel/media-2", post.URL)
	assert.Equal(t, int32(6), atomic.LoadInt32(&statusCalls))
}

func TestInstagramClient_PublishVideoProcessingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/media") {
			fmt.Fprint(w, `{"id":"container-3"}`)
			return
		}
		fmt.Fprint(w, `{"status_code":"ERROR"}`)
	}))
	defer server.Close()

	client := newTestClient(server, time.Millisecond)
	_, err := client.Publish(context.Background(), instagramCredential(), videoContent(), "clip", nil)

	var pe *model.PlatformError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.ErrKindProcessingFailed, pe.Kind)
}

func TestInstagramClient_PublishVideoProcessingTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/media") {
			fmt.Fprint(w, `{"id":"container-4"}`)
			return
		}
		fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
	}))
	defer server.Close()

	client := newTestClient(server, time.Millisecond)
	_, err := client.Publish(context.Background(), instagramCredential(), videoContent(), "clip", nil)

	var pe *model.PlatformError
	require.True(t, errors.As(err, &pe))
	// Exhausted polls are a timeout: the orchestrator may retry the job.
	assert.Equal(t, model.ErrKindTimeout, pe.Kind)
}

func TestInstagramClient_PublishVideoPollCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/media") {
			fmt.Fprint(w, `{"id":"container-5"}`)
			return
		}
		cancel()
		fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
	}))
	defer server.Close()

	client := newTestClient(server, time.Minute)
	_, err := client.Publish(ctx, instagramCredential(), videoContent(), "clip", nil)

	var pe *model.PlatformError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.ErrKindCancelled, pe.Kind)
}

func TestInstagramClient_PublishNoBusinessAccount(t *testing.T) {
	client := instagram.NewClient(&instagram.Config{})
	cred := &model.Credential{UserID: "user-1", Platform: "instagram", AccessToken: "ig-token"}

	_, err := client.Publish(context.Background(), cred, imageContent(), "hello", nil)

	var pe *model.PlatformError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.ErrKindAuthUnavailable, pe.Kind)
}

func TestInstagramClient_ErrorNormalization(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   model.ErrorKind
	}{
		{"expired token", http.StatusBadRequest, `{"error":{"message":"Error validating access token","code":190}}`, model.ErrKindAuthExpired},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"unauthorized"}}`, model.ErrKindAuthExpired},
		{"rate limit code", http.StatusBadRequest, `{"error":{"message":"Application request limit reached","code":4}}`, model.ErrKindRateLimited},
		{"too many requests", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, model.ErrKindRateLimited},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"internal"}}`, model.ErrKindRateLimited},
		{"bad media", http.StatusBadRequest, `{"error":{"message":"unsupported format","code":352}}`, model.ErrKindContentRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(server, time.Millisecond)
			_, err := client.Publish(context.Background(), instagramCredential(), imageContent(), "hello", nil)

			var pe *model.PlatformError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.want, pe.Kind)
		})
	}
}

func TestInstagramClient_FetchStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media-1/insights", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"name":"engagement","values":[{"value":42}]},
			{"name":"impressions","values":[{"value":1000}]},
			{"name":"reach","values":[{"value":800}]},
			{"name":"saved","values":[{"value":7}]}
		]}`)
	}))
	defer server.Close()

	client := newTestClient(server, time.Millisecond)
	stats, err := client.FetchStats(context.Background(), instagramCredential(), "media-1")

	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.Likes)
	assert.Equal(t, int64(1000), stats.Impressions)
	assert.Equal(t, int64(800), stats.Reach)
	assert.Equal(t, int64(7), stats.Saves)
}
