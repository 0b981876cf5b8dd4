package youtube_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/youtube"
)

func youtubeCredential() *model.Credential {
	return &model.Credential{UserID: "user-1", Platform: "youtube", AccessToken: "yt-token"}
}

func newTestClient(server *httptest.Server) *youtube.Client {
	return youtube.NewClient(&youtube.Config{
		Endpoint:   server.URL,
		HTTPClient: server.Client(),
	}).(*youtube.Client)
}

func TestYouTubeClient_Publish(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/media/clip.mp4":
			w.Write([]byte("fake-mp4-bytes"))
		case strings.Contains(r.URL.Path, "videos"):
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Contains(t, r.URL.Query().Get("part"), "snippet")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"yt-video-1"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	content := &model.Content{ID: "content-1", FileURL: server.URL + "/media/clip.mp4", MimeType: "video/mp4", Size: 14}
	post, err := client.Publish(context.Background(), youtubeCredential(), content, "my clip", []string{"#go"})

	require.NoError(t, err)
	assert.Equal(t, "yt-video-1", post.ID)
	assert.Equal(t, "https://youtube.com/watch?v=yt-video-1", post.URL)
}

func TestYouTubeClient_PublishTitleTruncatedOnRuneBoundary(t *testing.T) {
	longCaption := strings.Repeat("日", 200)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/media/clip.mp4":
			w.Write([]byte("fake-mp4-bytes"))
		case strings.Contains(r.URL.Path, "videos"):
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), `"title":"`+strings.Repeat("日", 100)+`"`)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"yt-video-2"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	content := &model.Content{ID: "content-1", FileURL: server.URL + "/media/clip.mp4", MimeType: "video/mp4", Size: 14}
	post, err := client.Publish(context.Background(), youtubeCredential(), content, longCaption, nil)

	require.NoError(t, err)
	assert.Equal(t, "yt-video-2", post.ID)
}

func TestYouTubeClient_PublishMediaFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server)
	content := &model.Content{ID: "content-1", FileURL: server.URL + "/media/missing.mp4", MimeType: "video/mp4", Size: 1}
	_, err := client.Publish(context.Background(), youtubeCredential(), content, "my clip", nil)

	var pe *model.PlatformError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.ErrKindContentRejected, pe.Kind)
}

func TestYouTubeClient_ErrorNormalization(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   model.ErrorKind
	}{
		{"expired token", http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials","errors":[{"reason":"authError"}]}}`, model.ErrKindAuthExpired},
		{"quota exceeded", http.StatusForbidden, `{"error":{"code":403,"message":"Quota exceeded","errors":[{"reason":"quotaExceeded"}]}}`, model.ErrKindRateLimited},
		{"forbidden upload", http.StatusForbidden, `{"error":{"code":403,"message":"Upload not allowed","errors":[{"reason":"forbidden"}]}}`, model.ErrKindContentRejected},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"Backend Error"}}`, model.ErrKindRateLimited},
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"message":"Invalid title","errors":[{"reason":"invalidTitle"}]}}`, model.ErrKindContentRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.Contains(r.URL.Path, "media") {
					w.Write([]byte("x"))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(server)
			content := &model.Content{ID: "content-1", FileURL: server.URL + "/media/clip.mp4", MimeType: "video/mp4", Size: 1}
			_, err := client.Publish(context.Background(), youtubeCredential(), content, "my clip", nil)

			var pe *model.PlatformError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.want, pe.Kind)
		})
	}
}

func TestYouTubeClient_FetchStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yt-video-1", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"statistics":{"viewCount":"1200","likeCount":"88","commentCount":"9"}}]}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	stats, err := client.FetchStats(context.Background(), youtubeCredential(), "yt-video-1")

	require.NoError(t, err)
	assert.Equal(t, int64(1200), stats.Views)
	assert.Equal(t, int64(88), stats.Likes)
	assert.Equal(t, int64(9), stats.Comments)
}

func TestYouTubeClient_FetchStats_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.FetchStats(context.Background(), youtubeCredential(), "missing")
	assert.EqualError(t, err, "video missing not found")
}
