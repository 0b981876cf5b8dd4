package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
	handler "crosspost/interfaces/http"
	"crosspost/usecase"
)

// stubPublishUsecase records the user identity each call arrived with so the
// tests can verify the handler threads it through.
type stubPublishUsecase struct {
	ownerID    string
	lastUserID string
}

func (s *stubPublishUsecase) Submit(ctx context.Context, req *model.PublishRequest) (*model.PublishResponse, error) {
	return &model.PublishResponse{}, nil
}

func (s *stubPublishUsecase) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	return nil, usecase.ErrJobNotFound
}

func (s *stubPublishUsecase) GetRequest(ctx context.Context, requestID, userID string) (*model.PublishResponse, error) {
	s.lastUserID = userID
	if userID != s.ownerID {
		return nil, usecase.ErrJobNotFound
	}
	return &model.PublishResponse{RequestID: requestID}, nil
}

func (s *stubPublishUsecase) Cancel(ctx context.Context, jobID, userID string) error {
	s.lastUserID = userID
	if userID != s.ownerID {
		return usecase.ErrJobNotFound
	}
	return nil
}

func (s *stubPublishUsecase) Stats(ctx context.Context, jobID, userID string) (*model.PostStats, error) {
	s.lastUserID = userID
	if userID != s.ownerID {
		return nil, usecase.ErrJobNotFound
	}
	return &model.PostStats{Views: 1}, nil
}

func (s *stubPublishUsecase) DispatchDue(ctx context.Context, now time.Time, batch int) error {
	return nil
}

func (s *stubPublishUsecase) Platforms() []string { return []string{"instagram"} }

func newTestRouter(userID string, uc usecase.IPublishUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(ctx *gin.Context) { ctx.Set("user_id", userID) })
	h := handler.NewPublishHandler(uc)
	router.DELETE("/publish/jobs/:jobId", h.CancelJob)
	router.GET("/publish/jobs/:jobId/stats", h.GetStats)
	return router
}

func TestPublishHandler_CancelJob_Ownership(t *testing.T) {
	uc := &stubPublishUsecase{ownerID: "user-1"}

	router := newTestRouter("someone-else", uc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/publish/jobs/job-1", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	// The authenticated identity, not a client-supplied one, reaches the core.
	assert.Equal(t, "someone-else", uc.lastUserID)

	router = newTestRouter("user-1", uc)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/publish/jobs/job-1", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPublishHandler_GetStats_Ownership(t *testing.T) {
	uc := &stubPublishUsecase{ownerID: "user-1"}

	router := newTestRouter("someone-else", uc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/publish/jobs/job-1/stats", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "someone-else", uc.lastUserID)

	router = newTestRouter("user-1", uc)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/publish/jobs/job-1/stats", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
