package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
	"crosspost/usecase"
)

type IPublishHandler interface {
	Publish(ctx *gin.Context)
	GetJob(ctx *gin.Context)
	GetRequest(ctx *gin.Context)
	CancelJob(ctx *gin.Context)
	GetStats(ctx *gin.Context)
	GetPlatforms(ctx *gin.Context)
	DispatchDue(ctx *gin.Context)
}

type PublishHandler struct {
	publishUsecase usecase.IPublishUsecase
}

func NewPublishHandler(uc usecase.IPublishUsecase) IPublishHandler {
	return &PublishHandler{publishUsecase: uc}
}

type publishBody struct {
	ContentID  string   `json:"content_id"`
	Platforms  []string `json:"platforms"`
	Caption    string   `json:"caption"`
	Hashtags   []string `json:"hashtags"`
	ScheduleAt *string  `json:"schedule_at,omitempty"` // RFC3339
}

func (h *PublishHandler) Publish(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	var body publishBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req := &model.PublishRequest{
		UserID:    userID,
		ContentID: body.ContentID,
		Platforms: body.Platforms,
		Caption:   body.Caption,
		Hashtags:  body.Hashtags,
	}
	if body.ScheduleAt != nil {
		at, err := time.Parse(time.RFC3339, *body.ScheduleAt)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule_at: expected RFC3339"})
			return
		}
		req.ScheduleAt = &at
	}
	resp, err := h.publishUsecase.Submit(ctx.Request.Context(), req)
	if err != nil {
		logger.GetLogger().WithField("user_id", userID).WithField("error", err.Error()).Warn("publish request rejected")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Partial failure is a normal 200; callers inspect per-platform outcomes.
	ctx.JSON(http.StatusOK, resp)
}

func (h *PublishHandler) GetJob(ctx *gin.Context) {
	jobID := ctx.Param("jobId")
	job, err := h.publishUsecase.GetStatus(ctx.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, usecase.ErrJobNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job.UserID != ctx.GetString("user_id") {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	ctx.JSON(http.StatusOK, job)
}

func (h *PublishHandler) GetRequest(ctx *gin.Context) {
	requestID := ctx.Param("requestId")
	resp, err := h.publishUsecase.GetRequest(ctx.Request.Context(), requestID, ctx.GetString("user_id"))
	if err != nil {
		if errors.Is(err, usecase.ErrJobNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *PublishHandler) CancelJob(ctx *gin.Context) {
	jobID := ctx.Param("jobId")
	err := h.publishUsecase.Cancel(ctx.Request.Context(), jobID, ctx.GetString("user_id"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrJobNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, usecase.ErrNotCancellable):
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cancelled": true, "job_id": jobID})
}

func (h *PublishHandler) GetStats(ctx *gin.Context) {
	jobID := ctx.Param("jobId")
	stats, err := h.publishUsecase.Stats(ctx.Request.Context(), jobID, ctx.GetString("user_id"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrJobNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, usecase.ErrStatsUnavailable):
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"job_id": jobID, "stats": stats})
}

func (h *PublishHandler) GetPlatforms(ctx *gin.Context) {
	platforms := h.publishUsecase.Platforms()
	caps := make([]gin.H, 0, len(platforms))
	for _, p := range platforms {
		caps = append(caps, gin.H{"platform": p, "implemented": true})
	}
	ctx.JSON(http.StatusOK, gin.H{"platforms": caps})
}

// DispatchDue allows manual triggering of due scheduled jobs (admin/dev utility)
func (h *PublishHandler) DispatchDue(ctx *gin.Context) {
	batchSize := 10
	if v := ctx.Query("batch"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			batchSize = n
		}
	}
	if err := h.publishUsecase.DispatchDue(ctx.Request.Context(), time.Now().UTC(), batchSize); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"dispatched": false, "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"dispatched": true, "batch": batchSize})
}
