package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotCancellable is returned for jobs that already reached a terminal
	// state, or are publishing but past the point of interruption.
	ErrNotCancellable = errors.New("job is not cancellable")

	// ErrJobNotFound is returned when no job exists for the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrStatsUnavailable is returned when stats are requested for a job that
	// has not published.
	ErrStatsUnavailable = errors.New("stats unavailable: job is not published")
)

// IPublishUsecase is the public surface of the publish orchestrator.
type IPublishUsecase interface {
	Submit(ctx context.Context, req *model.PublishRequest) (*model.PublishResponse, error)
	GetStatus(ctx context.Context, jobID string) (*model.Job, error)
	GetRequest(ctx context.Context, requestID, userID string) (*model.PublishResponse, error)
	Cancel(ctx context.Context, jobID, userID string) error
	Stats(ctx context.Context, jobID, userID string) (*model.PostStats, error)
	DispatchDue(ctx context.Context, now time.Time, batch int) error
	Platforms() []string
}

// IStatsCache caches fetched post stats. Optional; a nil cache disables it.
type IStatsCache interface {
	Get(ctx context.Context, jobID string) (*model.PostStats, error)
	Set(ctx context.Context, jobID string, stats *model.PostStats)
}

type publishUsecase struct {
	adapters    map[string]repository.IPlatform
	resolver    ICredentialResolver
	jobRepo     repository.IJob
	contentRepo repository.IContent
	policy      RetryPolicy
	skew        time.Duration
	statsCache  IStatsCache
	broadcaster func(*model.Job)

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewPublishUsecase(
	adapters []repository.IPlatform,
	resolver ICredentialResolver,
	jobRepo repository.IJob,
	contentRepo repository.IContent,
	policy RetryPolicy,
	skew time.Duration,
) *publishUsecase {
	m := make(map[string]repository.IPlatform, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	if skew == 0 {
		skew = 2 * time.Minute
	}
	return &publishUsecase{
		adapters:    m,
		resolver:    resolver,
		jobRepo:     jobRepo,
		contentRepo: contentRepo,
		policy:      policy,
		skew:        skew,
		inflight:    make(map[string]context.CancelFunc),
	}
}

// WithBroadcaster installs a callback invoked after every persisted job
// transition (realtime hub, lifecycle events).
func (u *publishUsecase) WithBroadcaster(fn func(*model.Job)) *publishUsecase {
	u.broadcaster = fn
	return u
}

// WithStatsCache installs the stats cache.
func (u *publishUsecase) WithStatsCache(c IStatsCache) *publishUsecase {
	u.statsCache = c
	return u
}

func (u *publishUsecase) Platforms() []string {
	names := make([]string, 0, len(u.adapters))
	for name := range u.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Submit validates the request, creates one job per target platform, and for
// immediate requests dispatches them concurrently and waits for every job to
// reach a terminal state. Scheduled requests only persist pending jobs; the
// scheduler trigger runs DispatchDue later. Partial failure is a normal
// response, never an error.
func (u *publishUsecase) Submit(ctx context.Context, req *model.PublishRequest) (*model.PublishResponse, error) {
	platforms, err := u.validate(req)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = time.Now().UTC()

	jobs := make([]*model.Job, 0, len(platforms))
	for _, platform := range platforms {
		job := &model.Job{
			ID:          uuid.NewString(),
			RequestID:   req.ID,
			UserID:      req.UserID,
			Platform:    platform,
			ContentID:   req.ContentID,
			Caption:     req.Caption,
			Hashtags:    req.Hashtags,
			State:       model.JobStatePending,
			ScheduledAt: req.ScheduleAt,
			CreatedAt:   req.CreatedAt,
			UpdatedAt:   req.CreatedAt,
		}
		if err := u.jobRepo.Save(ctx, job); err != nil {
			return nil, fmt.Errorf("persist job for %s: %w", platform, err)
		}
		jobs = append(jobs, job)
	}

	if req.ScheduleAt != nil {
		return buildResponse(req.ID, jobs), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			u.runJob(gctx, job)
			return nil // per-platform failures are outcomes, not errors
		})
	}
	_ = g.Wait()
	return buildResponse(req.ID, jobs), nil
}

func (u *publishUsecase) validate(req *model.PublishRequest) ([]string, error) {
	if req.UserID == "" || req.ContentID == "" {
		return nil, errors.New("userID and contentID required")
	}
	if len(req.Platforms) == 0 {
		return nil, errors.New("platforms required")
	}
	seen := make(map[string]struct{}, len(req.Platforms))
	norm := make([]string, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		p = strings.ToLower(p)
		if _, ok := u.adapters[p]; !ok {
			return nil, errors.New("unsupported platform: " + p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		norm = append(norm, p)
	}
	if req.ScheduleAt != nil && time.Since(*req.ScheduleAt) > u.skew {
		return nil, errors.New("schedule time is in the past")
	}
	return norm, nil
}

// runJob owns one job from dispatch to terminal state. All state mutation for
// the job happens here, on this goroutine.
func (u *publishUsecase) runJob(ctx context.Context, job *model.Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	u.registerInflight(job.ID, cancel)
	defer u.unregisterInflight(job.ID)

	lg := logger.GetLogger().WithField("job_id", job.ID).WithField("platform", job.Platform)

	if err := job.MarkPublishing(time.Now().UTC()); err != nil {
		lg.WithField("error", err).Error("dispatch refused")
		return
	}
	u.persist(jobCtx, job)

	content, err := u.contentRepo.GetContent(jobCtx, job.ContentID)
	if err != nil {
		u.fail(jobCtx, job, model.ErrKindContentRejected, "content unavailable: "+err.Error())
		return
	}

	adapter := u.adapters[job.Platform]
	authRetried := false
	for {
		cred, err := u.resolver.Resolve(jobCtx, job.UserID, job.Platform)
		if err != nil {
			switch {
			case errors.Is(err, ErrAuthUnavailable):
				u.fail(jobCtx, job, model.ErrKindAuthUnavailable, err.Error())
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				u.fail(jobCtx, job, model.ErrKindCancelled, err.Error())
			default:
				// Resolver infrastructure failures are not auth outcomes.
				u.fail(jobCtx, job, model.ErrKindUnknown, "credential resolve: "+err.Error())
			}
			return
		}

		post, err := adapter.Publish(jobCtx, cred, content, job.Caption, job.Hashtags)
		job.RecordAttempt(time.Now().UTC())
		if err == nil {
			if terr := job.MarkPublished(post.ID, post.URL, time.Now().UTC()); terr != nil {
				lg.WithField("error", terr).Error("publish transition refused")
				return
			}
			u.persist(jobCtx, job)
			lg.WithField("external_id", post.ID).Info("job published")
			return
		}
		u.persist(jobCtx, job)

		kind, message := normalizeOutcome(err)
		lg.WithField("kind", kind).WithField("attempts", job.Attempts).WithField("error", message).Warn("publish attempt failed")

		if kind == model.ErrKindAuthExpired && !authRetried {
			authRetried = true
			if _, rerr := u.resolver.ForceRefresh(jobCtx, job.UserID, job.Platform); rerr == nil {
				continue // one retry with the fresh token
			}
			u.fail(jobCtx, job, model.ErrKindAuthExpired, message)
			return
		}

		if kind.Retryable() && job.Attempts < u.policy.MaxAttempts {
			delay := u.policy.Backoff(job.Attempts)
			select {
			case <-jobCtx.Done():
				u.fail(jobCtx, job, model.ErrKindCancelled, "cancelled while backing off")
				return
			case <-time.After(delay):
			}
			continue
		}

		u.fail(jobCtx, job, kind, message)
		return
	}
}

func (u *publishUsecase) fail(ctx context.Context, job *model.Job, kind model.ErrorKind, message string) {
	// The terminal state must persist even when the job context is already
	// cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := job.MarkFailed(kind, message, time.Now().UTC()); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Error("fail transition refused")
		return
	}
	u.persist(ctx, job)
}

// persist saves the job and notifies the broadcaster. Persistence failures
// are logged, not propagated; the in-memory job stays authoritative for the
// running dispatch.
func (u *publishUsecase) persist(ctx context.Context, job *model.Job) {
	if err := u.jobRepo.Save(ctx, job); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Error("failed persisting job")
	}
	if u.broadcaster != nil {
		u.broadcaster(job)
	}
}

func (u *publishUsecase) registerInflight(jobID string, cancel context.CancelFunc) {
	u.mu.Lock()
	u.inflight[jobID] = cancel
	u.mu.Unlock()
}

func (u *publishUsecase) unregisterInflight(jobID string) {
	u.mu.Lock()
	delete(u.inflight, jobID)
	u.mu.Unlock()
}

func (u *publishUsecase) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := u.jobRepo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// GetRequest aggregates the outcomes of every job created for one request.
func (u *publishUsecase) GetRequest(ctx context.Context, requestID, userID string) (*model.PublishResponse, error) {
	jobs, err := u.jobRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	owned := jobs[:0]
	for _, job := range jobs {
		if job.UserID == userID {
			owned = append(owned, job)
		}
	}
	if len(owned) == 0 {
		return nil, ErrJobNotFound
	}
	return buildResponse(requestID, owned), nil
}

// Cancel stops a pending or actively-dispatching job. An in-flight poll is
// interrupted through its context and the job terminates as Failed/Cancelled.
// A job owned by another user is reported as not found.
func (u *publishUsecase) Cancel(ctx context.Context, jobID, userID string) error {
	job, err := u.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return ErrJobNotFound
	}

	u.mu.Lock()
	cancel, running := u.inflight[jobID]
	u.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	if job.State != model.JobStatePending {
		return ErrNotCancellable
	}
	u.fail(ctx, job, model.ErrKindCancelled, "cancelled before dispatch")
	return nil
}

// Stats fetches best-effort engagement numbers for a published job. Failures
// here never touch job state. A job owned by another user is reported as not
// found so the credential is never resolved on their behalf.
func (u *publishUsecase) Stats(ctx context.Context, jobID, userID string) (*model.PostStats, error) {
	job, err := u.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	if job.State != model.JobStatePublished {
		return nil, ErrStatsUnavailable
	}
	if u.statsCache != nil {
		if cached, err := u.statsCache.Get(ctx, jobID); err == nil && cached != nil {
			return cached, nil
		}
	}
	cred, err := u.resolver.Resolve(ctx, job.UserID, job.Platform)
	if err != nil {
		return nil, err
	}
	stats, err := u.adapters[job.Platform].FetchStats(ctx, cred, job.ExternalID)
	if err != nil {
		return nil, err
	}
	if u.statsCache != nil {
		u.statsCache.Set(ctx, jobID, stats)
	}
	return stats, nil
}

// DispatchDue dispatches pending jobs whose schedule time has arrived. The
// external scheduler trigger calls this on a ticker; the dispatch path is
// identical to immediate submission, only the trigger differs.
func (u *publishUsecase) DispatchDue(ctx context.Context, now time.Time, batch int) error {
	jobs, err := u.jobRepo.LoadPendingDue(ctx, now, batch)
	if err != nil {
		return fmt.Errorf("load due jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			u.runJob(gctx, job)
			return nil
		})
	}
	return g.Wait()
}

func buildResponse(requestID string, jobs []*model.Job) *model.PublishResponse {
	resp := &model.PublishResponse{
		RequestID: requestID,
		Complete:  true,
		Outcomes:  make(map[string]*model.PublishOutcome, len(jobs)),
	}
	for _, job := range jobs {
		resp.Outcomes[job.Platform] = job.Outcome()
		if !job.State.Terminal() {
			resp.Complete = false
		}
	}
	return resp
}

// normalizeOutcome extracts the taxonomy kind from an adapter error.
func normalizeOutcome(err error) (model.ErrorKind, string) {
	var pe *model.PlatformError
	if errors.As(err, &pe) {
		return pe.Kind, pe.Message
	}
	return model.ErrKindUnknown, err.Error()
}
