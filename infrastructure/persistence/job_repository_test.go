package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"crosspost/domain/model"
)

func TestJobRepository_Save_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewJobRepository(db)
	now := time.Now().UTC()
	job := &model.Job{
		ID:        "job-1",
		RequestID: "req-1",
		UserID:    "user-1",
		Platform:  model.PlatformInstagram,
		ContentID: "content-1",
		Caption:   "hello",
		Hashtags:  []string{"#go", "#social"},
		State:     model.JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO publish_jobs`)).
		WithArgs(job.ID, job.RequestID, job.UserID, job.Platform, job.ContentID,
			job.Caption, "#go #social", "pending", 0,
			nil, "", "", "", nil, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repository.Save(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewJobRepository(db)
	now := time.Now().UTC()

	cols := []string{"id", "request_id", "user_id", "platform", "content_id", "caption", "hashtags", "state", "attempts", "last_error", "error_kind", "external_id", "external_url", "scheduled_at", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("job-1", "req-1", "user-1", "youtube", "content-1", "hello", "#go", "published", 1, nil, "", "yt-123", "https://youtube.com/watch?v=yt-123", nil, now, now))

	job, err := repository.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatePublished, job.State)
	require.Equal(t, "yt-123", job.ExternalID)
	require.Equal(t, []string{"#go"}, job.Hashtags)
	require.Nil(t, job.ScheduledAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_LoadPendingDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewJobRepository(db)
	now := time.Now().UTC()
	due := now.Add(-time.Minute)

	cols := []string{"id", "request_id", "user_id", "platform", "content_id", "caption", "hashtags", "state", "attempts", "last_error", "error_kind", "external_id", "external_url", "scheduled_at", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE state='pending' AND scheduled_at IS NOT NULL AND scheduled_at <=`)).
		WithArgs(now, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("job-2", "req-2", "user-1", "tiktok", "content-2", "", "", "pending", 0, nil, "", "", "", due, now, now))

	jobs, err := repository.LoadPendingDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, model.JobStatePending, jobs[0].State)
	require.NotNil(t, jobs[0].ScheduledAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
