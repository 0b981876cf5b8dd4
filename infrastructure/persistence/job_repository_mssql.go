package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"crosspost/domain/model"
)

// JobRepositoryMSSQL persists publish jobs for SQL Server/Azure SQL using
// database/sql.
type JobRepositoryMSSQL struct{ db *sql.DB }

func NewJobRepositoryMSSQL(db *sql.DB) *JobRepositoryMSSQL { return &JobRepositoryMSSQL{db: db} }

func (r *JobRepositoryMSSQL) Save(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	q := `MERGE dbo.[publish_jobs] AS target
USING (VALUES (@p1)) AS src(id)
ON target.id = src.id
WHEN MATCHED THEN UPDATE SET
  state = @p8, attempts = @p9, last_error = @p10, error_kind = @p11,
  external_id = @p12, external_url = @p13, updated_at = @p16
WHEN NOT MATCHED THEN
  INSERT (id, request_id, user_id, platform, content_id, caption, hashtags, state, attempts, last_error, error_kind, external_id, external_url, scheduled_at, created_at, updated_at)
  VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12, @p13, @p14, @p15, @p16);`
	var scheduledAt sql.NullTime
	if job.ScheduledAt != nil {
		scheduledAt = sql.NullTime{Valid: true, Time: *job.ScheduledAt}
	}
	var lastErr sql.NullString
	if job.LastError != nil {
		lastErr = sql.NullString{Valid: true, String: *job.LastError}
	}
	_, err := r.db.ExecContext(ctx, q,
		job.ID, job.RequestID, job.UserID, job.Platform, job.ContentID,
		job.Caption, strings.Join(job.Hashtags, " "), string(job.State), job.Attempts,
		lastErr, string(job.ErrorKind), job.ExternalID, job.ExternalURL,
		scheduledAt, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *JobRepositoryMSSQL) Get(ctx context.Context, id string) (*model.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM dbo.[publish_jobs] WHERE id=@p1`, id)
	return scanJob(row)
}

func (r *JobRepositoryMSSQL) ListByRequest(ctx context.Context, requestID string) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM dbo.[publish_jobs] WHERE request_id=@p1 ORDER BY platform`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *JobRepositoryMSSQL) LoadPendingDue(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT TOP (@p2) `+jobColumns+` FROM dbo.[publish_jobs] WHERE state='pending' AND scheduled_at IS NOT NULL AND scheduled_at <= @p1 ORDER BY scheduled_at ASC`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}
