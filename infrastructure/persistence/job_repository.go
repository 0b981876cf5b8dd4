package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"crosspost/domain/model"
)

// JobRepository persists publish jobs in PostgreSQL.
type JobRepository struct{ db *sql.DB }

func NewJobRepository(db *sql.DB) *JobRepository { return &JobRepository{db: db} }

const jobColumns = `id, request_id, user_id, platform, content_id, caption, hashtags, state, attempts, last_error, error_kind, external_id, external_url, scheduled_at, created_at, updated_at`

func (r *JobRepository) Save(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	q := `INSERT INTO publish_jobs (` + jobColumns + `)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		  ON CONFLICT (id) DO UPDATE SET
			state=EXCLUDED.state,
			attempts=EXCLUDED.attempts,
			last_error=EXCLUDED.last_error,
			error_kind=EXCLUDED.error_kind,
			external_id=EXCLUDED.external_id,
			external_url=EXCLUDED.external_url,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q,
		job.ID, job.RequestID, job.UserID, job.Platform, job.ContentID,
		job.Caption, strings.Join(job.Hashtags, " "), string(job.State), job.Attempts,
		job.LastError, string(job.ErrorKind), job.ExternalID, job.ExternalURL,
		job.ScheduledAt, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *JobRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM publish_jobs WHERE id=$1`, id)
	return scanJob(row)
}

func (r *JobRepository) ListByRequest(ctx context.Context, requestID string) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM publish_jobs WHERE request_id=$1 ORDER BY platform`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *JobRepository) LoadPendingDue(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM publish_jobs WHERE state='pending' AND scheduled_at IS NOT NULL AND scheduled_at <= $1 ORDER BY scheduled_at ASC LIMIT $2`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	j := &model.Job{}
	var lastErr sql.NullString
	var errKind, hashtags string
	var state string
	var scheduledAt sql.NullTime
	if err := row.Scan(&j.ID, &j.RequestID, &j.UserID, &j.Platform, &j.ContentID,
		&j.Caption, &hashtags, &state, &j.Attempts, &lastErr, &errKind,
		&j.ExternalID, &j.ExternalURL, &scheduledAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if hashtags != "" {
		j.Hashtags = strings.Fields(hashtags)
	}
	j.State = model.JobState(state)
	j.ErrorKind = model.ErrorKind(errKind)
	if lastErr.Valid {
		j.LastError = &lastErr.String
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		j.ScheduledAt = &t
	}
	return j, nil
}

func collectJobs(rows *sql.Rows) ([]*model.Job, error) {
	var list []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}
