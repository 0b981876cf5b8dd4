package model

import (
	"fmt"
	"time"
)

// JobState is the lifecycle state of a single platform publish job.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStatePublishing JobState = "publishing"
	JobStatePublished  JobState = "published"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == JobStatePublished || s == JobStateFailed
}

// Job tracks one platform's publish attempt for one request. A job is owned
// by the orchestrator task that dispatched it; adapters only return outcomes.
type Job struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"request_id"`
	UserID      string     `json:"user_id"`
	Platform    string     `json:"platform"`
	ContentID   string     `json:"content_id"`
	Caption     string     `json:"caption"`
	Hashtags    []string   `json:"hashtags"`
	State       JobState   `json:"state"`
	Attempts    int        `json:"attempts"`
	LastError   *string    `json:"last_error,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	ExternalID  string     `json:"external_id,omitempty"`
	ExternalURL string     `json:"external_url,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MarkPublishing moves the job out of pending. Called exactly once, when the
// job is first handed to its adapter.
func (j *Job) MarkPublishing(now time.Time) error {
	if j.State != JobStatePending {
		return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.State, JobStatePublishing)
	}
	j.State = JobStatePublishing
	j.UpdatedAt = now
	return nil
}

// MarkPublished records a successful publish. Terminal.
func (j *Job) MarkPublished(externalID, url string, now time.Time) error {
	if j.State != JobStatePublishing {
		return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.State, JobStatePublished)
	}
	j.State = JobStatePublished
	j.ExternalID = externalID
	j.ExternalURL = url
	j.LastError = nil
	j.ErrorKind = ""
	j.UpdatedAt = now
	return nil
}

// MarkFailed records a terminal failure with its normalized kind.
func (j *Job) MarkFailed(kind ErrorKind, message string, now time.Time) error {
	if j.State.Terminal() {
		return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.State, JobStateFailed)
	}
	j.State = JobStateFailed
	j.ErrorKind = kind
	j.LastError = &message
	j.UpdatedAt = now
	return nil
}

// RecordAttempt increments the attempt counter. Only called when a network
// attempt actually went out, never for skipped or cached steps.
func (j *Job) RecordAttempt(now time.Time) {
	j.Attempts++
	j.UpdatedAt = now
}

// Outcome converts a terminal job into its publish outcome.
func (j *Job) Outcome() *PublishOutcome {
	out := &PublishOutcome{
		Platform:   j.Platform,
		State:      j.State,
		ExternalID: j.ExternalID,
		URL:        j.ExternalURL,
		ErrorKind:  j.ErrorKind,
	}
	if j.LastError != nil {
		out.Error = *j.LastError
	}
	return out
}
