package model

import "time"

// Platform identifiers supported by the orchestrator.
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
)

// ErrorKind is the normalized error taxonomy shared by all platform adapters.
// Retry decisions are made on the kind, never on the raw platform payload.
type ErrorKind string

const (
	ErrKindRateLimited      ErrorKind = "rate_limited"
	ErrKindAuthExpired      ErrorKind = "auth_expired"
	ErrKindContentRejected  ErrorKind = "content_rejected"
	ErrKindProcessingFailed ErrorKind = "processing_failed"
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindCancelled        ErrorKind = "cancelled"
	ErrKindAuthUnavailable  ErrorKind = "auth_unavailable"
	ErrKindUnknown          ErrorKind = "unknown"
)

// Retryable reports whether the state machine may schedule another attempt
// for this kind. AuthExpired is handled separately (one refresh-then-retry
// per job) and is deliberately not listed here.
func (k ErrorKind) Retryable() bool {
	return k == ErrKindRateLimited || k == ErrKindTimeout
}

// PlatformError is a platform failure normalized into the shared taxonomy.
type PlatformError struct {
	Kind    ErrorKind
	Message string
}

func (e *PlatformError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func NewPlatformError(kind ErrorKind, message string) *PlatformError {
	return &PlatformError{Kind: kind, Message: message}
}

// PlatformPost is the successful result of a platform publish call.
type PlatformPost struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PostStats holds best-effort engagement numbers for a published post.
type PostStats struct {
	Views       int64 `json:"views"`
	Likes       int64 `json:"likes"`
	Comments    int64 `json:"comments"`
	Shares      int64 `json:"shares"`
	Impressions int64 `json:"impressions"`
	Reach       int64 `json:"reach"`
	Saves       int64 `json:"saves"`
}

// PublishRequest is one caller submission fanned out to N platform jobs.
// Immutable once accepted.
type PublishRequest struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ContentID  string     `json:"content_id"`
	Platforms  []string   `json:"platforms"`
	Caption    string     `json:"caption"`
	Hashtags   []string   `json:"hashtags"`
	ScheduleAt *time.Time `json:"schedule_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PublishOutcome is the terminal result of one job, success or failure.
type PublishOutcome struct {
	Platform   string    `json:"platform"`
	State      JobState  `json:"state"`
	ExternalID string    `json:"external_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// PublishResponse aggregates all job outcomes for one request, keyed by
// platform. Complete is true only when every job reached a terminal state.
type PublishResponse struct {
	RequestID string                     `json:"request_id"`
	Complete  bool                       `json:"complete"`
	Outcomes  map[string]*PublishOutcome `json:"outcomes"`
}
