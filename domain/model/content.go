package model

import (
	"strings"
	"time"
)

// Content is the media location handed to an adapter. The orchestrator only
// reads it; upload and storage handling live outside this service.
type Content struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	FileURL   string    `json:"file_url" bson:"file_url"`
	MimeType  string    `json:"mime_type" bson:"mime_type"`
	Size      int64     `json:"size" bson:"size"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// IsVideo reports whether the media needs the async video path on platforms
// that process video server-side.
func (c *Content) IsVideo() bool {
	return strings.HasPrefix(c.MimeType, "video/")
}
