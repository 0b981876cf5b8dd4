package model

import "time"

// Credential stores platform OAuth credentials per user. AccountID carries
// the platform-side account handle (e.g. the Instagram business account id
// the Graph API addresses).
type Credential struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Platform     string     `json:"platform"`
	AccountID    *string    `json:"account_id,omitempty"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       string     `json:"scopes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ExpiresWithin reports whether the token is missing an expiry or expires
// inside the given safety margin.
func (c *Credential) ExpiresWithin(margin time.Duration, now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return now.Add(margin).After(*c.ExpiresAt)
}
