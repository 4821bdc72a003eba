package models

import "time"

// Session ties a refresh token to one browser fingerprint. Identity is
// filled in when the session is loaded together with its user.
type Session struct {
	ID           string
	UserID       string
	Identity     Identity
	Fingerprint  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
