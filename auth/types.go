package auth

import "time"

// User is the profile of the authenticated account as returned by the backend.
type User struct {
	ID         int        `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// Credentials is the access/refresh token pair of a session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // zero when unknown
}

// Complete reports whether both tokens are present.
func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Expired reports whether the access token is known to be past its expiry.
// Credentials without an expiry are never considered expired.
func (c Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Session pairs the user profile with its credentials.
type Session struct {
	User        *User
	Credentials Credentials
}
