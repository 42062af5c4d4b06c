package domain

import "time"

// Token is a stored opaque token record. Access and refresh tokens share the
// same shape and differ only in lifetime and which table/map holds them.
type Token struct {
	ID        string
	TokenHash string // SHA-256 fingerprint of the opaque value
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TokenPair is what a successful code exchange or refresh returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime
	Scope        string        // space-delimited granted scopes
}
