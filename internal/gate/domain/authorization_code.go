package domain

import "time"

// AuthorizationCode is a stored, single-use code issuance. The raw code never
// persists; CodeHash is its SHA-256 fingerprint.
type AuthorizationCode struct {
	ID            string
	CodeHash      string
	ClientID      string
	UserID        string
	CodeChallenge string // PKCE S256 challenge the code is bound to
	RedirectURI   string
	Scopes        []string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Expired reports whether the code is past its expiry at the given instant.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
