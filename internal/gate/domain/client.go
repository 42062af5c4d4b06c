package domain

import "time"

// Client is a registered OAuth client. Public clients carry no secret hash
// and authenticate with PKCE alone.
type Client struct {
	ID              string
	Name            string
	SecretHash      string // argon2id encoded; empty for public clients
	RedirectURIs    []string
	GrantTypes      []string
	ResponseTypes   []string
	Scopes          []string
	CreatedAt       time.Time
	SecretExpiresAt time.Time // zero value means the secret never expires
}

// Public reports whether the client authenticates without a secret.
func (c Client) Public() bool { return c.SecretHash == "" }

// AllowsRedirectURI reports whether uri is in the registered set. Exact
// string match, no prefix or wildcard logic.
func (c Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
