package service

import (
	"context"
	"net/url"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/pkg/httpx"
)

// AuthorizeService drives the authorization-code flow end to end: it
// validates the initial redirect, turns a successful login into a code, and
// exchanges codes and refresh tokens for token pairs. It composes the
// credential, client and ledger services and holds no state of its own.
type AuthorizeService struct {
	Credentials *CredentialService
	Clients     *ClientService
	Ledger      *LedgerService

	// LoginPath is where the authorization endpoint sends the user to
	// prove who they are, usually "/login".
	LoginPath string
}

// AuthorizationRequest carries the query parameters of an authorization
// request verbatim.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// BeginAuthorization validates the request and returns the login-prompt URL
// carrying every parameter through unchanged. Login itself happens in a
// separate submission; this step only vets the client and its redirect.
func (s *AuthorizeService) BeginAuthorization(ctx context.Context, req AuthorizationRequest) (string, error) {
	if req.ResponseType != "code" {
		return "", ErrInvalidRequest
	}
	if req.CodeChallenge == "" || req.CodeChallengeMethod != "S256" {
		return "", ErrInvalidRequest
	}

	client, err := s.Clients.Get(ctx, req.ClientID)
	if err != nil {
		return "", err
	}
	if !client.AllowsRedirectURI(req.RedirectURI) {
		return "", ErrInvalidRequest
	}

	q := url.Values{}
	q.Set("client_id", req.ClientID)
	q.Set("redirect_uri", req.RedirectURI)
	q.Set("code_challenge", req.CodeChallenge)
	if req.Scope != "" {
		q.Set("scope", req.Scope)
	}
	if req.State != "" {
		q.Set("state", req.State)
	}

	return s.LoginPath + "?" + q.Encode(), nil
}

// LoginSubmission is the body of a login form post, plus the authorization
// parameters threaded through from BeginAuthorization.
type LoginSubmission struct {
	Email         string
	Password      string
	ClientID      string
	State         string
	CodeChallenge string
	RedirectURI   string
	Scope         string
}

// CompleteLogin verifies the credentials, issues a code bound to the
// submission's parameters, and returns the redirect URL carrying code and
// state back to the client.
func (s *AuthorizeService) CompleteLogin(ctx context.Context, sub LoginSubmission) (string, error) {
	client, err := s.Clients.Get(ctx, sub.ClientID)
	if err != nil {
		return "", err
	}
	// The redirect is re-validated here; the login form's hidden fields
	// are attacker-writable.
	if !client.AllowsRedirectURI(sub.RedirectURI) {
		return "", ErrInvalidRequest
	}
	if sub.CodeChallenge == "" {
		return "", ErrInvalidRequest
	}

	user, err := s.Credentials.Verify(ctx, sub.Email, sub.Password)
	if err != nil {
		return "", err
	}

	scopes := httpx.ParseSpaceDelimitedFields(sub.Scope)
	if len(scopes) == 0 {
		scopes = client.Scopes
	}

	code, err := s.Ledger.IssueCode(ctx, client.ID, user.ID, sub.CodeChallenge, sub.RedirectURI, scopes)
	if err != nil {
		return "", err
	}

	return buildCodeRedirect(sub.RedirectURI, code, sub.State)
}

// ExchangeParams is the form body of an authorization_code token request.
type ExchangeParams struct {
	ClientID     string
	ClientSecret string
	Code         string
	CodeVerifier string
	RedirectURI  string
}

// Exchange redeems an authorization code for a token pair.
func (s *AuthorizeService) Exchange(ctx context.Context, p ExchangeParams) (domain.TokenPair, error) {
	if p.Code == "" {
		return domain.TokenPair{}, ErrInvalidRequest
	}

	client, err := s.Clients.VerifySecret(ctx, p.ClientID, p.ClientSecret)
	if err != nil {
		return domain.TokenPair{}, err
	}

	code, err := s.Ledger.RedeemCode(ctx, client, p.Code, p.CodeVerifier, p.RedirectURI)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return s.Ledger.IssueTokenPair(ctx, client.ID, code.UserID, code.Scopes)
}

// RefreshParams is the form body of a refresh_token token request.
type RefreshParams struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
}

// ExchangeRefresh rotates a refresh token into a new pair.
func (s *AuthorizeService) ExchangeRefresh(ctx context.Context, p RefreshParams) (domain.TokenPair, error) {
	if p.RefreshToken == "" {
		return domain.TokenPair{}, ErrInvalidRequest
	}

	client, err := s.Clients.VerifySecret(ctx, p.ClientID, p.ClientSecret)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return s.Ledger.Refresh(ctx, client, p.RefreshToken, httpx.ParseSpaceDelimitedFields(p.Scope))
}

// buildCodeRedirect appends code and state to the redirect URI, preserving
// any query the client registered with.
func buildCodeRedirect(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", ErrInvalidRequest
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ErrorRedirect builds the error redirect for authorization-flow failures
// that happen after the redirect URI has been validated. State is preserved
// so the client can correlate the failure.
func ErrorRedirect(redirectURI, code, description, state string) (string, bool) {
	u, err := url.Parse(redirectURI)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	q := u.Query()
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}
