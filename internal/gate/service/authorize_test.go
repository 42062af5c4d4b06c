package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/store/drivers/memory"
	"github.com/quollsoft/recordgate/pkg/cryptox"

	"github.com/stretchr/testify/require"
)

func newTestAuthorize(t *testing.T) (*AuthorizeService, string, string) {
	t.Helper()
	st := memory.NewStore()

	creds := &CredentialService{Store: st}
	clients := &ClientService{Store: st, SecretTTL: 365 * 24 * time.Hour}
	ledger := &LedgerService{
		Store:           st,
		CodeTTL:         10 * time.Minute,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}

	ctx := context.Background()
	_, err := creds.EnsureUser(ctx, "alice@example.com", "Alice", "hunter2hunter2")
	require.NoError(t, err)

	client, secret, err := clients.Register(ctx, RegisterClientParams{
		Name:         "Test App",
		RedirectURIs: []string{"https://app.example/cb"},
	})
	require.NoError(t, err)

	svc := &AuthorizeService{
		Credentials: creds,
		Clients:     clients,
		Ledger:      ledger,
		LoginPath:   "/login",
	}
	return svc, client.ID, secret
}

func TestBeginAuthorization(t *testing.T) {
	svc, clientID, _ := newTestAuthorize(t)
	ctx := context.Background()

	loginURL, err := svc.BeginAuthorization(ctx, AuthorizationRequest{
		ResponseType:        "code",
		ClientID:            clientID,
		RedirectURI:         "https://app.example/cb",
		Scope:               "records:read",
		State:               "xyz",
		CodeChallenge:       cryptox.S256Challenge("a-verifier-a-verifier-a-verifier-a-ver"),
		CodeChallengeMethod: "S256",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(loginURL, "/login?"))

	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, clientID, q.Get("client_id"))
	require.Equal(t, "xyz", q.Get("state"))
	require.Equal(t, "https://app.example/cb", q.Get("redirect_uri"))
}

func TestBeginAuthorizationRejectsBadRequests(t *testing.T) {
	svc, clientID, _ := newTestAuthorize(t)
	ctx := context.Background()
	challenge := cryptox.S256Challenge("a-verifier-a-verifier-a-verifier-a-ver")

	base := AuthorizationRequest{
		ResponseType:        "code",
		ClientID:            clientID,
		RedirectURI:         "https://app.example/cb",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	}

	req := base
	req.ResponseType = "token"
	_, err := svc.BeginAuthorization(ctx, req)
	require.ErrorIs(t, err, ErrInvalidRequest)

	req = base
	req.RedirectURI = "https://evil.example/cb"
	_, err = svc.BeginAuthorization(ctx, req)
	require.ErrorIs(t, err, ErrInvalidRequest)

	req = base
	req.CodeChallenge = ""
	_, err = svc.BeginAuthorization(ctx, req)
	require.ErrorIs(t, err, ErrInvalidRequest)

	req = base
	req.CodeChallengeMethod = "plain"
	_, err = svc.BeginAuthorization(ctx, req)
	require.ErrorIs(t, err, ErrInvalidRequest)

	req = base
	req.ClientID = "unknown-client"
	_, err = svc.BeginAuthorization(ctx, req)
	require.ErrorIs(t, err, ErrInvalidClient)
}

func TestCompleteLoginIssuesCode(t *testing.T) {
	svc, clientID, _ := newTestAuthorize(t)
	ctx := context.Background()

	redirect, err := svc.CompleteLogin(ctx, LoginSubmission{
		Email:         "alice@example.com",
		Password:      "hunter2hunter2",
		ClientID:      clientID,
		State:         "xyz",
		CodeChallenge: cryptox.S256Challenge("a-verifier-a-verifier-a-verifier-a-ver"),
		RedirectURI:   "https://app.example/cb",
		Scope:         "records:read",
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	require.Equal(t, "app.example", u.Host)
	require.NotEmpty(t, u.Query().Get("code"))
	require.Equal(t, "xyz", u.Query().Get("state"))
}

func TestCompleteLoginBadPassword(t *testing.T) {
	svc, clientID, _ := newTestAuthorize(t)
	ctx := context.Background()

	_, err := svc.CompleteLogin(ctx, LoginSubmission{
		Email:         "alice@example.com",
		Password:      "wrong",
		ClientID:      clientID,
		CodeChallenge: cryptox.S256Challenge("a-verifier-a-verifier-a-verifier-a-ver"),
		RedirectURI:   "https://app.example/cb",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCompleteLoginRejectsUnregisteredRedirect(t *testing.T) {
	svc, clientID, _ := newTestAuthorize(t)
	ctx := context.Background()

	_, err := svc.CompleteLogin(ctx, LoginSubmission{
		Email:         "alice@example.com",
		Password:      "hunter2hunter2",
		ClientID:      clientID,
		CodeChallenge: cryptox.S256Challenge("a-verifier-a-verifier-a-verifier-a-ver"),
		RedirectURI:   "https://evil.example/steal",
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFullCodeFlow(t *testing.T) {
	svc, clientID, secret := newTestAuthorize(t)
	ctx := context.Background()

	verifier := "full-flow-verifier-full-flow-verifier-12"
	redirect, err := svc.CompleteLogin(ctx, LoginSubmission{
		Email:         "alice@example.com",
		Password:      "hunter2hunter2",
		ClientID:      clientID,
		CodeChallenge: cryptox.S256Challenge(verifier),
		RedirectURI:   "https://app.example/cb",
		Scope:         "records:read",
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code)

	pair, err := svc.Exchange(ctx, ExchangeParams{
		ClientID:     clientID,
		ClientSecret: secret,
		Code:         code,
		CodeVerifier: verifier,
		RedirectURI:  "https://app.example/cb",
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, time.Hour, pair.ExpiresIn)
	require.Equal(t, "records:read", pair.Scope)

	// The issued access token resolves to the right identity.
	id, err := svc.Ledger.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, clientID, id.ClientID)

	// Refresh through the front door too.
	rotated, err := svc.ExchangeRefresh(ctx, RefreshParams{
		ClientID:     clientID,
		ClientSecret: secret,
		RefreshToken: pair.RefreshToken,
	})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
}

func TestExchangeRejectsBadClientSecret(t *testing.T) {
	svc, clientID, _ := newTestAuthorize(t)
	ctx := context.Background()

	_, err := svc.Exchange(ctx, ExchangeParams{
		ClientID:     clientID,
		ClientSecret: "wrong",
		Code:         "any-code",
		RedirectURI:  "https://app.example/cb",
	})
	require.ErrorIs(t, err, ErrInvalidClient)
}

func TestExchangeRequiresCode(t *testing.T) {
	svc, clientID, secret := newTestAuthorize(t)
	ctx := context.Background()

	_, err := svc.Exchange(ctx, ExchangeParams{
		ClientID:     clientID,
		ClientSecret: secret,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
