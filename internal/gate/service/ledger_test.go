package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store/drivers/memory"
	"github.com/quollsoft/recordgate/pkg/cryptox"

	"github.com/stretchr/testify/require"
)

func newTestLedger() (*LedgerService, *memory.Store) {
	st := memory.NewStore()
	return &LedgerService{
		Store:           st,
		CodeTTL:         10 * time.Minute,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}, st
}

func testClient(id string) domain.Client {
	return domain.Client{
		ID:           id,
		RedirectURIs: []string{"https://app.example/cb"},
	}
}

func TestRedeemCodeWithMatchingVerifier(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := cryptox.S256Challenge(verifier)

	code, err := ledger.IssueCode(ctx, client.ID, "user-1", challenge, "https://app.example/cb", []string{"records:read"})
	require.NoError(t, err)
	require.NotEmpty(t, code)

	redeemed, err := ledger.RedeemCode(ctx, client, code, verifier, "https://app.example/cb")
	require.NoError(t, err)
	require.Equal(t, "user-1", redeemed.UserID)
	require.Equal(t, []string{"records:read"}, redeemed.Scopes)
}

func TestRedeemCodeWithWrongVerifier(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	challenge := cryptox.S256Challenge("the-real-verifier-the-real-verifier-1234")
	code, err := ledger.IssueCode(ctx, client.ID, "user-1", challenge, "https://app.example/cb", nil)
	require.NoError(t, err)

	_, err = ledger.RedeemCode(ctx, client, code, "some-other-verifier-some-other-verifier", "https://app.example/cb")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRedeemCodeSingleUse(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	verifier := "single-use-verifier-single-use-verifier-1"
	code, err := ledger.IssueCode(ctx, client.ID, "user-1", cryptox.S256Challenge(verifier), "https://app.example/cb", nil)
	require.NoError(t, err)

	_, err = ledger.RedeemCode(ctx, client, code, verifier, "https://app.example/cb")
	require.NoError(t, err)

	_, err = ledger.RedeemCode(ctx, client, code, verifier, "https://app.example/cb")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRedeemCodeConcurrentRace(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	verifier := "race-verifier-race-verifier-race-verifie"
	code, err := ledger.IssueCode(ctx, client.ID, "user-1", cryptox.S256Challenge(verifier), "https://app.example/cb", nil)
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := ledger.RedeemCode(ctx, client, code, verifier, "https://app.example/cb"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, successes, "exactly one concurrent redemption may succeed")
}

func TestRedeemCodeRedirectMismatch(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	verifier := "mismatch-verifier-mismatch-verifier-1234"
	code, err := ledger.IssueCode(ctx, client.ID, "user-1", cryptox.S256Challenge(verifier), "https://app.example/cb", nil)
	require.NoError(t, err)

	// Omitting the redirect URI when one is bound must fail.
	_, err = ledger.RedeemCode(ctx, client, code, verifier, "")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRedeemCodeForeignClient(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	verifier := "foreign-verifier-foreign-verifier-12345-"
	code, err := ledger.IssueCode(ctx, "client-1", "user-1", cryptox.S256Challenge(verifier), "https://app.example/cb", nil)
	require.NoError(t, err)

	_, err = ledger.RedeemCode(ctx, testClient("client-2"), code, verifier, "https://app.example/cb")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRedeemCodeExpired(t *testing.T) {
	ledger, _ := newTestLedger()
	ledger.CodeTTL = -time.Minute
	ctx := context.Background()
	client := testClient("client-1")

	verifier := "expired-verifier-expired-verifier-12345-"
	code, err := ledger.IssueCode(ctx, client.ID, "user-1", cryptox.S256Challenge(verifier), "https://app.example/cb", nil)
	require.NoError(t, err)

	_, err = ledger.RedeemCode(ctx, client, code, verifier, "https://app.example/cb")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRefreshRotation(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	pair, err := ledger.IssueTokenPair(ctx, client.ID, "user-1", []string{"records:read"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	rotated, err := ledger.Refresh(ctx, client, pair.RefreshToken, nil)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.Equal(t, "records:read", rotated.Scope)

	// The consumed token is gone.
	_, err = ledger.Refresh(ctx, client, pair.RefreshToken, nil)
	require.ErrorIs(t, err, ErrInvalidGrant)

	// The rotated one still works.
	_, err = ledger.Refresh(ctx, client, rotated.RefreshToken, nil)
	require.NoError(t, err)
}

func TestRefreshScopeNarrowing(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	pair, err := ledger.IssueTokenPair(ctx, client.ID, "user-1", []string{"records:read", "records:write"})
	require.NoError(t, err)

	narrowed, err := ledger.Refresh(ctx, client, pair.RefreshToken, []string{"records:read"})
	require.NoError(t, err)
	require.Equal(t, "records:read", narrowed.Scope)

	_, err = ledger.Refresh(ctx, client, narrowed.RefreshToken, []string{"records:read", "admin"})
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestRefreshExpiredToken(t *testing.T) {
	ledger, _ := newTestLedger()
	ledger.RefreshTokenTTL = -time.Minute
	ctx := context.Background()
	client := testClient("client-1")

	pair, err := ledger.IssueTokenPair(ctx, client.ID, "user-1", nil)
	require.NoError(t, err)

	_, err = ledger.Refresh(ctx, client, pair.RefreshToken, nil)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestVerifyAccessToken(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	pair, err := ledger.IssueTokenPair(ctx, "client-1", "user-1", []string{"records:read"})
	require.NoError(t, err)

	id, err := ledger.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", id.UserID)
	require.Equal(t, "client-1", id.ClientID)
	require.Equal(t, []string{"records:read"}, id.Scopes)

	_, err = ledger.VerifyAccessToken(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ledger.VerifyAccessToken(ctx, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	ledger, _ := newTestLedger()
	ledger.AccessTokenTTL = -time.Minute
	ctx := context.Background()

	pair, err := ledger.IssueTokenPair(ctx, "client-1", "user-1", nil)
	require.NoError(t, err)

	_, err = ledger.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Expired tokens are deleted on verification.
	_, err = ledger.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeIdempotent(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	pair, err := ledger.IssueTokenPair(ctx, "client-1", "user-1", nil)
	require.NoError(t, err)

	// Unknown token: success, nothing changes.
	require.NoError(t, ledger.Revoke(ctx, "client-1", "unknown-token"))
	_, err = ledger.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)

	// Foreign client: success, nothing changes.
	require.NoError(t, ledger.Revoke(ctx, "client-2", pair.AccessToken))
	_, err = ledger.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)

	// Owner revokes: the token dies, and revoking again is still fine.
	require.NoError(t, ledger.Revoke(ctx, "client-1", pair.AccessToken))
	_, err = ledger.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.NoError(t, ledger.Revoke(ctx, "client-1", pair.AccessToken))
}

func TestRevokeRefreshToken(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	client := testClient("client-1")

	pair, err := ledger.IssueTokenPair(ctx, client.ID, "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, ledger.Revoke(ctx, client.ID, pair.RefreshToken))

	_, err = ledger.Refresh(ctx, client, pair.RefreshToken, nil)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestPurgeExpired(t *testing.T) {
	ledger, _ := newTestLedger()
	ledger.AccessTokenTTL = -time.Minute
	ledger.RefreshTokenTTL = -time.Minute
	ctx := context.Background()
	client := testClient("client-1")

	pair, err := ledger.IssueTokenPair(ctx, client.ID, "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, ledger.PurgeExpired(ctx))

	_, err = ledger.Refresh(ctx, client, pair.RefreshToken, nil)
	require.ErrorIs(t, err, ErrInvalidGrant)
}
