package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store"
	"github.com/quollsoft/recordgate/pkg/cryptox"
	"github.com/quollsoft/recordgate/pkg/httpx"
	"github.com/quollsoft/recordgate/pkg/idx"
)

// LedgerService owns the lifecycle of authorization codes and opaque tokens.
// Raw values are handed out exactly once; only SHA-256 fingerprints persist,
// so a storage leak exposes nothing redeemable.
type LedgerService struct {
	Store store.Store

	CodeTTL         time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// IssueCode mints a single-use authorization code bound to the client, user,
// redirect URI and PKCE challenge, and returns the raw code.
func (s *LedgerService) IssueCode(ctx context.Context, clientID, userID, codeChallenge, redirectURI string, scopes []string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	code := domain.AuthorizationCode{
		ID:            idx.New().String(),
		CodeHash:      cryptox.FingerprintToken(raw),
		ClientID:      clientID,
		UserID:        userID,
		CodeChallenge: codeChallenge,
		RedirectURI:   redirectURI,
		Scopes:        scopes,
		ExpiresAt:     now.Add(s.CodeTTL),
		CreatedAt:     now,
	}
	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, code); err != nil {
		return "", err
	}

	return raw, nil
}

// RedeemCode consumes the code and validates its bindings. The consume
// happens before any validation so a failed redemption still burns the code;
// replaying a stolen code after a bad first attempt gains nothing.
func (s *LedgerService) RedeemCode(ctx context.Context, client domain.Client, code, verifier, redirectURI string) (domain.AuthorizationCode, error) {
	stored, err := s.Store.AuthorizationCodes().ConsumeAuthorizationCode(ctx, cryptox.FingerprintToken(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthorizationCode{}, ErrInvalidGrant
		}
		return domain.AuthorizationCode{}, err
	}

	switch {
	case stored.ClientID != client.ID:
		return domain.AuthorizationCode{}, ErrInvalidGrant
	case stored.Expired(time.Now()):
		return domain.AuthorizationCode{}, ErrInvalidGrant
	case stored.RedirectURI != redirectURI:
		return domain.AuthorizationCode{}, ErrInvalidGrant
	}

	// A code bound to a challenge demands a matching verifier; a stray
	// verifier against an unbound code is equally a failure.
	if stored.CodeChallenge != "" || verifier != "" {
		if !cryptox.VerifyS256Challenge(stored.CodeChallenge, verifier) {
			return domain.AuthorizationCode{}, ErrInvalidGrant
		}
	}

	return stored, nil
}

// IssueTokenPair mints a fresh access/refresh pair for the subject. Both
// records land in one transaction so a crash cannot leave a refresh token
// without its access counterpart.
func (s *LedgerService) IssueTokenPair(ctx context.Context, clientID, userID string, scopes []string) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		pair, err = s.mintPair(ctx, tx, clientID, userID, scopes)
		return err
	})
	return pair, err
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is minted in the same transaction. A replayed refresh token fails
// with ErrInvalidGrant because the consume already removed it. When
// requestedScopes is non-empty the new pair is narrowed to it; widening
// beyond the original grant fails with ErrInvalidScope.
func (s *LedgerService) Refresh(ctx context.Context, client domain.Client, refreshToken string, requestedScopes []string) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		stored, err := tx.RefreshTokens().ConsumeTokenByHash(ctx, cryptox.FingerprintToken(refreshToken))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}
		if stored.ClientID != client.ID || stored.Expired(time.Now()) {
			return ErrInvalidGrant
		}

		scopes := stored.Scopes
		if len(requestedScopes) > 0 {
			if !subsetOf(requestedScopes, stored.Scopes) {
				return ErrInvalidScope
			}
			scopes = requestedScopes
		}

		pair, err = s.mintPair(ctx, tx, stored.ClientID, stored.UserID, scopes)
		return err
	})
	return pair, err
}

// subsetOf reports whether every element of want is present in have.
func subsetOf(want, have []string) bool {
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[s] = true
	}
	for _, s := range want {
		if !set[s] {
			return false
		}
	}
	return true
}

func (s *LedgerService) mintPair(ctx context.Context, tx store.Tx, clientID, userID string, scopes []string) (domain.TokenPair, error) {
	rawAccess, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}
	rawRefresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}

	now := time.Now().UTC()
	access := domain.Token{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(rawAccess),
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.AccessTokenTTL),
		CreatedAt: now,
	}
	refresh := domain.Token{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(rawRefresh),
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.RefreshTokenTTL),
		CreatedAt: now,
	}

	if err := tx.AccessTokens().CreateToken(ctx, access); err != nil {
		return domain.TokenPair{}, err
	}
	if err := tx.RefreshTokens().CreateToken(ctx, refresh); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  rawAccess,
		RefreshToken: rawRefresh,
		ExpiresIn:    s.AccessTokenTTL,
		Scope:        strings.Join(scopes, " "),
	}, nil
}

// VerifyAccessToken resolves a raw bearer token to the identity it was
// issued for. Expired tokens are deleted on sight.
func (s *LedgerService) VerifyAccessToken(ctx context.Context, token string) (httpx.Identity, error) {
	if token == "" {
		return httpx.Identity{}, ErrInvalidToken
	}

	hash := cryptox.FingerprintToken(token)
	stored, err := s.Store.AccessTokens().GetTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Identity{}, ErrInvalidToken
		}
		return httpx.Identity{}, err
	}

	if stored.Expired(time.Now()) {
		_ = s.Store.AccessTokens().DeleteTokenByHash(ctx, hash)
		return httpx.Identity{}, ErrInvalidToken
	}

	return httpx.Identity{
		UserID:   stored.UserID,
		ClientID: stored.ClientID,
		Scopes:   stored.Scopes,
	}, nil
}

// Revoke removes the token from whichever ledger holds it, but only when it
// belongs to the calling client. Unknown or foreign tokens are a silent
// no-op; the response must not let a caller probe for live tokens.
func (s *LedgerService) Revoke(ctx context.Context, clientID, token string) error {
	if token == "" {
		return nil
	}
	hash := cryptox.FingerprintToken(token)

	for _, repo := range []store.Tokens{s.Store.RefreshTokens(), s.Store.AccessTokens()} {
		stored, err := repo.GetTokenByHash(ctx, hash)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if stored.ClientID != clientID {
			return nil
		}
		return repo.DeleteTokenByHash(ctx, hash)
	}
	return nil
}

// PurgeExpired drops expired codes and tokens. Run periodically from the
// app's housekeeping loop.
func (s *LedgerService) PurgeExpired(ctx context.Context) error {
	now := time.Now()
	if err := s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx, now); err != nil {
		return err
	}
	if err := s.Store.AccessTokens().DeleteExpiredTokens(ctx, now); err != nil {
		return err
	}
	return s.Store.RefreshTokens().DeleteExpiredTokens(ctx, now)
}
