package service

import (
	"context"
	"errors"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store"
	"github.com/quollsoft/recordgate/pkg/cryptox"
	"github.com/quollsoft/recordgate/pkg/idx"
)

// CredentialService authenticates resource owners against stored password
// hashes. It never reveals whether an email exists; every failure path
// returns ErrInvalidCredentials.
type CredentialService struct {
	Store store.Store
}

// Verify checks an email/password pair and returns the matching user.
func (s *CredentialService) Verify(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so a missing account is not
			// distinguishable from a wrong password.
			_ = cryptox.VerifyPassword(password, cryptox.DummyHash)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// EnsureUser creates a user if no account with the email exists yet and
// returns the stored user either way. Used to seed the bootstrap account at
// startup.
func (s *CredentialService) EnsureUser(ctx context.Context, email, displayName, password string) (domain.User, error) {
	if existing, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return s.Store.Users().GetUserByEmail(ctx, email)
		}
		return domain.User{}, err
	}

	return user, nil
}
