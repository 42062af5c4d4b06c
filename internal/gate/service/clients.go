package service

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store"
	"github.com/quollsoft/recordgate/pkg/cryptox"
	"github.com/quollsoft/recordgate/pkg/slogx"
)

// Grant and response types the registry accepts.
var (
	allowedGrantTypes    = map[string]bool{"authorization_code": true, "refresh_token": true}
	allowedResponseTypes = map[string]bool{"code": true}
)

// ClientService is the client registry. All reads go through an in-process
// cache warmed at startup; dynamic registration writes the cache first and
// persists in the background so the new client is usable immediately.
type ClientService struct {
	Store     store.Store
	SecretTTL time.Duration // lifetime assigned to issued client secrets

	mu    sync.RWMutex
	cache map[string]domain.Client
	wg    sync.WaitGroup
}

// WarmCache loads every stored client into the cache. Call once at startup
// before serving requests.
func (s *ClientService) WarmCache(ctx context.Context) error {
	clients, err := s.Store.Clients().ListClients(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]domain.Client, len(clients))
	for _, c := range clients {
		s.cache[c.ID] = c
	}
	return nil
}

// Get returns the client with the given id. Lookups are answered from the
// cache alone and never block on storage; before WarmCache has run, or for a
// client persisted by another process, the answer is not-found.
func (s *ClientService) Get(ctx context.Context, clientID string) (domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[clientID]
	if !ok {
		return domain.Client{}, ErrInvalidClient
	}
	return c, nil
}

// RegisterClientParams is the validated input to Register. Empty slices get
// defaults; redirect URIs are mandatory.
type RegisterClientParams struct {
	Name          string
	RedirectURIs  []string
	GrantTypes    []string
	ResponseTypes []string
	Scopes        []string
}

// Register creates a client with freshly generated credentials and returns
// the record plus the plaintext secret. The secret is shown exactly once;
// only its hash is retained. The cache entry is visible immediately and
// rolled back if the background persist fails.
func (s *ClientService) Register(ctx context.Context, p RegisterClientParams) (domain.Client, string, error) {
	if len(p.RedirectURIs) == 0 {
		return domain.Client{}, "", ErrInvalidRequest
	}
	for _, uri := range p.RedirectURIs {
		u, err := url.Parse(uri)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return domain.Client{}, "", ErrInvalidRequest
		}
	}

	grantTypes := p.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code", "refresh_token"}
	}
	for _, gt := range grantTypes {
		if !allowedGrantTypes[gt] {
			return domain.Client{}, "", ErrInvalidRequest
		}
	}

	responseTypes := p.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{"code"}
	}
	for _, rt := range responseTypes {
		if !allowedResponseTypes[rt] {
			return domain.Client{}, "", ErrInvalidRequest
		}
	}

	clientID, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return domain.Client{}, "", err
	}
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Client{}, "", err
	}
	secretHash, err := cryptox.HashPassword(secret)
	if err != nil {
		return domain.Client{}, "", err
	}

	now := time.Now().UTC()
	client := domain.Client{
		ID:              clientID,
		Name:            p.Name,
		SecretHash:      secretHash,
		RedirectURIs:    p.RedirectURIs,
		GrantTypes:      grantTypes,
		ResponseTypes:   responseTypes,
		Scopes:          p.Scopes,
		CreatedAt:       now,
		SecretExpiresAt: now.Add(s.SecretTTL),
	}

	s.mu.Lock()
	if s.cache == nil {
		s.cache = make(map[string]domain.Client)
	}
	s.cache[client.ID] = client
	s.mu.Unlock()

	log := slogx.FromContext(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Detached from the request context so a client disconnect does
		// not abort persistence.
		if err := s.Store.Clients().CreateClient(context.Background(), client); err != nil {
			s.mu.Lock()
			delete(s.cache, client.ID)
			s.mu.Unlock()
			log.Error("failed to persist registered client",
				slog.String("client_id", client.ID),
				slog.Any("error", err))
		}
	}()

	return client, secret, nil
}

// VerifySecret authenticates a client. Public clients pass with an empty
// secret; confidential clients must present a matching, unexpired one.
func (s *ClientService) VerifySecret(ctx context.Context, clientID, secret string) (domain.Client, error) {
	client, err := s.Get(ctx, clientID)
	if err != nil {
		return domain.Client{}, err
	}

	if client.Public() {
		if secret != "" {
			return domain.Client{}, ErrInvalidClient
		}
		return client, nil
	}

	if !client.SecretExpiresAt.IsZero() && time.Now().After(client.SecretExpiresAt) {
		return domain.Client{}, ErrInvalidClient
	}
	if err := cryptox.VerifyPassword(secret, client.SecretHash); err != nil {
		return domain.Client{}, ErrInvalidClient
	}

	return client, nil
}

// Flush blocks until in-flight background persists have finished. Used on
// shutdown and in tests.
func (s *ClientService) Flush() {
	s.wg.Wait()
}
