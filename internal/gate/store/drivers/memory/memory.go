// Package memory provides an in-process Store for tests and single-node
// deployments that do not need persistence across restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store"
)

type Store struct {
	mu sync.Mutex
	// txMu serializes WithTx blocks so transactional sections never
	// interleave with each other.
	txMu sync.Mutex

	users         map[string]domain.User              // keyed by id
	usersByEmail  map[string]string                   // email -> id
	clients       map[string]domain.Client            // keyed by id
	codes         map[string]domain.AuthorizationCode // keyed by code hash
	accessTokens  map[string]domain.Token             // keyed by token hash
	refreshTokens map[string]domain.Token             // keyed by token hash
	records       map[string]domain.Record            // keyed by id
	closed        bool
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		usersByEmail:  make(map[string]string),
		clients:       make(map[string]domain.Client),
		codes:         make(map[string]domain.AuthorizationCode),
		accessTokens:  make(map[string]domain.Token),
		refreshTokens: make(map[string]domain.Token),
		records:       make(map[string]domain.Record),
	}
}

// ApplyMigrations is a no-op; the maps carry no schema.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrNotFound
	}
	return ctx.Err()
}

// WithTx runs fn while holding the transaction lock. Mutations are applied
// directly; callers must not rely on rollback semantics.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

func (s *Store) Users() store.Users                           { return &usersRepo{s: s} }
func (s *Store) Clients() store.Clients                       { return &clientsRepo{s: s} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return &codesRepo{s: s} }
func (s *Store) AccessTokens() store.Tokens                   { return &tokensRepo{s: s, access: true} }
func (s *Store) RefreshTokens() store.Tokens                  { return &tokensRepo{s: s, access: false} }
func (s *Store) Records() store.Records                       { return &recordsRepo{s: s} }

type usersRepo struct{ s *Store }

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.usersByEmail[email]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *usersRepo) CreateUser(ctx context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := r.s.usersByEmail[user.Email]; ok {
		return store.ErrAlreadyExists
	}
	r.s.users[user.ID] = user
	r.s.usersByEmail[user.Email] = user.ID
	return nil
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		delete(r.s.usersByEmail, u.Email)
		delete(r.s.users, id)
	}
	return nil
}

type clientsRepo struct{ s *Store }

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return domain.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clients := make([]domain.Client, 0, len(r.s.clients))
	for _, c := range r.s.clients {
		clients = append(clients, c)
	}
	return clients, nil
}

func (r *clientsRepo) CreateClient(ctx context.Context, client domain.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[client.ID]; ok {
		return store.ErrAlreadyExists
	}
	r.s.clients[client.ID] = client
	return nil
}

func (r *clientsRepo) UpdateClientSecretHash(ctx context.Context, id, secretHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return store.ErrNotFound
	}
	c.SecretHash = secretHash
	c.SecretExpiresAt = expiresAt
	r.s.clients[id] = c
	return nil
}

func (r *clientsRepo) DeleteClient(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.clients, id)
	return nil
}

type codesRepo struct{ s *Store }

func (r *codesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.codes[code.CodeHash]; ok {
		return store.ErrAlreadyExists
	}
	r.s.codes[code.CodeHash] = code
	return nil
}

func (r *codesRepo) ConsumeAuthorizationCode(ctx context.Context, codeHash string) (domain.AuthorizationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[codeHash]
	if !ok {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}
	delete(r.s.codes, codeHash)
	return c, nil
}

func (r *codesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for hash, c := range r.s.codes {
		if c.Expired(now) {
			delete(r.s.codes, hash)
		}
	}
	return nil
}

type tokensRepo struct {
	s      *Store
	access bool
}

func (r *tokensRepo) tokens() map[string]domain.Token {
	if r.access {
		return r.s.accessTokens
	}
	return r.s.refreshTokens
}

func (r *tokensRepo) CreateToken(ctx context.Context, token domain.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.tokens()
	if _, ok := m[token.TokenHash]; ok {
		return store.ErrAlreadyExists
	}
	m[token.TokenHash] = token
	return nil
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.tokens()[tokenHash]
	if !ok {
		return domain.Token{}, store.ErrNotFound
	}
	return t, nil
}

func (r *tokensRepo) ConsumeTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.tokens()
	t, ok := m[tokenHash]
	if !ok {
		return domain.Token{}, store.ErrNotFound
	}
	delete(m, tokenHash)
	return t, nil
}

func (r *tokensRepo) DeleteTokenByHash(ctx context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.tokens(), tokenHash)
	return nil
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.tokens()
	for hash, t := range m {
		if t.Expired(now) {
			delete(m, hash)
		}
	}
	return nil
}

type recordsRepo struct{ s *Store }

func (r *recordsRepo) GetRecord(ctx context.Context, userID, recordID string) (domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[recordID]
	if !ok || rec.UserID != userID {
		return domain.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (r *recordsRepo) ListRecords(ctx context.Context, userID string) ([]domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var records []domain.Record
	for _, rec := range r.s.records {
		if rec.UserID == userID {
			records = append(records, rec)
		}
	}
	sortRecords(records)
	return records, nil
}

func (r *recordsRepo) SearchRecords(ctx context.Context, userID, query string) ([]domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var records []domain.Record
	for _, rec := range r.s.records {
		if rec.UserID != userID {
			continue
		}
		if containsFold(rec.Title, query) || containsFold(rec.Body, query) {
			records = append(records, rec)
		}
	}
	sortRecords(records)
	return records, nil
}

func (r *recordsRepo) CreateRecord(ctx context.Context, record domain.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.records[record.ID]; ok {
		return store.ErrAlreadyExists
	}
	r.s.records[record.ID] = record
	return nil
}
