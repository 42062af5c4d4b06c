package store

import (
	"context"
	"errors"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, memory)
// implement it. It exposes sub-repositories to keep concerns tidy and
// testable; transactional multi-step operations go through WithTx.
type Store interface {
	Users() Users
	Clients() Clients
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() Tokens
	RefreshTokens() Tokens
	Records() Records

	// ApplyMigrations brings the schema up to date. No-op for drivers
	// without a schema.
	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed. Drivers without real
	// transactions serialize fn behind a store-wide lock instead, which
	// preserves the atomicity the ledger relies on.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped view of the store.
type Tx interface {
	Users() Users
	Clients() Clients
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() Tokens
	RefreshTokens() Tokens
	Records() Records
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// DeleteUser removes a user.
	DeleteUser(ctx context.Context, userID string) error
}

type Clients interface {
	// GetClientByID fetches a single client record.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients; used to warm the registry cache at
	// startup.
	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client.
	CreateClient(ctx context.Context, c domain.Client) error

	// UpdateClientSecretHash rotates a client secret in place, setting its
	// new expiry.
	UpdateClientSecretHash(ctx context.Context, clientID, secretHash string, expiresAt time.Time) error

	// DeleteClient removes a client.
	DeleteClient(ctx context.Context, clientID string) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a freshly minted code.
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// ConsumeAuthorizationCode atomically fetches AND deletes the code with
	// the given fingerprint, returning ErrNotFound if absent. Atomicity here
	// is what makes codes single-use under concurrent redemption; a separate
	// get-then-delete would race.
	ConsumeAuthorizationCode(ctx context.Context, codeHash string) (domain.AuthorizationCode, error)

	// DeleteExpiredAuthorizationCodes is housekeeping.
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) error
}

// Tokens is the shared contract for access- and refresh-token repositories.
type Tokens interface {
	// CreateToken stores a new token record.
	CreateToken(ctx context.Context, t domain.Token) error

	// GetTokenByHash returns the token with the given fingerprint.
	GetTokenByHash(ctx context.Context, hash string) (domain.Token, error)

	// ConsumeTokenByHash atomically fetches AND deletes a token. Used for
	// refresh rotation, where redeem-once has the same race profile as
	// authorization codes.
	ConsumeTokenByHash(ctx context.Context, hash string) (domain.Token, error)

	// DeleteTokenByHash removes a token if present. Deleting an absent
	// token is not an error; revocation is idempotent.
	DeleteTokenByHash(ctx context.Context, hash string) error

	// DeleteExpiredTokens is housekeeping.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

type Records interface {
	// GetRecord fetches a record owned by userID. ErrNotFound covers both
	// absent rows and rows owned by someone else.
	GetRecord(ctx context.Context, userID, recordID string) (domain.Record, error)

	// ListRecords returns all records owned by userID, newest first.
	ListRecords(ctx context.Context, userID string) ([]domain.Record, error)

	// SearchRecords returns userID's records whose title or body contains
	// the query, newest first.
	SearchRecords(ctx context.Context, userID, query string) ([]domain.Record, error)

	// CreateRecord inserts a record.
	CreateRecord(ctx context.Context, r domain.Record) error
}
