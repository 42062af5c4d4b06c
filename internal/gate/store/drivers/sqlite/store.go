package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/quollsoft/recordgate/internal/gate/store"
	_ "modernc.org/sqlite"
)

// dbtx is the subset of *sql.DB / *sql.Tx the repositories need, so the same
// repo types serve both the root store and transaction scopes.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs; sqlite has them off by default.
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Serialized writer avoids SQLITE_BUSY on the pure-Go driver.
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Rollback is a no-op after a successful commit.
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users                           { return &usersRepo{db: s.db} }
func (s *Store) Clients() store.Clients                       { return &clientsRepo{db: s.db} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return &codesRepo{db: s.db} }
func (s *Store) AccessTokens() store.Tokens                   { return &tokensRepo{db: s.db, table: "access_tokens"} }
func (s *Store) RefreshTokens() store.Tokens                  { return &tokensRepo{db: s.db, table: "refresh_tokens"} }
func (s *Store) Records() store.Records                       { return &recordsRepo{db: s.db} }

// txStore is a transaction-scoped view sharing the repo implementations.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Users() store.Users                           { return &usersRepo{db: t.tx} }
func (t *txStore) Clients() store.Clients                       { return &clientsRepo{db: t.tx} }
func (t *txStore) AuthorizationCodes() store.AuthorizationCodes { return &codesRepo{db: t.tx} }
func (t *txStore) AccessTokens() store.Tokens                   { return &tokensRepo{db: t.tx, table: "access_tokens"} }
func (t *txStore) RefreshTokens() store.Tokens                  { return &tokensRepo{db: t.tx, table: "refresh_tokens"} }
func (t *txStore) Records() store.Records                       { return &recordsRepo{db: t.tx} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConflict(err error) error {
	if err != nil && strings.Contains(err.Error(), "constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// joinScopes/splitScopes keep scope lists as a single space-delimited column,
// matching the OAuth wire format.
func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

func splitScopes(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
