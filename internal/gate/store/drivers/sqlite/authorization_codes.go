package sqlite

import (
	"context"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
)

type codesRepo struct {
	db dbtx
}

const codeColumns = `id, code_hash, client_id, user_id, code_challenge, redirect_uri, scopes, expires_at, created_at`

func (r *codesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authorization_codes (id, code_hash, client_id, user_id, code_challenge, redirect_uri, scopes, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.CodeHash, code.ClientID, code.UserID,
		code.CodeChallenge, code.RedirectURI, joinScopes(code.Scopes),
		code.ExpiresAt, code.CreatedAt,
	)
	return mapConflict(err)
}

// ConsumeAuthorizationCode atomically deletes the code and returns it, so two
// concurrent redemptions can never both succeed.
func (r *codesRepo) ConsumeAuthorizationCode(ctx context.Context, codeHash string) (domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM authorization_codes WHERE code_hash = ? RETURNING `+codeColumns,
		codeHash)

	var (
		c      domain.AuthorizationCode
		scopes string
	)
	err := row.Scan(&c.ID, &c.CodeHash, &c.ClientID, &c.UserID,
		&c.CodeChallenge, &c.RedirectURI, &scopes, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitScopes(scopes)
	return c, nil
}

func (r *codesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at <= ?`, now)
	return err
}
