package sqlite

import (
	"context"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
)

// tokensRepo serves both the access and refresh token tables; they share one
// schema and differ only by name.
type tokensRepo struct {
	db    dbtx
	table string
}

const tokenColumns = `id, token_hash, client_id, user_id, scopes, expires_at, created_at`

func (r *tokensRepo) CreateToken(ctx context.Context, token domain.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+r.table+` (id, token_hash, client_id, user_id, scopes, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.TokenHash, token.ClientID, token.UserID,
		joinScopes(token.Scopes), token.ExpiresAt, token.CreatedAt,
	)
	return mapConflict(err)
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM `+r.table+` WHERE token_hash = ?`, tokenHash)
	return scanToken(row)
}

// ConsumeTokenByHash atomically deletes the token and returns it. Used for
// refresh token rotation, where redeeming a token must also retire it.
func (r *tokensRepo) ConsumeTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM `+r.table+` WHERE token_hash = ? RETURNING `+tokenColumns,
		tokenHash)
	return scanToken(row)
}

func (r *tokensRepo) DeleteTokenByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM `+r.table+` WHERE token_hash = ?`, tokenHash)
	return err
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM `+r.table+` WHERE expires_at <= ?`, now)
	return err
}

func scanToken(row rowScanner) (domain.Token, error) {
	var (
		t      domain.Token
		scopes string
	)
	err := row.Scan(&t.ID, &t.TokenHash, &t.ClientID, &t.UserID, &scopes, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	t.Scopes = splitScopes(scopes)
	return t, nil
}
