package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store"
)

type clientsRepo struct {
	db dbtx
}

const clientColumns = `id, name, secret_hash, redirect_uris, grant_types, response_types, scopes, created_at, secret_expires_at`

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, client domain.Client) error {
	var expires any
	if !client.SecretExpiresAt.IsZero() {
		expires = client.SecretExpiresAt
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret_hash, redirect_uris, grant_types, response_types, scopes, created_at, secret_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID, client.Name, client.SecretHash,
		strings.Join(client.RedirectURIs, " "),
		strings.Join(client.GrantTypes, " "),
		strings.Join(client.ResponseTypes, " "),
		joinScopes(client.Scopes),
		client.CreatedAt, expires,
	)
	return mapConflict(err)
}

func (r *clientsRepo) UpdateClientSecretHash(ctx context.Context, id, secretHash string, expiresAt time.Time) error {
	var expires any
	if !expiresAt.IsZero() {
		expires = expiresAt
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET secret_hash = ?, secret_expires_at = ? WHERE id = ?`,
		secretHash, expires, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *clientsRepo) DeleteClient(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	return err
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c             domain.Client
		redirectURIs  string
		grantTypes    string
		responseTypes string
		scopes        string
		expires       sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Name, &c.SecretHash, &redirectURIs, &grantTypes,
		&responseTypes, &scopes, &c.CreatedAt, &expires)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	c.RedirectURIs = splitScopes(redirectURIs)
	c.GrantTypes = splitScopes(grantTypes)
	c.ResponseTypes = splitScopes(responseTypes)
	c.Scopes = splitScopes(scopes)
	if expires.Valid {
		c.SecretExpiresAt = expires.Time
	}
	return c, nil
}
