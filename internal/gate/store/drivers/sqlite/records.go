package sqlite

import (
	"context"

	"github.com/quollsoft/recordgate/internal/gate/domain"
)

type recordsRepo struct {
	db dbtx
}

const recordColumns = `id, user_id, kind, title, body, created_at, updated_at`

func (r *recordsRepo) GetRecord(ctx context.Context, userID, recordID string) (domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE user_id = ? AND id = ?`,
		userID, recordID)
	return scanRecord(row)
}

func (r *recordsRepo) ListRecords(ctx context.Context, userID string) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE user_id = ? ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (r *recordsRepo) SearchRecords(ctx context.Context, userID, query string) ([]domain.Record, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE user_id = ? AND (title LIKE ? OR body LIKE ?)
		 ORDER BY created_at DESC`,
		userID, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (r *recordsRepo) CreateRecord(ctx context.Context, record domain.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (id, user_id, kind, title, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.Kind, record.Title, record.Body,
		record.CreatedAt, record.UpdatedAt,
	)
	return mapConflict(err)
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var rec domain.Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Kind, &rec.Title, &rec.Body, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.Record{}, mapNotFound(err)
	}
	return rec, nil
}

func collectRecords(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.Record, error) {
	var records []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
