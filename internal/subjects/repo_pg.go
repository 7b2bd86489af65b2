package subjects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const subjectColumns = `id, name, description, icon, color, created_at`

// List returns every subject ordered by name.
func (r *PGRepo) List(ctx context.Context) ([]Subject, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Subject{}
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get fetches a subject by id.
func (r *PGRepo) Get(ctx context.Context, id string) (Subject, error) {
	return scanSubject(r.DB.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id))
}

// FindByName fetches a subject by case-insensitive name.
func (r *PGRepo) FindByName(ctx context.Context, name string) (Subject, error) {
	return scanSubject(r.DB.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE lower(name) = lower($1)`, name))
}

// CreateIfAbsent relies on the unique lower(name) index so concurrent callers
// converge on one row.
func (r *PGRepo) CreateIfAbsent(ctx context.Context, s Subject) (Subject, error) {
	const query = `
INSERT INTO subjects (id, name, description, icon, color, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT DO NOTHING`
	if _, err := r.DB.ExecContext(ctx, query, s.ID, s.Name, s.Description, s.Icon, s.Color, s.CreatedAt); err != nil {
		return Subject{}, fmt.Errorf("insert subject: %w", err)
	}
	return r.FindByName(ctx, s.Name)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (Subject, error) {
	var s Subject
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Icon, &s.Color, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subject{}, ErrNotFound
		}
		return Subject{}, err
	}
	return s, nil
}

var _ Repo = (*PGRepo)(nil)
