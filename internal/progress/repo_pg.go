package progress

import (
	"context"
	"database/sql"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const progressColumns = `user_id, topic_id, subject_id, completed, completed_at, review_count, last_reviewed_at`

// Apply upserts the (user, topic) row in one statement.
func (r *PGRepo) Apply(ctx context.Context, t Toggle) (Progress, error) {
	const query = `
INSERT INTO progress (user_id, topic_id, subject_id, completed, completed_at, review_count, last_reviewed_at)
VALUES ($1, $2, $3, $4, $5, CASE WHEN $4 THEN 1 ELSE 0 END, $6)
ON CONFLICT (user_id, topic_id) DO UPDATE SET
    completed = EXCLUDED.completed,
    completed_at = EXCLUDED.completed_at,
    review_count = progress.review_count + CASE WHEN EXCLUDED.completed THEN 1 ELSE 0 END,
    last_reviewed_at = EXCLUDED.last_reviewed_at
RETURNING ` + progressColumns
	var completedAt any
	if t.Completed {
		completedAt = t.At
	}
	var subjectID any
	if t.SubjectID != nil {
		subjectID = *t.SubjectID
	}
	return scanProgress(r.DB.QueryRowContext(ctx, query, t.UserID, t.TopicID, subjectID, t.Completed, completedAt, t.At))
}

// ListByUser returns every progress row of the user.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Progress, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+progressColumns+` FROM progress WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (Progress, error) {
	var (
		p              Progress
		subjectID      sql.NullString
		completedAt    sql.NullTime
		lastReviewedAt sql.NullTime
	)
	if err := row.Scan(&p.UserID, &p.TopicID, &subjectID, &p.Completed, &completedAt, &p.ReviewCount, &lastReviewedAt); err != nil {
		return Progress{}, err
	}
	if subjectID.Valid {
		p.SubjectID = &subjectID.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	if lastReviewedAt.Valid {
		t := lastReviewedAt.Time
		p.LastReviewedAt = &t
	}
	return p, nil
}

var _ Repo = (*PGRepo)(nil)
