package qa

import (
	"context"
	"database/sql"
)

// PGRepo implements HistoryRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create appends one history row.
func (r *PGRepo) Create(ctx context.Context, h History) error {
	const query = `
INSERT INTO qa_history (id, user_id, question, answer, topic_id, subject_id, language, asked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query, h.ID, h.UserID, h.Question, h.Answer, nullable(h.TopicID), nullable(h.SubjectID), h.Language, h.AskedAt)
	return err
}

// ListByUser returns the user's history newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit int) ([]History, error) {
	const query = `
SELECT id, user_id, question, answer, topic_id, subject_id, language, asked_at
FROM qa_history
WHERE user_id = $1
ORDER BY asked_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []History{}
	for rows.Next() {
		var (
			h         History
			topicID   sql.NullString
			subjectID sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.Question, &h.Answer, &topicID, &subjectID, &h.Language, &h.AskedAt); err != nil {
			return nil, err
		}
		if topicID.Valid {
			h.TopicID = &topicID.String
		}
		if subjectID.Valid {
			h.SubjectID = &subjectID.String
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

var _ HistoryRepo = (*PGRepo)(nil)
