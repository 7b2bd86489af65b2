package topics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

const topicColumns = `id, document_id, owner_id, subject_id, title, content, topic_type, confidence,
included, deep_focus, corrected_by_user, position, extracted_at, updated_at`

const insertTopic = `
INSERT INTO topics (
    id,
    document_id,
    owner_id,
    subject_id,
    title,
    content,
    topic_type,
    confidence,
    included,
    deep_focus,
    corrected_by_user,
    position,
    extracted_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// CreateBatch inserts all topics in one transaction.
func (r *PGRepo) CreateBatch(ctx context.Context, topics []Topic) error {
	if len(topics) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, t := range topics {
		_, err := tx.ExecContext(ctx, insertTopic,
			t.ID,
			t.DocumentID,
			t.OwnerID,
			nullableID(t.SubjectID),
			t.Title,
			t.Content,
			string(t.Type),
			ClampConfidence(t.Confidence),
			t.Included,
			t.DeepFocus,
			t.CorrectedByUser,
			t.Position,
			t.ExtractedAt,
			t.UpdatedAt,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert topic: %w", err)
		}
	}
	return tx.Commit()
}

// ListByDocument returns a document's topics in extraction order.
func (r *PGRepo) ListByDocument(ctx context.Context, documentID string) ([]Topic, error) {
	return r.list(ctx, `SELECT `+topicColumns+` FROM topics WHERE document_id = $1 ORDER BY position`, documentID)
}

// ListByOwner returns every topic owned by ownerID.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string) ([]Topic, error) {
	return r.list(ctx, `SELECT `+topicColumns+` FROM topics WHERE owner_id = $1 ORDER BY extracted_at, position`, ownerID)
}

// Get fetches a topic for an owner.
func (r *PGRepo) Get(ctx context.Context, ownerID, topicID string) (Topic, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE owner_id = $1 AND id = $2`, ownerID, topicID)
	return scanTopic(row)
}

// ApplyEdits updates reviewable fields in one transaction.
func (r *PGRepo) ApplyEdits(ctx context.Context, documentID string, edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}
	const query = `
UPDATE topics
SET title = $1,
    content = $2,
    confidence = COALESCE($3, confidence),
    included = COALESCE($4, included),
    deep_focus = $5,
    corrected_by_user = $6,
    updated_at = $7
WHERE id = $8 AND document_id = $9`
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, e := range edits {
		if _, err := tx.ExecContext(ctx, query,
			e.Title,
			e.Content,
			clampedOrNil(e.Confidence),
			e.Included,
			e.DeepFocus,
			e.CorrectedByUser,
			now,
			e.ID,
			documentID,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update topic %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (r *PGRepo) list(ctx context.Context, query string, arg string) ([]Topic, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(row rowScanner) (Topic, error) {
	var (
		t         Topic
		subjectID sql.NullString
		topicType string
	)
	err := row.Scan(
		&t.ID,
		&t.DocumentID,
		&t.OwnerID,
		&subjectID,
		&t.Title,
		&t.Content,
		&topicType,
		&t.Confidence,
		&t.Included,
		&t.DeepFocus,
		&t.CorrectedByUser,
		&t.Position,
		&t.ExtractedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Topic{}, ErrNotFound
		}
		return Topic{}, err
	}
	t.Type = Type(topicType)
	if subjectID.Valid {
		id := subjectID.String
		t.SubjectID = &id
	}
	return t, nil
}

func nullableID(id *string) sql.NullString {
	if id == nil || *id == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *id, Valid: true}
}

var _ Repo = (*PGRepo)(nil)

func clampedOrNil(confidence *int) any {
	if confidence == nil {
		return nil
	}
	return ClampConfidence(*confidence)
}
