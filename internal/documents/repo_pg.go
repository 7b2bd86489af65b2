package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, owner_id, file_name, file_type, mime_type, size_bytes, storage_provider, storage_key,
source_archive, status, subject_id, page_count, word_count, failure_code, failure_message,
uploaded_at, processing_started_at, completed_at`

const insertDocument = `
INSERT INTO documents (
    id,
    owner_id,
    file_name,
    file_type,
    mime_type,
    size_bytes,
    storage_provider,
    storage_key,
    source_archive,
    status,
    uploaded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	return insert(ctx, r.DB, doc)
}

// CreateBatch inserts all documents in one transaction.
func (r *PGRepo) CreateBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, doc := range docs {
		if err := insert(ctx, tx, doc); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func insert(ctx context.Context, db execer, doc Document) error {
	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}
	status := doc.Status
	if status == "" {
		status = StatusPending
	}
	_, err := db.ExecContext(
		ctx,
		insertDocument,
		doc.ID,
		doc.OwnerID,
		doc.FileName,
		string(doc.FileType),
		doc.MimeType,
		doc.SizeBytes,
		storageProvider,
		doc.StorageKey,
		nullString(doc.SourceArchive),
		string(status),
		doc.UploadedAt,
	)
	return err
}

// Get fetches a document by ID regardless of owner. Used by the pipeline.
func (r *PGRepo) Get(ctx context.Context, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
}

// GetByID fetches a document by ID for an owner.
func (r *PGRepo) GetByID(ctx context.Context, ownerID, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = $1 AND id = $2`
	return scanDocument(r.DB.QueryRowContext(ctx, query, ownerID, documentID))
}

// ListByUser lists documents ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1
ORDER BY uploaded_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CountBySubject returns the owner's document total and per-subject counts.
func (r *PGRepo) CountBySubject(ctx context.Context, ownerID string) (int, []SubjectCount, error) {
	const query = `
SELECT subject_id, COUNT(*)
FROM documents
WHERE owner_id = $1
GROUP BY subject_id`
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	total := 0
	var counts []SubjectCount
	for rows.Next() {
		var subjectID sql.NullString
		var n int
		if err := rows.Scan(&subjectID, &n); err != nil {
			return 0, nil, err
		}
		total += n
		if subjectID.Valid {
			counts = append(counts, SubjectCount{SubjectID: subjectID.String, Count: n})
		}
	}
	return total, counts, rows.Err()
}

// TransitionStatus performs a conditional status update.
func (r *PGRepo) TransitionStatus(ctx context.Context, documentID string, t Transition) error {
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.From, t.To)
	}
	const query = `
UPDATE documents
SET status = $1,
    processing_started_at = CASE WHEN $1 = 'processing' THEN $2 ELSE processing_started_at END,
    completed_at = CASE WHEN $1 IN ('completed', 'failed') THEN $2 ELSE completed_at END,
    failure_code = $3,
    failure_message = $4
WHERE id = $5 AND status = $6`
	res, err := r.DB.ExecContext(
		ctx,
		query,
		string(t.To),
		t.At,
		nullString(t.FailureCode),
		nullString(t.FailureMessage),
		documentID,
		string(t.From),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.From, t.To)
	}
	return nil
}

// SetSubject assigns the resolved subject to a document.
func (r *PGRepo) SetSubject(ctx context.Context, documentID, subjectID string) error {
	const query = `UPDATE documents SET subject_id = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, subjectID, documentID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// RecordExtraction stores text metadata for a document.
func (r *PGRepo) RecordExtraction(ctx context.Context, documentID string, pageCount, wordCount int) error {
	const query = `UPDATE documents SET page_count = $1, word_count = $2 WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, pageCount, wordCount, documentID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListStale returns documents stuck in processing since before startedBefore.
func (r *PGRepo) ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE status = 'processing' AND processing_started_at < $1
ORDER BY processing_started_at
LIMIT $2`
	return r.listBefore(ctx, query, startedBefore, limit)
}

// ListPending returns documents still pending that were uploaded before uploadedBefore.
func (r *PGRepo) ListPending(ctx context.Context, uploadedBefore time.Time, limit int) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE status = 'pending' AND uploaded_at < $1
ORDER BY uploaded_at
LIMIT $2`
	return r.listBefore(ctx, query, uploadedBefore, limit)
}

func (r *PGRepo) listBefore(ctx context.Context, query string, before time.Time, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc             Document
		fileType        string
		status          string
		sourceArchive   sql.NullString
		subjectID       sql.NullString
		failureCode     sql.NullString
		failureMessage  sql.NullString
		processingStart sql.NullTime
		completedAt     sql.NullTime
	)
	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.FileName,
		&fileType,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageProvider,
		&doc.StorageKey,
		&sourceArchive,
		&status,
		&subjectID,
		&doc.PageCount,
		&doc.WordCount,
		&failureCode,
		&failureMessage,
		&doc.UploadedAt,
		&processingStart,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.FileType = FileType(fileType)
	doc.Status = Status(status)
	doc.SourceArchive = sourceArchive.String
	doc.FailureCode = failureCode.String
	doc.FailureMessage = failureMessage.String
	if subjectID.Valid {
		id := subjectID.String
		doc.SubjectID = &id
	}
	if processingStart.Valid {
		t := processingStart.Time
		doc.ProcessingStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		doc.CompletedAt = &t
	}
	return doc, nil
}

func expectOne(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ DocumentsRepo = (*PGRepo)(nil)
