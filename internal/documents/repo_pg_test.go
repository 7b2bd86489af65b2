package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateBatchIsTransactional(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	docs := []Document{
		{ID: "d1", OwnerID: "guest:a", FileName: "a.pdf", FileType: FileTypePDF, MimeType: "application/pdf", SizeBytes: 10, StorageKey: "k1", SourceArchive: "bundle.zip", UploadedAt: now},
		{ID: "d2", OwnerID: "guest:a", FileName: "b.csv", FileType: FileTypeCSV, MimeType: "text/csv", SizeBytes: 5, StorageKey: "k2", SourceArchive: "bundle.zip", UploadedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("d1", "guest:a", "a.pdf", "pdf", "application/pdf", int64(10), "local", "k1", "bundle.zip", "pending", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("d2", "guest:a", "b.csv", "csv", "text/csv", int64(5), "local", "k2", "bundle.zip", "pending", now).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.CreateBatch(context.Background(), docs); err == nil {
		t.Fatalf("expected error from second insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionStatusConditional(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE documents").
		WithArgs("processing", at, nil, nil, "doc-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.TransitionStatus(context.Background(), "doc-1", Transition{From: StatusPending, To: StatusProcessing, At: at}); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	mock.ExpectExec("UPDATE documents").
		WithArgs("failed", at, FailureExtraction, "bad pdf", "doc-1", "processing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.TransitionStatus(context.Background(), "doc-1", Transition{From: StatusProcessing, To: StatusFailed, At: at, FailureCode: FailureExtraction, FailureMessage: "bad pdf"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionRejectsIllegalPathWithoutQuery(t *testing.T) {
	repo, mock := newMock(t)
	err := repo.TransitionStatus(context.Background(), "doc-1", Transition{From: StatusCompleted, To: StatusProcessing, At: time.Now()})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDScansNullables(t *testing.T) {
	repo, mock := newMock(t)
	uploaded := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	started := uploaded.Add(time.Second)

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "file_name", "file_type", "mime_type", "size_bytes", "storage_provider", "storage_key",
		"source_archive", "status", "subject_id", "page_count", "word_count", "failure_code", "failure_message",
		"uploaded_at", "processing_started_at", "completed_at",
	}).AddRow("doc-1", "guest:a", "a.pdf", "pdf", "application/pdf", int64(42), "local", "k1",
		nil, "processing", "subj-1", 3, 120, nil, nil, uploaded, started, nil)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE owner_id = \\$1 AND id = \\$2").
		WithArgs("guest:a", "doc-1").
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "guest:a", "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != StatusProcessing || doc.FileType != FileTypePDF {
		t.Fatalf("unexpected enums %+v", doc)
	}
	if doc.SubjectID == nil || *doc.SubjectID != "subj-1" {
		t.Fatalf("expected subject id, got %v", doc.SubjectID)
	}
	if doc.ProcessingStartedAt == nil || !doc.ProcessingStartedAt.Equal(started) || doc.CompletedAt != nil {
		t.Fatalf("unexpected timestamps %+v", doc)
	}
	if doc.PageCount != 3 || doc.WordCount != 120 {
		t.Fatalf("unexpected counts %+v", doc)
	}
}

func TestPGRepoGetNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoCountBySubject(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT subject_id, COUNT").
		WithArgs("guest:a").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id", "count"}).
			AddRow("s1", 2).
			AddRow(nil, 1))

	total, counts, err := repo.CountBySubject(context.Background(), "guest:a")
	if err != nil {
		t.Fatalf("CountBySubject: %v", err)
	}
	if total != 3 || len(counts) != 1 || counts[0].SubjectID != "s1" || counts[0].Count != 2 {
		t.Fatalf("unexpected counts total=%d %+v", total, counts)
	}
}

func TestPGRepoListPending(t *testing.T) {
	repo, mock := newMock(t)
	uploaded := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cutoff := uploaded.Add(time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "file_name", "file_type", "mime_type", "size_bytes", "storage_provider", "storage_key",
		"source_archive", "status", "subject_id", "page_count", "word_count", "failure_code", "failure_message",
		"uploaded_at", "processing_started_at", "completed_at",
	}).AddRow("doc-1", "guest:a", "a.csv", "csv", "text/csv", int64(8), "local", "k1",
		nil, "pending", nil, 0, 0, nil, nil, uploaded, nil, nil)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE status = 'pending' AND uploaded_at < \\$1").
		WithArgs(cutoff, 100).
		WillReturnRows(rows)

	docs, err := repo.ListPending(context.Background(), cutoff, 0)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" || docs[0].Status != StatusPending {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
