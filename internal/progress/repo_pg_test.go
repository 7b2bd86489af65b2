package progress

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var progressCols = []string{"user_id", "topic_id", "subject_id", "completed", "completed_at", "review_count", "last_reviewed_at"}

func TestPGRepoApplyUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	subject := "s1"
	mock.ExpectQuery("INSERT INTO progress (.+) ON CONFLICT \\(user_id, topic_id\\) DO UPDATE").
		WithArgs("u1", "t1", "s1", true, at, at).
		WillReturnRows(sqlmock.NewRows(progressCols).AddRow("u1", "t1", "s1", true, at, 3, at))

	p, err := repo.Apply(context.Background(), Toggle{UserID: "u1", TopicID: "t1", SubjectID: &subject, Completed: true, At: at})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.ReviewCount != 3 || !p.Completed || p.CompletedAt == nil || p.SubjectID == nil {
		t.Fatalf("unexpected progress: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoApplyIncompleteClearsCompletedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO progress").
		WithArgs("u1", "t1", nil, false, nil, at).
		WillReturnRows(sqlmock.NewRows(progressCols).AddRow("u1", "t1", nil, false, nil, 1, at))

	p, err := repo.Apply(context.Background(), Toggle{UserID: "u1", TopicID: "t1", At: at})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.CompletedAt != nil || p.SubjectID != nil || p.ReviewCount != 1 {
		t.Fatalf("unexpected progress: %+v", p)
	}
}
