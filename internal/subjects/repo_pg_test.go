package subjects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateIfAbsentReselects(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec("INSERT INTO subjects").
		WithArgs("new-id", "cardiologia", "desc", "BookOpen", "#3b82f6", created).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM subjects WHERE lower\\(name\\) = lower\\(\\$1\\)").
		WithArgs("cardiologia").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "icon", "color", "created_at"}).
			AddRow("seed-id", "Cardiologia", "Estudi del cor", "Heart", "#ef4444", created))

	got, err := repo.CreateIfAbsent(context.Background(), Subject{
		ID: "new-id", Name: "cardiologia", Description: "desc", Icon: "BookOpen", Color: "#3b82f6", CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	if got.ID != "seed-id" || got.Name != "Cardiologia" {
		t.Fatalf("expected existing subject, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFindByNameNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT (.+) FROM subjects").
		WithArgs("Unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "icon", "color", "created_at"}))

	if _, err := repo.FindByName(context.Background(), "Unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
