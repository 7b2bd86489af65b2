package documents

import (
	"context"
	"time"
)

// DocumentsRepo defines persistence operations for documents.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	CreateBatch(ctx context.Context, docs []Document) error
	Get(ctx context.Context, documentID string) (Document, error)
	GetByID(ctx context.Context, ownerID, documentID string) (Document, error)
	ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]Document, error)
	CountBySubject(ctx context.Context, ownerID string) (total int, bySubject []SubjectCount, err error)
	// TransitionStatus applies t only if the document is currently in t.From.
	// It returns ErrInvalidTransition otherwise.
	TransitionStatus(ctx context.Context, documentID string, t Transition) error
	SetSubject(ctx context.Context, documentID, subjectID string) error
	RecordExtraction(ctx context.Context, documentID string, pageCount, wordCount int) error
	ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]Document, error)
	ListPending(ctx context.Context, uploadedBefore time.Time, limit int) ([]Document, error)
}
