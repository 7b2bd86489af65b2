package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of DocumentsRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]*Document // documentID -> document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]*Document),
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	return r.CreateBatch(ctx, []Document{doc})
}

// CreateBatch stores all documents or none.
func (r *MemoryRepo) CreateBatch(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range docs {
		if _, exists := r.data[doc.ID]; exists {
			return fmt.Errorf("document %s already exists", doc.ID)
		}
	}
	for _, doc := range docs {
		d := doc
		if d.Status == "" {
			d.Status = StatusPending
		}
		r.data[d.ID] = &d
	}
	return nil
}

// Get returns a document by ID.
func (r *MemoryRepo) Get(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return *doc, nil
}

// GetByID returns a document by ID for an owner.
func (r *MemoryRepo) GetByID(ctx context.Context, ownerID, documentID string) (Document, error) {
	doc, err := r.Get(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.OwnerID != ownerID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser returns documents for an owner, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	docs := r.owned(ownerID)
	if offset >= len(docs) {
		return []Document{}, nil
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})

	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// CountBySubject returns the owner's document total and per-subject counts.
func (r *MemoryRepo) CountBySubject(ctx context.Context, ownerID string) (int, []SubjectCount, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	docs := r.owned(ownerID)
	bySubject := map[string]int{}
	for _, doc := range docs {
		if doc.SubjectID != nil {
			bySubject[*doc.SubjectID]++
		}
	}
	counts := make([]SubjectCount, 0, len(bySubject))
	for id, n := range bySubject {
		counts = append(counts, SubjectCount{SubjectID: id, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].SubjectID < counts[j].SubjectID })
	return len(docs), counts, nil
}

// TransitionStatus applies t if the document is in t.From.
func (r *MemoryRepo) TransitionStatus(ctx context.Context, documentID string, t Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.From, t.To)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok || doc.Status != t.From {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.From, t.To)
	}
	t.apply(doc)
	return nil
}

// SetSubject assigns the resolved subject to a document.
func (r *MemoryRepo) SetSubject(ctx context.Context, documentID, subjectID string) error {
	return r.update(ctx, documentID, func(doc *Document) {
		id := subjectID
		doc.SubjectID = &id
	})
}

// RecordExtraction stores text metadata for a document.
func (r *MemoryRepo) RecordExtraction(ctx context.Context, documentID string, pageCount, wordCount int) error {
	return r.update(ctx, documentID, func(doc *Document) {
		doc.PageCount = pageCount
		doc.WordCount = wordCount
	})
}

// ListStale returns documents stuck in processing since before startedBefore.
func (r *MemoryRepo) ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Document
	for _, doc := range r.data {
		if doc.Status == StatusProcessing && doc.ProcessingStartedAt != nil && doc.ProcessingStartedAt.Before(startedBefore) {
			out = append(out, *doc)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProcessingStartedAt.Before(*out[j].ProcessingStartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListPending returns documents still pending that were uploaded before uploadedBefore, oldest first.
func (r *MemoryRepo) ListPending(ctx context.Context, uploadedBefore time.Time, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Document
	for _, doc := range r.data {
		if doc.Status == StatusPending && doc.UploadedAt.Before(uploadedBefore) {
			out = append(out, *doc)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) update(ctx context.Context, documentID string, fn func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok {
		return ErrNotFound
	}
	fn(doc)
	return nil
}

func (r *MemoryRepo) owned(ownerID string) []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var docs []Document
	for _, doc := range r.data {
		if doc.OwnerID == ownerID {
			docs = append(docs, *doc)
		}
	}
	return docs
}

var _ DocumentsRepo = (*MemoryRepo)(nil)
