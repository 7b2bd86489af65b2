package topics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]*Topic
	Now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]*Topic)}
}

// CreateBatch stores all topics or none.
func (r *MemoryRepo) CreateBatch(ctx context.Context, topics []Topic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range topics {
		if _, exists := r.data[t.ID]; exists {
			return fmt.Errorf("topic %s already exists", t.ID)
		}
	}
	for _, t := range topics {
		cp := t
		cp.Confidence = ClampConfidence(cp.Confidence)
		r.data[cp.ID] = &cp
	}
	return nil
}

// ListByDocument returns a document's topics in extraction order.
func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string) ([]Topic, error) {
	return r.filter(ctx, func(t *Topic) bool { return t.DocumentID == documentID })
}

// ListByOwner returns every topic owned by ownerID.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]Topic, error) {
	return r.filter(ctx, func(t *Topic) bool { return t.OwnerID == ownerID })
}

// Get fetches a topic for an owner.
func (r *MemoryRepo) Get(ctx context.Context, ownerID, topicID string) (Topic, error) {
	if err := ctx.Err(); err != nil {
		return Topic{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.data[topicID]
	if !ok || t.OwnerID != ownerID {
		return Topic{}, ErrNotFound
	}
	return *t, nil
}

// ApplyEdits updates reviewable fields of matching topics.
func (r *MemoryRepo) ApplyEdits(ctx context.Context, documentID string, edits []Edit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range edits {
		t, ok := r.data[e.ID]
		if !ok || t.DocumentID != documentID {
			continue
		}
		t.Title = e.Title
		t.Content = e.Content
		if e.Confidence != nil {
			t.Confidence = ClampConfidence(*e.Confidence)
		}
		if e.Included != nil {
			t.Included = *e.Included
		}
		t.DeepFocus = e.DeepFocus
		t.CorrectedByUser = e.CorrectedByUser
		t.UpdatedAt = now
	}
	return nil
}

func (r *MemoryRepo) filter(ctx context.Context, keep func(*Topic) bool) ([]Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Topic{}
	for _, t := range r.data {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExtractedAt.Equal(out[j].ExtractedAt) {
			return out[i].ExtractedAt.Before(out[j].ExtractedAt)
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
