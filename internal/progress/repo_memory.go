package progress

import (
	"context"
	"sort"
	"sync"
)

type key struct {
	userID  string
	topicID string
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.Mutex
	data map[key]Progress
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[key]Progress)}
}

// Apply creates or updates the (user, topic) row.
func (r *MemoryRepo) Apply(ctx context.Context, t Toggle) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{userID: t.UserID, topicID: t.TopicID}
	p, exists := r.data[k]
	if !exists {
		p = Progress{UserID: t.UserID, TopicID: t.TopicID, SubjectID: t.SubjectID}
	}
	at := t.At
	p.Completed = t.Completed
	p.CompletedAt = nil
	if t.Completed {
		p.CompletedAt = &at
		p.ReviewCount++
	}
	p.LastReviewedAt = &at
	r.data[k] = p
	return p, nil
}

// ListByUser returns every progress row of the user ordered by topic id.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	out := []Progress{}
	for k, p := range r.data {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
