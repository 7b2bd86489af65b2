package qa

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of HistoryRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	rows []History
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

// Create appends one history row.
func (r *MemoryRepo) Create(ctx context.Context, h History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, h)
	return nil
}

// ListByUser returns the user's history newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []History{}
	for _, h := range r.rows {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].AskedAt.After(out[j].AskedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ HistoryRepo = (*MemoryRepo)(nil)
