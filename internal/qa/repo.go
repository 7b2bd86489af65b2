package qa

import "context"

// HistoryRepo persists the append-only Q&A log.
type HistoryRepo interface {
	Create(ctx context.Context, h History) error
	ListByUser(ctx context.Context, userID string, limit int) ([]History, error)
}
