package topics

import "context"

// Repo persists topics.
type Repo interface {
	// CreateBatch stores all topics atomically.
	CreateBatch(ctx context.Context, topics []Topic) error
	ListByDocument(ctx context.Context, documentID string) ([]Topic, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Topic, error)
	Get(ctx context.Context, ownerID, topicID string) (Topic, error)
	// ApplyEdits updates the reviewable fields of the listed topics belonging
	// to documentID. Edits for unknown ids are ignored.
	ApplyEdits(ctx context.Context, documentID string, edits []Edit) error
}
