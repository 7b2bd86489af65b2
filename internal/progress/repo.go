package progress

import "context"

// Repo persists progress rows keyed by (user, topic).
type Repo interface {
	// Apply creates the row on the first toggle and updates it afterwards.
	// Every completed toggle increments ReviewCount.
	Apply(ctx context.Context, t Toggle) (Progress, error)
	ListByUser(ctx context.Context, userID string) ([]Progress, error)
}
