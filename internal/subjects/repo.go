package subjects

import "context"

// Repo persists subjects. Names are unique case-insensitively.
type Repo interface {
	List(ctx context.Context) ([]Subject, error)
	Get(ctx context.Context, id string) (Subject, error)
	// FindByName matches name case-insensitively.
	FindByName(ctx context.Context, name string) (Subject, error)
	// CreateIfAbsent inserts s unless a subject with the same case-folded name
	// exists, and returns whichever row is stored.
	CreateIfAbsent(ctx context.Context, s Subject) (Subject, error)
}
