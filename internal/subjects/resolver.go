package subjects

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"medstudy-backend/internal/shared/telemetry"
)

// Resolver maps a suggested subject label to a stored subject, creating it on
// first use.
type Resolver struct {
	Repo Repo
	Now  func() time.Time
}

// Resolve returns the subject whose name matches name case-insensitively,
// creating one when none exists. Equivalent labels always resolve to the same
// row, including under concurrent calls.
func (r *Resolver) Resolve(ctx context.Context, name string) (Subject, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return Subject{}, ErrInvalidInput
	}

	existing, err := r.Repo.FindByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Subject{}, fmt.Errorf("find subject: %w", err)
	}

	created, err := r.Repo.CreateIfAbsent(ctx, Subject{
		ID:          uuid.NewString(),
		Name:        name,
		Description: "Materials relacionats amb " + name,
		Icon:        DefaultIcon,
		Color:       ColorFor(name),
		CreatedAt:   r.now(),
	})
	if err != nil {
		return Subject{}, err
	}
	telemetry.Info("subjects.resolved", map[string]any{
		"subject_id": created.ID,
		"name":       created.Name,
	})
	return created, nil
}

// ColorFor picks a palette color from the case-folded name, so equivalent
// labels get the same color on every run.
func ColorFor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
