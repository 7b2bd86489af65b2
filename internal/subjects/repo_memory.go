package subjects

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Subject
	byName map[string]string // lower(name) -> id
}

// Seed mirrors the subjects inserted by the seed migration.
var Seed = []Subject{
	{Name: "Cardiologia", Description: "Estudi del cor i sistema cardiovascular", Icon: "Heart", Color: "#ef4444"},
	{Name: "Neurologia", Description: "Estudi del sistema nerviós i malalties neurològiques", Icon: "Brain", Color: "#8b5cf6"},
	{Name: "Pediatria", Description: "Medicina infantil i atenció a nens", Icon: "Baby", Color: "#06b6d4"},
	{Name: "Cirurgia", Description: "Intervencions quirúrgiques i tècniques operatòries", Icon: "Scissors", Color: "#f59e0b"},
	{Name: "Medicina Interna", Description: "Diagnòstic i tractament de malalties d'òrgans interns", Icon: "Stethoscope", Color: "#10b981"},
	{Name: "Dermatologia", Description: "Malalties de la pell i tractaments dermatològics", Icon: "Eye", Color: "#ec4899"},
}

// NewMemoryRepo constructs a MemoryRepo holding the given subjects. IDs are
// generated for entries that lack one.
func NewMemoryRepo(initial ...Subject) *MemoryRepo {
	r := &MemoryRepo{
		byID:   make(map[string]Subject),
		byName: make(map[string]string),
	}
	now := time.Now().UTC()
	for _, s := range initial {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		key := nameKey(s.Name)
		if _, exists := r.byName[key]; exists {
			continue
		}
		r.byID[s.ID] = s
		r.byName[key] = s.ID
	}
	return r
}

// List returns every subject ordered by name.
func (r *MemoryRepo) List(ctx context.Context) ([]Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subject, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get fetches a subject by id.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Subject, error) {
	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return s, nil
}

// FindByName fetches a subject by case-insensitive name.
func (r *MemoryRepo) FindByName(ctx context.Context, name string) (Subject, error) {
	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[nameKey(name)]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return r.byID[id], nil
}

// CreateIfAbsent finds or inserts under a single lock.
func (r *MemoryRepo) CreateIfAbsent(ctx context.Context, s Subject) (Subject, error) {
	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := nameKey(s.Name)
	if id, ok := r.byName[key]; ok {
		return r.byID[id], nil
	}
	r.byID[s.ID] = s
	r.byName[key] = s.ID
	return s, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ Repo = (*MemoryRepo)(nil)
