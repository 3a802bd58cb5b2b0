package feedback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; copies are returned to prevent external
// mutation.
type InMemoryRepository struct {
	mu    sync.RWMutex
	forms map[string]*Form
}

// NewInMemoryRepository creates a new in-memory form repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{forms: make(map[string]*Form)}
}

// Create inserts a new form, assigning an ID when empty.
func (r *InMemoryRepository) Create(ctx context.Context, f *Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	r.forms[f.ID] = copyForm(f)
	return nil
}

// GetByID retrieves a form by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.forms[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	return copyForm(f), nil
}

// ListByArtist retrieves all forms owned by the artist, newest first with
// id as tie-breaker.
func (r *InMemoryRepository) ListByArtist(ctx context.Context, artistID string) ([]*Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Form
	for _, f := range r.forms {
		if f.ArtistID != artistID {
			continue
		}
		out = append(out, copyForm(f))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// copyForm deep-copies a form including its pair slice.
func copyForm(f *Form) *Form {
	cp := *f
	cp.Pairs = make([]Pair, len(f.Pairs))
	copy(cp.Pairs, f.Pairs)
	return &cp
}
