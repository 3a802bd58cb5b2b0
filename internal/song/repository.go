package song

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waveform-labs/trackduel/internal/rating"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; copies are returned to prevent external
// mutation of stored state.
type InMemoryRepository struct {
	mu    sync.RWMutex
	songs map[string]*Song
}

// NewInMemoryRepository creates a new in-memory song repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{songs: make(map[string]*Song)}
}

// Create inserts a new song, assigning an ID when empty.
func (r *InMemoryRepository) Create(ctx context.Context, s *Song) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Elo == 0 {
		s.Elo = rating.Default
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	cp := *s
	r.songs[s.ID] = &cp
	return nil
}

// GetByID retrieves a song by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Song, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.songs[id]
	if !ok {
		return nil, ErrSongNotFound
	}
	cp := *s
	return &cp, nil
}

// GetByIDs retrieves the songs for the given ids, in input order.
func (r *InMemoryRepository) GetByIDs(ctx context.Context, ids []string) ([]*Song, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Song, 0, len(ids))
	for _, id := range ids {
		s, ok := r.songs[id]
		if !ok {
			return nil, ErrSongNotFound
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

// ListByArtist retrieves all songs owned by the artist, ordered by
// creation time ascending with id as tie-breaker.
func (r *InMemoryRepository) ListByArtist(ctx context.Context, artistID string) ([]*Song, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Song
	for _, s := range r.songs {
		if s.ArtistID != artistID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes a song row.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.songs[id]; !ok {
		return ErrSongNotFound
	}
	delete(r.songs, id)
	return nil
}

// UpdateRating overwrites a stored rating. Reserved for the comparison
// recorder's atomic path, which serializes calls; no other component may
// write a rating.
func (r *InMemoryRepository) UpdateRating(id string, elo int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.songs[id]
	if !ok {
		return ErrSongNotFound
	}
	s.Elo = elo
	return nil
}
