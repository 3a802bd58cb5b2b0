package comparison

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waveform-labs/trackduel/internal/rating"
	"github.com/waveform-labs/trackduel/internal/song"
)

// InMemoryStore implements Store and Ledger with in-memory state.
// A single mutex serializes Apply, which is exactly the mutual exclusion
// the rating-update boundary requires: two concurrent recordings sharing
// a song observe each other's writes.
type InMemoryStore struct {
	mu    sync.Mutex
	songs *song.InMemoryRepository
	rows  []*Comparison
}

// NewInMemoryStore creates an in-memory comparison store over the given
// song repository.
func NewInMemoryStore(songs *song.InMemoryRepository) *InMemoryStore {
	return &InMemoryStore{songs: songs}
}

// Apply reads both ratings, computes the update and persists ratings
// plus ledger row under one lock acquisition.
func (s *InMemoryStore) Apply(ctx context.Context, winnerID, loserID string, formID *string, update UpdateFunc) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	winner, err := s.songs.GetByID(ctx, winnerID)
	if err != nil {
		return nil, err
	}
	loser, err := s.songs.GetByID(ctx, loserID)
	if err != nil {
		return nil, err
	}

	newWinner, newLoser := update(rating.Normalize(winner.Elo), rating.Normalize(loser.Elo))

	if err := s.songs.UpdateRating(winnerID, newWinner); err != nil {
		return nil, err
	}
	if err := s.songs.UpdateRating(loserID, newLoser); err != nil {
		return nil, err
	}

	var formRef *string
	if formID != nil {
		id := *formID
		formRef = &id
	}
	s.rows = append(s.rows, &Comparison{
		ID:        uuid.New().String(),
		WinnerID:  winnerID,
		LoserID:   loserID,
		FormID:    formRef,
		CreatedAt: time.Now(),
	})

	return &Result{
		WinnerID:     winnerID,
		LoserID:      loserID,
		WinnerRating: newWinner,
		LoserRating:  newLoser,
	}, nil
}

// Count returns the total number of recorded comparisons.
func (s *InMemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

// ListBySong returns comparisons in which the song appears, newest first.
func (s *InMemoryStore) ListBySong(ctx context.Context, songID string) ([]*Comparison, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Comparison
	for i := len(s.rows) - 1; i >= 0; i-- {
		row := s.rows[i]
		if row.WinnerID == songID || row.LoserID == songID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}
