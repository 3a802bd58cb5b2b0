// Package song provides the song model and repositories backing the
// comparison catalog.
package song

import (
	"context"
	"errors"
	"time"
)

// ErrSongNotFound is returned when a song id does not resolve.
var ErrSongNotFound = errors.New("song not found")

// Song is a rated work owned by an artist. FilePath is the object key in
// the audio bucket; it is resolved to a playable URL by the storage
// service, never served directly.
type Song struct {
	ID        string    `json:"id"`
	ArtistID  string    `json:"artist_id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	Elo       int       `json:"elo"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the data operations for songs.
//
// Ratings are never written through this interface; the comparison
// recorder owns the only rating-update path.
type Repository interface {
	// Create inserts a new song, assigning an ID when empty.
	Create(ctx context.Context, s *Song) error

	// GetByID retrieves a song by id. Returns ErrSongNotFound if missing.
	GetByID(ctx context.Context, id string) (*Song, error)

	// GetByIDs retrieves the songs for the given ids, in input order.
	// Returns ErrSongNotFound if any id is missing.
	GetByIDs(ctx context.Context, ids []string) ([]*Song, error)

	// ListByArtist retrieves all songs owned by the artist, ordered by
	// creation time ascending.
	ListByArtist(ctx context.Context, artistID string) ([]*Song, error)

	// Delete removes a song row. Returns ErrSongNotFound if missing.
	Delete(ctx context.Context, id string) error
}
