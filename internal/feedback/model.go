// Package feedback provides creator-authored feedback forms: ordered
// lists of song pairs that listeners work through in sequence.
package feedback

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrFormNotFound is returned when a form id does not resolve.
	ErrFormNotFound = errors.New("feedback form not found")

	// ErrInvalidForm wraps all authoring validation failures. The message
	// names the offending field or pair index.
	ErrInvalidForm = errors.New("invalid feedback form")
)

// Pair is an unordered pair of song ids.
type Pair [2]string

// Form is an immutable, creator-authored sequence of comparison pairs.
// Per-listener progress is a cursor carried by the caller, never stored
// here.
type Form struct {
	ID        string    `json:"id"`
	ArtistID  string    `json:"artist_id"`
	Name      string    `json:"name"`
	Pairs     []Pair    `json:"song_pairs"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the data operations for feedback forms.
type Repository interface {
	// Create inserts a new form, assigning an ID when empty.
	Create(ctx context.Context, f *Form) error

	// GetByID retrieves a form by id. Returns ErrFormNotFound if missing.
	GetByID(ctx context.Context, id string) (*Form, error)

	// ListByArtist retrieves all forms owned by the artist, newest first.
	ListByArtist(ctx context.Context, artistID string) ([]*Form, error)
}
