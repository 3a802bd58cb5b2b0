// Package comparison provides the append-only comparison ledger and the
// recorder that applies rating updates atomically.
package comparison

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSamePair is returned when winner and loser are the same song.
	ErrSamePair = errors.New("winner and loser must be different songs")

	// ErrTransient is returned when a recording repeatedly lost the race
	// against concurrent updates and should be retried by the caller.
	ErrTransient = errors.New("comparison could not be recorded, retry")
)

// Comparison is one decided pairwise comparison. Rows are append-only:
// the core never mutates or deletes them.
type Comparison struct {
	ID        string    `json:"id"`
	WinnerID  string    `json:"winner_id"`
	LoserID   string    `json:"loser_id"`
	FormID    *string   `json:"form_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result carries the post-update ratings returned to the listener.
type Result struct {
	WinnerID     string `json:"winner_id"`
	LoserID      string `json:"loser_id"`
	WinnerRating int    `json:"winner_rating"`
	LoserRating  int    `json:"loser_rating"`
}

// UpdateFunc computes new ratings from the current winner and loser
// ratings. Stores call it inside their atomic unit so the computation
// sees a consistent snapshot.
type UpdateFunc func(winner, loser int) (newWinner, newLoser int)

// Store applies one comparison as a single atomic unit: read both
// ratings, compute the update, persist both new ratings and append the
// ledger row. Two concurrent applications sharing a song must serialize;
// partial writes must not survive.
type Store interface {
	Apply(ctx context.Context, winnerID, loserID string, formID *string, update UpdateFunc) (*Result, error)
}

// Ledger provides read access to recorded comparisons.
type Ledger interface {
	// Count returns the total number of recorded comparisons.
	Count(ctx context.Context) (int64, error)

	// ListBySong returns comparisons in which the song appears as winner
	// or loser, newest first.
	ListBySong(ctx context.Context, songID string) ([]*Comparison, error)
}
