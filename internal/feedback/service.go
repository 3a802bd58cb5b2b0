package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/waveform-labs/trackduel/internal/song"
	"github.com/waveform-labs/trackduel/internal/validate"
)

// Service validates and creates feedback forms.
type Service struct {
	songs song.Repository
	forms Repository
}

// NewService creates a feedback authoring service.
func NewService(songs song.Repository, forms Repository) *Service {
	return &Service{songs: songs, forms: forms}
}

// Create validates the whole form before anything is persisted: the name
// must be non-empty, the pair list non-empty, and every pair two distinct
// songs that exist and are owned by artistID. Validation is
// all-or-nothing; no partial form is ever created. Failures wrap
// ErrInvalidForm and name the offending pair index.
func (s *Service) Create(ctx context.Context, artistID, name string, pairs []Pair) (*Form, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id is required", ErrInvalidForm)
	}

	cleanName, err := validate.DisplayName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrInvalidForm, err)
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: at least one song pair is required", ErrInvalidForm)
	}

	for i, p := range pairs {
		if p[0] == "" || p[1] == "" {
			return nil, fmt.Errorf("%w: pair %d: both song ids are required", ErrInvalidForm, i)
		}
		if p[0] == p[1] {
			return nil, fmt.Errorf("%w: pair %d: songs must be distinct", ErrInvalidForm, i)
		}

		songs, err := s.songs.GetByIDs(ctx, []string{p[0], p[1]})
		if err != nil {
			if errors.Is(err, song.ErrSongNotFound) {
				return nil, fmt.Errorf("%w: pair %d: song does not exist", ErrInvalidForm, i)
			}
			return nil, fmt.Errorf("verify pair %d: %w", i, err)
		}
		for _, sg := range songs {
			if sg.ArtistID != artistID {
				return nil, fmt.Errorf("%w: pair %d: song %s is not owned by you", ErrInvalidForm, i, sg.ID)
			}
		}
	}

	form := &Form{
		ArtistID: artistID,
		Name:     cleanName,
		Pairs:    pairs,
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return nil, fmt.Errorf("create feedback form: %w", err)
	}
	return form, nil
}
