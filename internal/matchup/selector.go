// Package matchup selects which two songs a listener hears next, either
// adaptively by rating proximity or from a scripted feedback form.
package matchup

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/waveform-labs/trackduel/internal/feedback"
	"github.com/waveform-labs/trackduel/internal/rating"
	"github.com/waveform-labs/trackduel/internal/song"
	"github.com/waveform-labs/trackduel/internal/storage"
	"github.com/waveform-labs/trackduel/internal/tracing"
)

// MaxAdaptiveGap is the largest rating difference the adaptive selector
// treats as a close match.
const MaxAdaptiveGap = 200

var (
	// ErrInsufficientSongs is returned when an artist has fewer than two songs.
	ErrInsufficientSongs = errors.New("at least two songs are required for a matchup")
	// ErrSequenceExhausted is returned when a scripted cursor is past the
	// end of the form's pair list.
	ErrSequenceExhausted = errors.New("no pairs remain in the sequence")
)

// URLSigner resolves an object key into a time-limited playback URL.
type URLSigner interface {
	SignPlaybackURL(ctx context.Context, key string) (*storage.SignedURL, error)
}

// Side is one half of a matchup: the song plus a ready-to-play URL.
type Side struct {
	Song      *song.Song
	SignedURL string
	ExpiresAt time.Time
}

// Pair is a presented matchup. Left and Right carry no meaning beyond
// presentation order.
type Pair struct {
	Left  Side
	Right Side
}

// Selector builds matchup pairs for listeners.
type Selector struct {
	songs  song.Repository
	forms  feedback.Repository
	signer URLSigner

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector. rng is used for the random fallback;
// pass nil for a time-seeded source.
func NewSelector(songs song.Repository, forms feedback.Repository, signer URLSigner, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		songs:  songs,
		forms:  forms,
		signer: signer,
		rng:    rng,
	}
}

// AdaptivePair picks the closest-rated pair among the artist's songs.
// Songs are ordered by rating descending and the first adjacent pair
// within MaxAdaptiveGap wins; if every adjacent gap is wider, two
// distinct songs are chosen uniformly at random.
func (s *Selector) AdaptivePair(ctx context.Context, artistID string) (p *Pair, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "select_adaptive_pair")
	defer func() { endSpan(err) }()

	songs, err := s.songs.ListByArtist(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	if len(songs) < 2 {
		return nil, ErrInsufficientSongs
	}

	sorted := make([]*song.Song, len(songs))
	copy(sorted, songs)
	// Unset ratings sort and gap-compare as the default, not as zero.
	sort.SliceStable(sorted, func(i, j int) bool {
		return rating.Normalize(sorted[i].Elo) > rating.Normalize(sorted[j].Elo)
	})

	for i := 0; i+1 < len(sorted); i++ {
		if rating.Normalize(sorted[i].Elo)-rating.Normalize(sorted[i+1].Elo) <= MaxAdaptiveGap {
			return s.resolve(ctx, sorted[i], sorted[i+1])
		}
	}

	a, b := s.randomDistinct(len(sorted))
	return s.resolve(ctx, sorted[a], sorted[b])
}

// ScriptedPair returns the pair at cursor in the form's scripted
// sequence. The cursor is caller-carried; past the end it returns
// ErrSequenceExhausted.
func (s *Selector) ScriptedPair(ctx context.Context, formID string, cursor int) (p *Pair, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "select_scripted_pair")
	defer func() { endSpan(err) }()

	if cursor < 0 {
		return nil, fmt.Errorf("cursor must be non-negative, got %d", cursor)
	}

	form, err := s.forms.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if cursor >= len(form.Pairs) {
		return nil, ErrSequenceExhausted
	}

	ids := form.Pairs[cursor]
	songs, err := s.songs.GetByIDs(ctx, []string{ids[0], ids[1]})
	if err != nil {
		return nil, fmt.Errorf("load pair songs: %w", err)
	}

	byID := make(map[string]*song.Song, len(songs))
	for _, sg := range songs {
		byID[sg.ID] = sg
	}
	// Songs can be deleted after the form was authored.
	if byID[ids[0]] == nil || byID[ids[1]] == nil {
		return nil, song.ErrSongNotFound
	}
	return s.resolve(ctx, byID[ids[0]], byID[ids[1]])
}

func (s *Selector) randomDistinct(n int) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.rng.Intn(n)
	b := s.rng.Intn(n - 1)
	if b >= a {
		b++
	}
	return a, b
}

// resolve signs both playback URLs concurrently.
func (s *Selector) resolve(ctx context.Context, left, right *song.Song) (*Pair, error) {
	var (
		wg       sync.WaitGroup
		leftURL  *storage.SignedURL
		rightURL *storage.SignedURL
		leftErr  error
		rightErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		leftURL, leftErr = s.signer.SignPlaybackURL(ctx, left.FilePath)
	}()
	go func() {
		defer wg.Done()
		rightURL, rightErr = s.signer.SignPlaybackURL(ctx, right.FilePath)
	}()
	wg.Wait()

	if leftErr != nil {
		return nil, fmt.Errorf("sign playback url for %s: %w", left.ID, leftErr)
	}
	if rightErr != nil {
		return nil, fmt.Errorf("sign playback url for %s: %w", right.ID, rightErr)
	}

	return &Pair{
		Left:  Side{Song: left, SignedURL: leftURL.URL, ExpiresAt: leftURL.ExpiresAt},
		Right: Side{Song: right, SignedURL: rightURL.URL, ExpiresAt: rightURL.ExpiresAt},
	}, nil
}
