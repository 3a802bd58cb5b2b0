package matchup

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/waveform-labs/trackduel/internal/feedback"
	"github.com/waveform-labs/trackduel/internal/song"
	"github.com/waveform-labs/trackduel/internal/storage"
)

type fakeSigner struct {
	err   error
	calls int
}

func (f *fakeSigner) SignPlaybackURL(ctx context.Context, key string) (*storage.SignedURL, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &storage.SignedURL{
		URL:       "https://cdn.example.com/" + key + "?sig=abc",
		Key:       key,
		ExpiresAt: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}, nil
}

func seedSongs(t *testing.T, repo *song.InMemoryRepository, artistID string, elos map[string]int) {
	t.Helper()
	for id, elo := range elos {
		err := repo.Create(context.Background(), &song.Song{
			ID:       id,
			ArtistID: artistID,
			Name:     "song " + id,
			FilePath: "songs/" + artistID + "/" + id + ".mp3",
			Elo:      elo,
		})
		if err != nil {
			t.Fatalf("seed song %s: %v", id, err)
		}
	}
}

func newTestSelector(songs *song.InMemoryRepository, forms feedback.Repository, signer URLSigner) *Selector {
	if forms == nil {
		forms = feedback.NewInMemoryRepository()
	}
	return NewSelector(songs, forms, signer, rand.New(rand.NewSource(1)))
}

func TestAdaptivePairPrefersClosestRatings(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{
		"low":  1500,
		"mid":  1600,
		"high": 1900,
	})

	sel := newTestSelector(repo, nil, &fakeSigner{})
	pair, err := sel.AdaptivePair(context.Background(), "artist-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[string]bool{pair.Left.Song.ID: true, pair.Right.Song.ID: true}
	if !got["mid"] || !got["low"] {
		t.Errorf("expected pair {mid, low}, got %s and %s", pair.Left.Song.ID, pair.Right.Song.ID)
	}
}

func TestAdaptivePairNormalizesUnsetRatings(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{
		"unset": -5,
		"near":  1450,
		"far":   3000,
	})

	sel := newTestSelector(repo, nil, &fakeSigner{})

	// An unset rating counts as 1500, so {unset, near} is the close
	// pair. Without normalization the unset song sorts to the bottom
	// with a huge gap and the selector falls back to random; repeat to
	// make a lucky random draw vanishingly unlikely.
	for i := 0; i < 20; i++ {
		pair, err := sel.AdaptivePair(context.Background(), "artist-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := map[string]bool{pair.Left.Song.ID: true, pair.Right.Song.ID: true}
		if !got["unset"] || !got["near"] {
			t.Fatalf("iteration %d: expected pair {unset, near}, got %s and %s",
				i, pair.Left.Song.ID, pair.Right.Song.ID)
		}
	}
}

func TestAdaptivePairFallsBackToRandom(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{
		"a": 1000,
		"b": 1800,
	})

	sel := newTestSelector(repo, nil, &fakeSigner{})
	pair, err := sel.AdaptivePair(context.Background(), "artist-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pair.Left.Song.ID == pair.Right.Song.ID {
		t.Fatalf("pair must hold two distinct songs, got %s twice", pair.Left.Song.ID)
	}
	got := map[string]bool{pair.Left.Song.ID: true, pair.Right.Song.ID: true}
	if !got["a"] || !got["b"] {
		t.Errorf("expected pair {a, b}, got %s and %s", pair.Left.Song.ID, pair.Right.Song.ID)
	}
}

func TestAdaptivePairRandomFallbackAlwaysDistinct(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{
		"a": 1000,
		"b": 1400,
		"c": 1800,
	})

	sel := newTestSelector(repo, nil, &fakeSigner{})
	for i := 0; i < 100; i++ {
		pair, err := sel.AdaptivePair(context.Background(), "artist-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pair.Left.Song.ID == pair.Right.Song.ID {
			t.Fatalf("iteration %d: pair holds the same song twice", i)
		}
	}
}

func TestAdaptivePairInsufficientSongs(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{"only": 1500})

	sel := newTestSelector(repo, nil, &fakeSigner{})

	for _, artist := range []string{"artist-1", "artist-with-no-songs"} {
		if _, err := sel.AdaptivePair(context.Background(), artist); !errors.Is(err, ErrInsufficientSongs) {
			t.Errorf("artist %s: expected ErrInsufficientSongs, got %v", artist, err)
		}
	}
}

func TestAdaptivePairSignsBothSides(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{"a": 1500, "b": 1510})

	signer := &fakeSigner{}
	sel := newTestSelector(repo, nil, signer)
	pair, err := sel.AdaptivePair(context.Background(), "artist-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signer.calls != 2 {
		t.Errorf("expected 2 signing calls, got %d", signer.calls)
	}
	if pair.Left.SignedURL == "" || pair.Right.SignedURL == "" {
		t.Error("both sides must carry a signed URL")
	}
	if pair.Left.ExpiresAt.IsZero() || pair.Right.ExpiresAt.IsZero() {
		t.Error("both sides must carry an expiry")
	}
}

func TestAdaptivePairSignerFailure(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{"a": 1500, "b": 1510})

	signErr := errors.New("bucket unreachable")
	sel := newTestSelector(repo, nil, &fakeSigner{err: signErr})

	if _, err := sel.AdaptivePair(context.Background(), "artist-1"); !errors.Is(err, signErr) {
		t.Errorf("expected signer error, got %v", err)
	}
}

func TestScriptedPairWalksSequence(t *testing.T) {
	repo := song.NewInMemoryRepository()
	seedSongs(t, repo, "artist-1", map[string]int{
		"s1": 1500, "s2": 1500, "s3": 1500, "s4": 1500,
	})

	forms := feedback.NewInMemoryRepository()
	form := &feedback.Form{
		ID:       "form-1",
		ArtistID: "artist-1",
		Name:     "Album sequencing",
		Pairs: []feedback.Pair{
			{"s1", "s2"},
			{"s3", "s4"},
			{"s2", "s3"},
		},
	}
	if err := forms.Create(context.Background(), form); err != nil {
		t.Fatalf("create form: %v", err)
	}

	sel := newTestSelector(repo, forms, &fakeSigner{})

	want := [][2]string{{"s1", "s2"}, {"s3", "s4"}, {"s2", "s3"}}
	for cursor, ids := range want {
		pair, err := sel.ScriptedPair(context.Background(), "form-1", cursor)
		if err != nil {
			t.Fatalf("cursor %d: unexpected error: %v", cursor, err)
		}
		if pair.Left.Song.ID != ids[0] || pair.Right.Song.ID != ids[1] {
			t.Errorf("cursor %d: expected (%s, %s), got (%s, %s)",
				cursor, ids[0], ids[1], pair.Left.Song.ID, pair.Right.Song.ID)
		}
	}

	if _, err := sel.ScriptedPair(context.Background(), "form-1", 3); !errors.Is(err, ErrSequenceExhausted) {
		t.Errorf("expected ErrSequenceExhausted past the end, got %v", err)
	}
}

func TestScriptedPairFormNotFound(t *testing.T) {
	sel := newTestSelector(song.NewInMemoryRepository(), nil, &fakeSigner{})
	if _, err := sel.ScriptedPair(context.Background(), "missing", 0); !errors.Is(err, feedback.ErrFormNotFound) {
		t.Errorf("expected ErrFormNotFound, got %v", err)
	}
}

func TestScriptedPairNegativeCursor(t *testing.T) {
	sel := newTestSelector(song.NewInMemoryRepository(), nil, &fakeSigner{})
	if _, err := sel.ScriptedPair(context.Background(), "form-1", -1); err == nil {
		t.Fatal("expected error for negative cursor")
	}
}
